package services

import (
	"errors"

	"cotpulse/internal/dataprocessing"
	"cotpulse/internal/narrative"
)

// Dataset service errors
var (
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrAssetNotFound   = errors.New("asset not found")

	// ErrEmptyDataset rejects an import that yields no records.
	ErrEmptyDataset = errors.New("dataset contains no records")

	ErrUnsupportedFormat = dataprocessing.ErrUnsupportedFormat

	ErrUnknownDataset = errors.New("unknown dataset")
	ErrInvalidSort    = errors.New("invalid sort key")

	// Narrative errors
	ErrNarrativeUnavailable = narrative.ErrUnavailable
	ErrUnsupportedLanguage  = narrative.ErrUnsupportedLanguage
)
