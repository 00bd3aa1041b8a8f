package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"cotpulse/internal/dataprocessing"
	apierrors "cotpulse/internal/errors"
	"cotpulse/internal/infrastructure"
	"cotpulse/pkg/contracts/domain"
)

// Import sources
const (
	SourceAPI     = "api"
	SourceUpload  = "upload"
	SourceWatcher = "watcher"
)

// ImportResult is the parsed content of an import. Import is nil for a
// preview.
type ImportResult struct {
	Dataset   domain.DatasetKind      `json:"dataset"`
	Count     int                     `json:"count"`
	Positions []domain.SnapshotRecord `json:"positions,omitempty"`
	History   []domain.SeriesRecord   `json:"history,omitempty"`
	Import    *domain.ImportEntry     `json:"import,omitempty"`
	Layout    *dataprocessing.Layout  `json:"layout,omitempty"`
}

// parse runs the parser matching kind over text.
func parse(kind domain.DatasetKind, text string) (*ImportResult, error) {
	res := &ImportResult{Dataset: kind}
	switch kind {
	case domain.DatasetPositions:
		res.Positions = dataprocessing.ParseSnapshot(text)
		res.Count = len(res.Positions)
	case domain.DatasetHistory:
		res.History = dataprocessing.ParseSeries(text)
		res.Count = len(res.History)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, kind)
	}
	return res, nil
}

// Preview parses text as kind without persisting anything.
func (s *CotService) Preview(ctx context.Context, kind domain.DatasetKind, text string) (*ImportResult, error) {
	_, span := infrastructure.StartSpan(ctx, "cot.preview", attribute.String("dataset", string(kind)))
	defer span.End()
	res, err := parse(kind, text)
	if err != nil {
		return nil, err
	}
	if kind == domain.DatasetPositions {
		if layout, ok := dataprocessing.SnapshotLayout(text); ok {
			res.Layout = &layout
		}
	}
	return res, nil
}

// decode converts an upload to text. Files that have a supported extension
// but cannot be read become parsing errors.
func decode(filename string, content []byte) (string, error) {
	text, err := dataprocessing.DecodeUpload(filename, content)
	switch {
	case err == nil:
		return text, nil
	case errors.Is(err, ErrUnsupportedFormat):
		return "", fmt.Errorf("%s: %w", filename, err)
	default:
		return "", apierrors.NewParsingError(fmt.Sprintf("cannot read %s", filename), err).
			WithContext("filename", filename)
	}
}

// PreviewUpload decodes an uploaded file and parses it without persisting.
func (s *CotService) PreviewUpload(ctx context.Context, kind domain.DatasetKind, filename string, content []byte) (*ImportResult, error) {
	text, err := decode(filename, content)
	if err != nil {
		return nil, err
	}
	return s.Preview(ctx, kind, text)
}

// Replace parses text and, when it yields at least one record, makes it the
// current dataset of kind. The import is logged and broadcast.
func (s *CotService) Replace(ctx context.Context, kind domain.DatasetKind, text, source string) (*ImportResult, error) {
	ctx, span := infrastructure.StartSpan(ctx, "cot.replace",
		attribute.String("dataset", string(kind)), attribute.String("source", source))
	defer span.End()

	start := time.Now()
	res, err := s.replace(ctx, kind, text, source)
	s.metrics.RecordImport(ctx, string(kind), source, countOf(res), time.Since(start), err)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.logger.WarnContext(ctx, "import rejected",
			slog.String("dataset", string(kind)),
			slog.String("source", source),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.InfoContext(ctx, "dataset imported",
		slog.String("dataset", string(kind)),
		slog.String("source", source),
		slog.Int("records", res.Count),
		slog.Duration("took", time.Since(start)))
	return res, nil
}

func countOf(res *ImportResult) int {
	if res == nil {
		return 0
	}
	return res.Count
}

func (s *CotService) replace(ctx context.Context, kind domain.DatasetKind, text, source string) (*ImportResult, error) {
	res, err := parse(kind, text)
	if err != nil {
		return nil, err
	}
	if res.Count == 0 {
		return nil, fmt.Errorf("%s: %w", kind, ErrEmptyDataset)
	}

	if _, err := s.store.Replace(ctx, kind, text); err != nil {
		return nil, fmt.Errorf("replace %s: %w", kind, err)
	}

	if s.imports != nil {
		entry, err := s.imports.Record(ctx, kind, source, int64(len(text)), res.Count)
		if err != nil {
			// The dataset is already replaced, so the import still succeeds.
			s.logger.ErrorContext(ctx, "failed to record import",
				slog.String("dataset", string(kind)),
				slog.String("error", err.Error()))
		} else {
			res.Import = &entry
		}
	}

	if s.publisher != nil {
		s.publisher.BroadcastDataUpdate(ctx, kind, res.Count, source)
	}
	return res, nil
}

// Upload decodes an uploaded csv, txt, xlsx or html file and replaces the
// dataset of kind with it.
func (s *CotService) Upload(ctx context.Context, kind domain.DatasetKind, filename string, content []byte) (*ImportResult, error) {
	text, err := decode(filename, content)
	if err != nil {
		s.metrics.RecordImport(ctx, string(kind), SourceUpload, 0, 0, err)
		return nil, err
	}
	return s.Replace(ctx, kind, text, SourceUpload)
}

// ImportFile replaces a dataset from a file dropped in the import
// directory. It has the signature of files.ImportFunc.
func (s *CotService) ImportFile(ctx context.Context, kind domain.DatasetKind, name string, content []byte) error {
	text, err := decode(name, content)
	if err != nil {
		s.metrics.RecordImport(ctx, string(kind), SourceWatcher, 0, 0, err)
		return err
	}
	_, err = s.Replace(ctx, kind, text, SourceWatcher)
	return err
}
