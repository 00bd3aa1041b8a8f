package files

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apierrors "cotpulse/internal/errors"
	"cotpulse/pkg/contracts/domain"
)

// Dataset is the text of one dataset plus where it came from.
type Dataset struct {
	Kind      domain.DatasetKind `json:"dataset"`
	Text      string             `json:"-"`
	Bundled   bool               `json:"bundled"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// DatasetStore keeps the current text of every dataset in memory and on
// disk. Reads are concurrent, replacements are serialized.
type DatasetStore struct {
	manager *Manager
	logger  *slog.Logger

	mu       sync.RWMutex
	datasets map[domain.DatasetKind]Dataset
}

// NewDatasetStore creates a store persisting through manager.
func NewDatasetStore(manager *Manager, logger *slog.Logger) *DatasetStore {
	return &DatasetStore{
		manager:  manager,
		logger:   logger.With(slog.String("component", "dataset_store")),
		datasets: make(map[domain.DatasetKind]Dataset, len(domain.DatasetKinds)),
	}
}

func datasetPath(kind domain.DatasetKind) string {
	return "datasets/" + string(kind) + ".csv"
}

// Load reads every persisted dataset concurrently, falling back to the
// bundled default when nothing was persisted yet.
func (s *DatasetStore) Load(ctx context.Context) error {
	loaded := make([]Dataset, len(domain.DatasetKinds))

	g, ctx := errgroup.WithContext(ctx)
	for i, kind := range domain.DatasetKinds {
		g.Go(func() error {
			ds, err := s.load(ctx, kind)
			if err != nil {
				return err
			}
			loaded[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	for _, ds := range loaded {
		s.datasets[ds.Kind] = ds
	}
	s.mu.Unlock()
	return nil
}

func (s *DatasetStore) load(ctx context.Context, kind domain.DatasetKind) (Dataset, error) {
	if err := ctx.Err(); err != nil {
		return Dataset{}, err
	}

	path := datasetPath(kind)
	raw, err := s.manager.ReadFile(path)
	switch {
	case err == nil:
		updated := time.Now()
		if info, statErr := s.manager.Stat(path); statErr == nil {
			updated = info.ModTime()
		}
		s.logger.InfoContext(ctx, "loaded persisted dataset",
			slog.String("dataset", string(kind)),
			slog.Int("bytes", len(raw)))
		return Dataset{Kind: kind, Text: string(raw), UpdatedAt: updated}, nil

	case errors.Is(err, fs.ErrNotExist):
		text, defErr := DefaultDataset(kind)
		if defErr != nil {
			return Dataset{}, defErr
		}
		s.logger.InfoContext(ctx, "using bundled dataset", slog.String("dataset", string(kind)))
		return Dataset{Kind: kind, Text: text, Bundled: true}, nil

	default:
		return Dataset{}, apierrors.NewStorageError(fmt.Sprintf("read %s dataset", kind), err)
	}
}

// Get returns the current dataset of kind and whether one is loaded.
func (s *DatasetStore) Get(kind domain.DatasetKind) (Dataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds, ok := s.datasets[kind]
	return ds, ok
}

// Replace persists text as the new dataset of kind. The in-memory copy
// changes only after the file was written.
func (s *DatasetStore) Replace(ctx context.Context, kind domain.DatasetKind, text string) (Dataset, error) {
	if !kind.Valid() {
		return Dataset{}, fmt.Errorf("unknown dataset %q", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.manager.WriteFileAtomic(datasetPath(kind), []byte(text)); err != nil {
		return Dataset{}, apierrors.NewStorageError(fmt.Sprintf("persist %s dataset", kind), err).
			WithContext("dataset", string(kind))
	}

	ds := Dataset{Kind: kind, Text: text, UpdatedAt: time.Now()}
	s.datasets[kind] = ds

	s.logger.InfoContext(ctx, "dataset replaced",
		slog.String("dataset", string(kind)),
		slog.Int("bytes", len(text)))
	return ds, nil
}
