package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"cotpulse/internal/dataprocessing"
	"cotpulse/internal/exporter"
	"cotpulse/internal/files"
	"cotpulse/internal/infrastructure"
	"cotpulse/pkg/contracts/domain"
)

// DatasetStore holds the current text of every dataset.
type DatasetStore interface {
	Get(kind domain.DatasetKind) (files.Dataset, bool)
	Replace(ctx context.Context, kind domain.DatasetKind, text string) (files.Dataset, error)
}

// ImportLog records and lists dataset imports.
type ImportLog interface {
	Record(ctx context.Context, dataset domain.DatasetKind, source string, bytes int64, records int) (domain.ImportEntry, error)
	Recent(ctx context.Context, dataset domain.DatasetKind, limit int) ([]domain.ImportEntry, error)
	Latest(ctx context.Context, dataset domain.DatasetKind) (domain.ImportEntry, bool, error)
}

// Publisher announces dataset replacements to live clients.
type Publisher interface {
	BroadcastDataUpdate(ctx context.Context, dataset domain.DatasetKind, records int, source string)
}

// Analyst produces narrative commentary for a snapshot.
type Analyst interface {
	Analyze(ctx context.Context, records []domain.SnapshotRecord, lang string) (*domain.Analysis, error)
	Available() bool
}

// Options tune CotService.
type Options struct {
	FocusSymbols   []string
	TrendWindow    int
	ImportLogLimit int
}

// CotService serves and replaces the COT datasets.
type CotService struct {
	store     DatasetStore
	imports   ImportLog
	publisher Publisher
	analyst   Analyst
	metrics   *infrastructure.Metrics

	focus       dataprocessing.Focus
	trendWindow int
	importLimit int
	logger      *slog.Logger
}

// NewCotService creates the dataset service. imports, publisher and analyst
// may be nil; the matching features are then skipped or unavailable.
func NewCotService(store DatasetStore, imports ImportLog, publisher Publisher, analyst Analyst,
	metrics *infrastructure.Metrics, opts Options, logger *slog.Logger) *CotService {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = infrastructure.NopMetrics()
	}
	if opts.TrendWindow <= 0 {
		opts.TrendWindow = dataprocessing.DefaultTrendWindow
	}
	if opts.ImportLogLimit <= 0 {
		opts.ImportLogLimit = 20
	}

	logger = logger.With(slog.String("component", "cot_service"))
	logger.Info("CotService initialized",
		slog.Int("focus_symbols", len(opts.FocusSymbols)),
		slog.Int("trend_window", opts.TrendWindow),
		slog.Bool("import_log", imports != nil),
		slog.Bool("narrative", analyst != nil && analyst.Available()))

	return &CotService{
		store:       store,
		imports:     imports,
		publisher:   publisher,
		analyst:     analyst,
		metrics:     metrics,
		focus:       dataprocessing.NewFocus(opts.FocusSymbols),
		trendWindow: opts.TrendWindow,
		importLimit: opts.ImportLogLimit,
		logger:      logger,
	}
}

// PositionsQuery filters and orders the positions table.
type PositionsQuery struct {
	Q     string
	Sort  string
	Desc  bool
	Focus bool
}

// HistoryQuery filters the history table.
type HistoryQuery struct {
	Q     string
	Focus bool
}

func (s *CotService) text(kind domain.DatasetKind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDataset, kind)
	}
	ds, ok := s.store.Get(kind)
	if !ok {
		return "", fmt.Errorf("%s: %w", kind, ErrDatasetNotFound)
	}
	return ds.Text, nil
}

func (s *CotService) snapshot(focus bool) ([]domain.SnapshotRecord, error) {
	text, err := s.text(domain.DatasetPositions)
	if err != nil {
		return nil, err
	}
	records := dataprocessing.ParseSnapshot(text)
	if focus {
		records = s.focus.Snapshot(records)
	}
	return records, nil
}

func (s *CotService) series(focus bool) ([]domain.SeriesRecord, error) {
	text, err := s.text(domain.DatasetHistory)
	if err != nil {
		return nil, err
	}
	records := dataprocessing.ParseSeries(text)
	if focus {
		records = s.focus.Series(records)
	}
	return records, nil
}

// Positions returns the parsed positions table filtered by q.
func (s *CotService) Positions(ctx context.Context, q PositionsQuery) ([]domain.SnapshotRecord, error) {
	_, span := infrastructure.StartSpan(ctx, "cot.positions",
		attribute.String("sort", q.Sort), attribute.Bool("focus", q.Focus))
	defer span.End()

	records, err := s.snapshot(q.Focus)
	if err != nil {
		return nil, err
	}
	records = dataprocessing.Search(records, q.Q)

	if q.Sort != "" {
		sorted, err := dataprocessing.SortSnapshot(records, q.Sort, q.Desc)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSort, q.Sort)
		}
		records = sorted
	}
	return records, nil
}

// History returns the parsed history table filtered by q.
func (s *CotService) History(ctx context.Context, q HistoryQuery) ([]domain.SeriesRecord, error) {
	_, span := infrastructure.StartSpan(ctx, "cot.history", attribute.Bool("focus", q.Focus))
	defer span.End()

	records, err := s.series(q.Focus)
	if err != nil {
		return nil, err
	}
	return dataprocessing.SearchSeries(records, q.Q), nil
}

// Assets lists the distinct asset names of both datasets, sorted without
// regard to case. A missing dataset contributes nothing.
func (s *CotService) Assets(ctx context.Context, focus bool) ([]string, error) {
	seen := make(map[string]struct{})
	var names []string
	add := func(name string) {
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		names = append(names, name)
	}

	positions, perr := s.snapshot(focus)
	for _, r := range positions {
		add(r.Commodity)
	}
	history, herr := s.series(focus)
	for _, r := range history {
		add(r.Commodity)
	}
	if perr != nil && herr != nil {
		return nil, perr
	}

	slices.SortFunc(names, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return names, nil
}

// Asset returns the positions row, history, trend and statistics of one
// asset. Names match exactly ignoring case first, then by focus-style
// containment so "Gold" finds "Gold (GC)".
func (s *CotService) Asset(ctx context.Context, name string) (*domain.AssetDetail, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrAssetNotFound
	}

	detail := &domain.AssetDetail{Commodity: name}

	if positions, err := s.snapshot(false); err == nil {
		if i := matchIndex(len(positions), func(i int) string { return positions[i].Commodity }, name); i >= 0 {
			rec := positions[i]
			detail.Position = &rec
			detail.Commodity = rec.Commodity
		}
	}

	if history, err := s.series(false); err == nil {
		if i := matchIndex(len(history), func(i int) string { return history[i].Commodity }, name); i >= 0 {
			rec := history[i]
			detail.History = &rec
			detail.Trend = dataprocessing.Trend(rec, s.trendWindow)
			detail.Stats = dataprocessing.SeriesStats(rec)
			if detail.Position == nil {
				detail.Commodity = rec.Commodity
			}
		}
	}

	if detail.Position == nil && detail.History == nil {
		s.logger.DebugContext(ctx, "asset not found", slog.String("asset", name))
		return nil, fmt.Errorf("%q: %w", name, ErrAssetNotFound)
	}
	return detail, nil
}

func matchIndex(n int, nameAt func(int) string, name string) int {
	for i := 0; i < n; i++ {
		if strings.EqualFold(strings.TrimSpace(nameAt(i)), name) {
			return i
		}
	}
	f := dataprocessing.NewFocus([]string{name})
	for i := 0; i < n; i++ {
		if f.Match(nameAt(i)) {
			return i
		}
	}
	return -1
}

// Overview summarizes the positions table.
func (s *CotService) Overview(ctx context.Context, focus bool) (domain.Overview, error) {
	records, err := s.snapshot(focus)
	if err != nil {
		return domain.Overview{}, err
	}
	return dataprocessing.Overview(records), nil
}

// Rankings returns the positions table ranked by net position (descending)
// and by gross exposure (ascending).
func (s *CotService) Rankings(ctx context.Context, focus bool) (byNet, byExposure []domain.SnapshotRecord, err error) {
	records, err := s.snapshot(focus)
	if err != nil {
		return nil, nil, err
	}
	return dataprocessing.RankByNet(records), dataprocessing.RankByExposure(records), nil
}

// ExportPositions writes the filtered positions table to w as CSV.
func (s *CotService) ExportPositions(ctx context.Context, w io.Writer, q PositionsQuery) error {
	records, err := s.Positions(ctx, q)
	if err != nil {
		return err
	}
	return exporter.ExportSnapshot(w, records, exporter.WriteOptions{BOMPrefix: true})
}

// ExportHistory writes the filtered history table to w as wide CSV.
func (s *CotService) ExportHistory(ctx context.Context, w io.Writer, q HistoryQuery) error {
	records, err := s.History(ctx, q)
	if err != nil {
		return err
	}
	return exporter.ExportSeries(w, records, exporter.WriteOptions{BOMPrefix: true})
}

// Imports lists the most recent imports, newest first. An empty dataset
// lists every dataset; limit <= 0 uses the configured default.
func (s *CotService) Imports(ctx context.Context, dataset domain.DatasetKind, limit int) ([]domain.ImportEntry, error) {
	if dataset != "" && !dataset.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, dataset)
	}
	if s.imports == nil {
		return []domain.ImportEntry{}, nil
	}
	if limit <= 0 {
		limit = s.importLimit
	}
	return s.imports.Recent(ctx, dataset, limit)
}

// Analyze asks the analyst for commentary on the focused positions.
func (s *CotService) Analyze(ctx context.Context, lang string) (*domain.Analysis, error) {
	ctx, span := infrastructure.StartSpan(ctx, "cot.analyze", attribute.String("lang", lang))
	defer span.End()

	if s.analyst == nil {
		return nil, ErrNarrativeUnavailable
	}

	records, err := s.snapshot(true)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}

	analysis, err := s.analyst.Analyze(ctx, records, lang)
	s.metrics.RecordNarrative(ctx, lang, err)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, fmt.Errorf("analyze positions: %w", err)
	}
	return analysis, nil
}

// NarrativeAvailable reports whether Analyze can currently succeed.
func (s *CotService) NarrativeAvailable() bool {
	return s.analyst != nil && s.analyst.Available()
}

// DatasetStatus is a loaded dataset with its most recent import, if any.
type DatasetStatus struct {
	files.Dataset
	LastImport *domain.ImportEntry `json:"last_import,omitempty"`
}

// DatasetInfo returns metadata about every loaded dataset.
func (s *CotService) DatasetInfo(ctx context.Context) ([]DatasetStatus, error) {
	out := make([]DatasetStatus, 0, len(domain.DatasetKinds))
	for _, kind := range domain.DatasetKinds {
		ds, ok := s.store.Get(kind)
		if !ok {
			continue
		}
		status := DatasetStatus{Dataset: ds}
		if s.imports != nil {
			entry, found, err := s.imports.Latest(ctx, kind)
			if err != nil {
				return nil, fmt.Errorf("latest %s import: %w", kind, err)
			}
			if found {
				status.LastImport = &entry
			}
		}
		out = append(out, status)
	}
	return out, nil
}
