package http

import (
	"context"
	"io"

	"cotpulse/internal/services"
	"cotpulse/pkg/contracts/domain"
)

// CotServiceInterface defines the dataset operations the handlers use
type CotServiceInterface interface {
	Positions(ctx context.Context, q services.PositionsQuery) ([]domain.SnapshotRecord, error)
	History(ctx context.Context, q services.HistoryQuery) ([]domain.SeriesRecord, error)
	Assets(ctx context.Context, focus bool) ([]string, error)
	Asset(ctx context.Context, name string) (*domain.AssetDetail, error)
	Overview(ctx context.Context, focus bool) (domain.Overview, error)
	Rankings(ctx context.Context, focus bool) (byNet, byExposure []domain.SnapshotRecord, err error)
	DatasetInfo(ctx context.Context) ([]services.DatasetStatus, error)

	Replace(ctx context.Context, kind domain.DatasetKind, text, source string) (*services.ImportResult, error)
	Upload(ctx context.Context, kind domain.DatasetKind, filename string, content []byte) (*services.ImportResult, error)
	PreviewUpload(ctx context.Context, kind domain.DatasetKind, filename string, content []byte) (*services.ImportResult, error)
	Imports(ctx context.Context, dataset domain.DatasetKind, limit int) ([]domain.ImportEntry, error)

	ExportPositions(ctx context.Context, w io.Writer, q services.PositionsQuery) error
	ExportHistory(ctx context.Context, w io.Writer, q services.HistoryQuery) error

	Analyze(ctx context.Context, lang string) (*domain.Analysis, error)
}
