package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go SQLite driver registered as "sqlite"

	"cotpulse/pkg/contracts/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS imports (
	id          TEXT PRIMARY KEY,
	dataset     TEXT NOT NULL,
	source      TEXT NOT NULL,
	bytes       INTEGER NOT NULL,
	records     INTEGER NOT NULL,
	imported_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS imports_imported_at ON imports (imported_at DESC);
`

// importRow is the stored shape; timestamps are unix nanoseconds.
type importRow struct {
	ID         string `db:"id"`
	Dataset    string `db:"dataset"`
	Source     string `db:"source"`
	Bytes      int64  `db:"bytes"`
	Records    int    `db:"records"`
	ImportedAt int64  `db:"imported_at"`
}

func (r importRow) entry() domain.ImportEntry {
	return domain.ImportEntry{
		ID:         r.ID,
		Dataset:    domain.DatasetKind(r.Dataset),
		Source:     r.Source,
		Bytes:      r.Bytes,
		Records:    r.Records,
		ImportedAt: time.Unix(0, r.ImportedAt).UTC(),
	}
}

// ImportLog records dataset imports.
type ImportLog struct {
	db      *sqlx.DB
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// Open opens (creating if needed) the import log at dsn. Use ":memory:" for
// a throwaway log.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*ImportLog, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open import log: %w", err)
	}
	// SQLite serializes writers; one connection also keeps :memory: stable.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping import log: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate import log: %w", err)
	}

	return &ImportLog{
		db:      db,
		timeout: 5 * time.Second,
		logger:  logger.With(slog.String("component", "import_log")),
		now:     time.Now,
	}, nil
}

// Record appends an entry and returns it with its generated ID and time.
func (l *ImportLog) Record(ctx context.Context, dataset domain.DatasetKind, source string, bytes int64, records int) (domain.ImportEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	row := importRow{
		ID:         uuid.NewString(),
		Dataset:    string(dataset),
		Source:     source,
		Bytes:      bytes,
		Records:    records,
		ImportedAt: l.now().UnixNano(),
	}

	_, err := l.db.NamedExecContext(ctx, `
		INSERT INTO imports (id, dataset, source, bytes, records, imported_at)
		VALUES (:id, :dataset, :source, :bytes, :records, :imported_at)`, row)
	if err != nil {
		return domain.ImportEntry{}, fmt.Errorf("record import: %w", err)
	}

	l.logger.DebugContext(ctx, "import recorded",
		slog.String("id", row.ID),
		slog.String("dataset", row.Dataset),
		slog.String("source", source))
	return row.entry(), nil
}

// Recent returns up to limit entries, newest first. An empty dataset lists
// every dataset.
func (l *ImportLog) Recent(ctx context.Context, dataset domain.DatasetKind, limit int) ([]domain.ImportEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	var rows []importRow
	var err error
	if dataset == "" {
		err = l.db.SelectContext(ctx, &rows,
			`SELECT * FROM imports ORDER BY imported_at DESC, rowid DESC LIMIT ?`, limit)
	} else {
		err = l.db.SelectContext(ctx, &rows,
			`SELECT * FROM imports WHERE dataset = ? ORDER BY imported_at DESC, rowid DESC LIMIT ?`,
			string(dataset), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}

	out := make([]domain.ImportEntry, len(rows))
	for i, r := range rows {
		out[i] = r.entry()
	}
	return out, nil
}

// Latest returns the newest entry for dataset, or false when none exists.
func (l *ImportLog) Latest(ctx context.Context, dataset domain.DatasetKind) (domain.ImportEntry, bool, error) {
	entries, err := l.Recent(ctx, dataset, 1)
	if err != nil || len(entries) == 0 {
		return domain.ImportEntry{}, false, err
	}
	return entries[0], true, nil
}

// Ping checks the database is reachable.
func (l *ImportLog) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Close closes the database.
func (l *ImportLog) Close() error {
	return l.db.Close()
}
