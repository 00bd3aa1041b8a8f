package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// LogRecord is one captured log call. Attrs include those bound with
// Logger.With.
type LogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// LogCapture is a slog.Handler that keeps every record in memory.
type LogCapture struct {
	mu      *sync.Mutex
	records *[]LogRecord
	bound   []slog.Attr
	t       testing.TB
}

// NewLogCapture returns a logger writing into a fresh capture. Records are
// echoed to the test log so failures show what was logged.
func NewLogCapture(t testing.TB) (*slog.Logger, *LogCapture) {
	c := &LogCapture{mu: &sync.Mutex{}, records: new([]LogRecord), t: t}
	return slog.New(c), c
}

// Enabled implements slog.Handler.
func (c *LogCapture) Enabled(context.Context, slog.Level) bool { return true }

// Handle implements slog.Handler.
func (c *LogCapture) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(c.bound)+r.NumAttrs())
	for _, a := range c.bound {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	c.mu.Lock()
	*c.records = append(*c.records, LogRecord{Level: r.Level, Message: r.Message, Attrs: attrs})
	c.mu.Unlock()

	if c.t != nil {
		c.t.Logf("[%s] %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

// WithAttrs implements slog.Handler. The derived handler shares the record
// buffer.
func (c *LogCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make([]slog.Attr, 0, len(c.bound)+len(attrs))
	bound = append(bound, c.bound...)
	bound = append(bound, attrs...)
	return &LogCapture{mu: c.mu, records: c.records, bound: bound, t: c.t}
}

// WithGroup implements slog.Handler. Groups are flattened.
func (c *LogCapture) WithGroup(string) slog.Handler { return c }

// Records returns a copy of everything captured so far.
func (c *LogCapture) Records() []LogRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LogRecord(nil), *c.records...)
}

// Find returns the first record at level whose message contains msg.
func (c *LogCapture) Find(level slog.Level, msg string) (LogRecord, bool) {
	for _, r := range c.Records() {
		if r.Level == level && strings.Contains(r.Message, msg) {
			return r, true
		}
	}
	return LogRecord{}, false
}

// AssertLogged fails t unless a record at level contains msg.
func AssertLogged(t testing.TB, c *LogCapture, level slog.Level, msg string) LogRecord {
	t.Helper()
	r, ok := c.Find(level, msg)
	if !ok {
		t.Errorf("no %s log containing %q", level, msg)
	}
	return r
}

// AssertNoErrors fails t if anything was logged at error level.
func AssertNoErrors(t testing.TB, c *LogCapture) {
	t.Helper()
	for _, r := range c.Records() {
		if r.Level >= slog.LevelError {
			t.Errorf("unexpected error log: %s %v", r.Message, r.Attrs)
		}
	}
}
