package files

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cotpulse/internal/config"
)

// Manager provides file operations rooted at the configured data layout.
type Manager struct {
	paths *config.Paths
}

// NewManager creates a new file manager instance
func NewManager(paths *config.Paths) *Manager {
	return &Manager{paths: paths}
}

// Paths returns the layout the manager resolves against.
func (m *Manager) Paths() *config.Paths {
	return m.paths
}

// FileExists checks if a file exists at the given path
func (m *Manager) FileExists(path string) bool {
	_, err := os.Stat(m.resolvePath(path))
	return err == nil
}

// ReadFile reads the entire content of a file
func (m *Manager) ReadFile(path string) ([]byte, error) {
	fullPath := m.resolvePath(path)

	slog.Debug("Reading file",
		slog.String("path", path),
		slog.String("full_path", fullPath))

	return os.ReadFile(fullPath)
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never observe a partial file.
func (m *Manager) WriteFileAtomic(path string, data []byte) error {
	fullPath := m.resolvePath(path)
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		return fmt.Errorf("failed to replace %s: %w", fullPath, err)
	}

	slog.Info("Wrote file",
		slog.String("path", path),
		slog.String("full_path", fullPath),
		slog.Int("size_bytes", len(data)))
	return nil
}

// Stat returns file info for path.
func (m *Manager) Stat(path string) (os.FileInfo, error) {
	return os.Stat(m.resolvePath(path))
}

// EnsureDirectory creates a directory if it doesn't exist
func (m *Manager) EnsureDirectory(path string) error {
	return os.MkdirAll(m.resolvePath(path), 0755)
}

// resolvePath maps datasets/, imports/, exports/ and logs/ prefixes onto
// their configured directories. Anything else is relative to the data dir.
func (m *Manager) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	switch {
	case strings.HasPrefix(path, "datasets/"):
		return filepath.Join(m.paths.DatasetsDir, strings.TrimPrefix(path, "datasets/"))
	case strings.HasPrefix(path, "imports/"):
		return filepath.Join(m.paths.ImportsDir, strings.TrimPrefix(path, "imports/"))
	case strings.HasPrefix(path, "exports/"):
		return filepath.Join(m.paths.ExportsDir, strings.TrimPrefix(path, "exports/"))
	case strings.HasPrefix(path, "logs/"):
		return filepath.Join(m.paths.LogsDir, strings.TrimPrefix(path, "logs/"))
	default:
		return filepath.Join(m.paths.DataDir, path)
	}
}
