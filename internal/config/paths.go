package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains all the application paths
// This is the single source of truth for ALL file paths in the application
type Paths struct {
	ExecutableDir string
	DataDir       string
	DatasetsDir   string
	ImportsDir    string
	ExportsDir    string
	LogsDir       string
	WebDir        string

	ImportLogDB string
}

// GetPaths returns the default paths relative to the executable location.
func GetPaths() (*Paths, error) {
	return ResolvePaths(PathsConfig{
		DataDir: DefaultDataDir,
		LogsDir: DefaultLogsDir,
		WebDir:  DefaultWebDir,
	})
}

// ResolvePaths resolves configured paths. Relative entries are anchored at
// the executable directory, never the current working directory.
func ResolvePaths(cfg PathsConfig) (*Paths, error) {
	exeDir, err := executableDir()
	if err != nil {
		return nil, err
	}
	return NewPaths(exeDir, cfg), nil
}

// NewPaths lays out the directory tree under base.
//
//	<data>/
//	  ├── datasets/    persisted positions.csv and history.csv
//	  ├── imports/     drop folder watched for new exports
//	  ├── exports/     normalized CSV written by the exporter
//	  └── imports.db   import log
//	<logs>/
//	<web>/
func NewPaths(base string, cfg PathsConfig) *Paths {
	abs := func(p, def string) string {
		if p == "" {
			p = def
		}
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	dataDir := abs(cfg.DataDir, DefaultDataDir)
	return &Paths{
		ExecutableDir: base,
		DataDir:       dataDir,
		DatasetsDir:   filepath.Join(dataDir, DatasetsSubdir),
		ImportsDir:    filepath.Join(dataDir, ImportsSubdir),
		ExportsDir:    filepath.Join(dataDir, ExportsSubdir),
		LogsDir:       abs(cfg.LogsDir, DefaultLogsDir),
		WebDir:        abs(cfg.WebDir, DefaultWebDir),
		ImportLogDB:   filepath.Join(dataDir, ImportLogFile),
	}
}

func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}
	return filepath.Dir(exe), nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.DatasetsDir,
		p.ImportsDir,
		p.ExportsDir,
		p.LogsDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// DatasetFile returns where the named dataset is persisted.
func (p *Paths) DatasetFile(name string) string {
	return filepath.Join(p.DatasetsDir, name+".csv")
}

// ExportPath returns the path for an exported file
func (p *Paths) ExportPath(filename string) string {
	return filepath.Join(p.ExportsDir, filename)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs detailed path resolution information for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("executable", p.ExecutableDir),
			slog.String("data", p.DataDir),
			slog.String("datasets", p.DatasetsDir),
			slog.String("imports", p.ImportsDir),
			slog.String("exports", p.ExportsDir),
			slog.String("logs", p.LogsDir),
			slog.String("web", p.WebDir),
		),
		slog.String("import_log", p.ImportLogDB))
}
