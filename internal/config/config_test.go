package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cotpulse/internal/dataprocessing"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadFrom(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.True(t, cfg.Security.RateLimit.Enabled)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "console", cfg.Logging.Output)
				assert.Equal(t, "data", cfg.Paths.DataDir)
				assert.Equal(t, dataprocessing.DefaultFocusSymbols, cfg.Datasets.FocusSymbols)
				assert.Equal(t, 12, cfg.Datasets.TrendWindow)
				assert.Equal(t, DefaultNarrativeModel, cfg.Narrative.Model)
			},
		},
		{
			name: "file overlays defaults",
			file: "server:\n  port: 9090\nlogging:\n  level: debug\ndatasets:\n  focus_symbols: [Gold, Corn]\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, []string{"Gold", "Corn"}, cfg.Datasets.FocusSymbols)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout, "keys absent from the file keep defaults")
			},
		},
		{
			name: "env overrides file",
			file: "server:\n  port: 9090\n",
			env: map[string]string{
				"COT_SERVER_PORT":            "7070",
				"COT_DATASETS_WATCH_IMPORTS": "true",
				"COT_NARRATIVE_TIMEOUT":      "5s",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.True(t, cfg.Datasets.WatchImports)
				assert.Equal(t, 5*time.Second, cfg.Narrative.Timeout)
			},
		},
		{
			name: "empty focus list admits everything",
			env:  map[string]string{"COT_DATASETS_FOCUS_SYMBOLS": ""},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Empty(t, cfg.Datasets.FocusSymbols)
			},
		},
		{
			name: "api key fallback",
			env:  map[string]string{"GEMINI_API_KEY": "secret"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "secret", cfg.Narrative.APIKey)
			},
		},
		{
			name:    "invalid port",
			env:     map[string]string{"COT_SERVER_PORT": "70000"},
			wantErr: true,
		},
		{
			name:    "invalid logging output",
			file:    "logging:\n  output: syslog\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "server: [",
			wantErr: true,
		},
		{
			name:    "malformed env value",
			env:     map[string]string{"COT_SERVER_READ_TIMEOUT": "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			}

			cfg, err := LoadFrom(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestValidateFillsWindowAndLimit(t *testing.T) {
	cfg := Default()
	cfg.Datasets.TrendWindow = 0
	cfg.Datasets.ImportLogLimit = -1

	require.NoError(t, cfg.validate())
	assert.Equal(t, 12, cfg.Datasets.TrendWindow)
	assert.Equal(t, 20, cfg.Datasets.ImportLogLimit)
}

func TestNewPaths(t *testing.T) {
	base := t.TempDir()
	abs := filepath.Join(t.TempDir(), "logs")

	p := NewPaths(base, PathsConfig{DataDir: "var", LogsDir: abs})

	assert.Equal(t, filepath.Join(base, "var"), p.DataDir)
	assert.Equal(t, filepath.Join(base, "var", "datasets"), p.DatasetsDir)
	assert.Equal(t, filepath.Join(base, "var", "imports"), p.ImportsDir)
	assert.Equal(t, filepath.Join(base, "var", "imports.db"), p.ImportLogDB)
	assert.Equal(t, abs, p.LogsDir)
	assert.Equal(t, filepath.Join(base, "web"), p.WebDir)
	assert.Equal(t, filepath.Join(base, "var", "datasets", "history.csv"), p.DatasetFile("history"))
	assert.Equal(t, filepath.Join(base, "var", "exports", "out.csv"), p.ExportPath("out.csv"))

	require.NoError(t, p.EnsureDirectories())
	for _, dir := range []string{p.DatasetsDir, p.ImportsDir, p.ExportsDir, p.LogsDir} {
		assert.True(t, FileExists(dir), dir)
	}
}

func TestGetPaths(t *testing.T) {
	p, err := GetPaths()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(p.DataDir))
	assert.Equal(t, filepath.Join(p.ExecutableDir, "data"), p.DataDir)
}
