package config

import "time"

// Application constants
const (
	AppName    = "cotpulse"
	AppVersion = "1.0.0"

	// File Paths (relative to executable)
	DefaultDataDir = "data"
	DefaultLogsDir = "logs"
	DefaultWebDir  = "web"

	// Subdirectories of the data directory
	DatasetsSubdir = "datasets"
	ImportsSubdir  = "imports"
	ExportsSubdir  = "exports"
	ImportLogFile  = "imports.db"

	DefaultMaxUploadBytes = 10 << 20 // 10MB

	DefaultNarrativeModel = "gemini-2.5-flash"

	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// API Endpoints
	APIBasePath       = "/api"
	HealthEndpoint    = "/api/health"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"
)
