package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"cotpulse/pkg/contracts/domain"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ClientCounter reports connected websocket clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthDeps are the components checked for readiness. Nil members are
// reported as disabled.
type HealthDeps struct {
	DataDir   string
	Datasets  DatasetStore
	ImportLog Pinger
	Hub       ClientCounter
	Narrative Analyst
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	deps      HealthDeps
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Component states
const (
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
	StatusDisabled = "disabled"
)

// NewHealthService creates a new health service
func NewHealthService(version, buildTime string, deps HealthDeps, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("HealthService initialized",
		slog.String("version", version),
		slog.String("build_time", buildTime))

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		deps:      deps,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports each component. The service is ready when nothing
// is not_ready; disabled optional components do not count.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusReady,
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"data":      hs.checkDataDir(),
			"datasets":  hs.checkDatasets(),
			"imports":   hs.checkImportLog(ctx),
			"websocket": hs.checkWebSocket(),
			"narrative": hs.checkNarrative(),
		},
	}

	for name, sh := range status.Services {
		if sh.Status == StatusNotReady {
			status.Status = StatusNotReady
			hs.logger.WarnContext(ctx, "component not ready",
				slog.String("service", name),
				slog.String("message", sh.Message))
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	return result
}

func (hs *HealthService) checkDataDir() ServiceHealth {
	if hs.deps.DataDir == "" {
		return ServiceHealth{Status: StatusDisabled}
	}
	info, err := os.Stat(hs.deps.DataDir)
	if err != nil || !info.IsDir() {
		return ServiceHealth{
			Status:  StatusNotReady,
			Message: fmt.Sprintf("data directory not found: %s", hs.deps.DataDir),
		}
	}
	return ServiceHealth{Status: StatusReady}
}

func (hs *HealthService) checkDatasets() ServiceHealth {
	if hs.deps.Datasets == nil {
		return ServiceHealth{Status: StatusNotReady, Message: "dataset store not initialized"}
	}
	for _, kind := range domain.DatasetKinds {
		if _, ok := hs.deps.Datasets.Get(kind); !ok {
			return ServiceHealth{Status: StatusNotReady, Message: fmt.Sprintf("%s dataset not loaded", kind)}
		}
	}
	return ServiceHealth{Status: StatusReady}
}

func (hs *HealthService) checkImportLog(ctx context.Context) ServiceHealth {
	if hs.deps.ImportLog == nil {
		return ServiceHealth{Status: StatusDisabled}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := hs.deps.ImportLog.Ping(ctx); err != nil {
		return ServiceHealth{Status: StatusNotReady, Message: fmt.Sprintf("import log: %v", err)}
	}
	return ServiceHealth{Status: StatusReady}
}

func (hs *HealthService) checkWebSocket() ServiceHealth {
	if hs.deps.Hub == nil {
		return ServiceHealth{Status: StatusDisabled}
	}
	return ServiceHealth{
		Status:  StatusReady,
		Message: fmt.Sprintf("%d clients connected", hs.deps.Hub.ClientCount()),
	}
}

func (hs *HealthService) checkNarrative() ServiceHealth {
	if hs.deps.Narrative == nil || !hs.deps.Narrative.Available() {
		return ServiceHealth{Status: StatusDisabled, Message: "no model configured or circuit open"}
	}
	return ServiceHealth{Status: StatusReady}
}
