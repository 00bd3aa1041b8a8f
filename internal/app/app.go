package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"cotpulse/internal/config"
	apierrors "cotpulse/internal/errors"
	"cotpulse/internal/files"
	"cotpulse/internal/infrastructure"
	customMiddleware "cotpulse/internal/middleware"
	"cotpulse/internal/narrative"
	"cotpulse/internal/services"
	"cotpulse/internal/store"
	handlers "cotpulse/internal/transport/http"
	ws "cotpulse/internal/websocket"
)

// Build information, set with -ldflags at release time.
var (
	Version   = config.AppVersion
	BuildTime = "unknown"
)

// Application wires the COT services behind the HTTP server.
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.Metrics

	Datasets      *files.DatasetStore
	ImportLog     *store.ImportLog
	Hub           *ws.Hub
	Narrative     *narrative.Service
	CotService    *services.CotService
	HealthService *services.HealthService
	Watcher       *files.Watcher

	Router chi.Router
	Server *http.Server
}

// New creates the application. Nothing listens or runs in the background
// until Run is called; Close releases what New opened.
func New(ctx context.Context, cfg *config.Config, paths *config.Paths, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.NewMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
	}

	if err := a.initializeServices(ctx); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()
	return a, nil
}

// initializeServices creates the stores and services in dependency order.
func (a *Application) initializeServices(ctx context.Context) error {
	a.Datasets = files.NewDatasetStore(files.NewManager(a.Paths), a.Logger)
	if err := a.Datasets.Load(ctx); err != nil {
		return fmt.Errorf("failed to load datasets: %w", err)
	}

	importLog, err := store.Open(ctx, a.Paths.ImportLogDB, a.Logger)
	if err != nil {
		return err
	}
	a.ImportLog = importLog

	a.Hub = ws.NewHub(a.Logger, a.Metrics)

	var gen narrative.Generator
	if key := a.Config.Narrative.APIKey; key != "" {
		gemini, err := narrative.NewGemini(ctx, key, a.Config.Narrative.Model)
		if err != nil {
			return err
		}
		gen = gemini
	} else {
		a.Logger.Info("narrative analysis disabled: no API key configured")
	}
	a.Narrative = narrative.NewService(gen, narrative.Settings{
		Timeout:         a.Config.Narrative.Timeout,
		BreakerFailures: a.Config.Narrative.BreakerFailures,
		BreakerCooldown: a.Config.Narrative.BreakerCooldown,
	}, a.Logger)

	a.CotService = services.NewCotService(a.Datasets, a.ImportLog, a.Hub, a.Narrative, a.Metrics,
		services.Options{
			FocusSymbols:   a.Config.Datasets.FocusSymbols,
			TrendWindow:    a.Config.Datasets.TrendWindow,
			ImportLogLimit: a.Config.Datasets.ImportLogLimit,
		}, a.Logger)

	a.HealthService = services.NewHealthService(Version, BuildTime, services.HealthDeps{
		DataDir:   a.Paths.DataDir,
		Datasets:  a.Datasets,
		ImportLog: a.ImportLog,
		Hub:       a.Hub,
		Narrative: a.Narrative,
	}, a.Logger)

	if a.Config.Datasets.WatchImports {
		a.Watcher = files.NewWatcher(a.Paths.ImportsDir, a.Config.Datasets.WatchDebounce,
			a.CotService.ImportFile, a.Logger)
	}
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errorHandler := apierrors.NewErrorHandler(a.Logger, false)

	// The websocket upgrade must see the raw ResponseWriter, so /ws only
	// gets the request ID and its own trace middleware.
	r.Use(customMiddleware.RequestID)
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).
		Handle(config.WebSocketEndpoint, handlers.NewWebSocketHandler(a.Hub, a.Config.WebSocket,
			a.Config.Security.AllowedOrigins, a.Logger))

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle(config.MetricsEndpoint, a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(errorHandler.Middleware)
		r.Use(customMiddleware.DefaultSecureHeaders().Handler)
		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}
		if rl := a.Config.Security.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger).Handler)
		}

		a.setupAPIRoutes(r, errorHandler)
		a.setupHTMLRoutes(r)
	})

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)
	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router, errorHandler *apierrors.ErrorHandler) {
	r.Route(config.APIBasePath, func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/version", healthHandler.Version)

		validation := customMiddleware.NewValidationMiddleware(a.Logger, errorHandler, a.Config.Datasets.MaxUploadBytes)
		cotHandler := handlers.NewCotHandler(a.CotService, validation, a.Logger, errorHandler)
		r.With(customMiddleware.AuditLog(a.Logger)).Mount("/cot", cotHandler.Routes())
	})
}

// setupHTMLRoutes serves the dashboard from the web directory.
func (a *Application) setupHTMLRoutes(r chi.Router) {
	r.Get("/", handlers.ServeDashboard(a.Paths.WebDir))
	r.Handle("/static/*", http.StripPrefix("/static", handlers.StaticFiles(a.Paths.WebDir)))
}

func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:         300,
		Logger:         a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           net.JoinHostPort(a.Config.Server.Host, strconv.Itoa(a.Config.Server.Port)),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Run serves until ctx is cancelled or a component fails, then shuts
// everything down. A clean shutdown returns nil.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", Version),
		slog.String("address", ln.Addr().String()),
		slog.Bool("watch_imports", a.Watcher != nil),
		slog.Bool("narrative", a.Narrative.Available()))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Hub.Run(gctx)
		return nil
	})

	if a.Watcher != nil {
		g.Go(func() error {
			return a.Watcher.Run(gctx)
		})
	}

	g.Go(func() error {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown(context.WithoutCancel(ctx))
	})

	err := g.Wait()
	a.Close(context.WithoutCancel(ctx))
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		a.Logger.ErrorContext(ctx, "Application stopped with error", slog.String("error", err.Error()))
		return err
	}
	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

func (a *Application) shutdown(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

// Close releases the import log and flushes telemetry. It is safe to call
// more than once.
func (a *Application) Close(ctx context.Context) {
	if a.ImportLog != nil {
		if err := a.ImportLog.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "Error closing import log", slog.String("error", err.Error()))
		}
		a.ImportLog = nil
	}
	if a.OTelProviders != nil {
		flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.OTelProviders.Shutdown(flushCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
		a.OTelProviders = nil
	}
}
