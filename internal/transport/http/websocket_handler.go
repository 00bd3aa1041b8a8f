package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"

	"github.com/gorilla/websocket"

	"cotpulse/internal/config"
	"cotpulse/internal/infrastructure"
	"cotpulse/internal/middleware"
	ws "cotpulse/internal/websocket"
)

// WebSocketHandler upgrades /ws requests and hands the connection to the hub
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	timing   ws.Timing
	logger   *slog.Logger
}

// NewWebSocketHandler creates a handler accepting origins from allowedOrigins,
// same-origin requests and requests without an Origin header. A "*" entry
// accepts every origin.
func NewWebSocketHandler(hub *ws.Hub, cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:    hub,
		timing: ws.Timing{PingPeriod: cfg.PingPeriod, PongWait: cfg.PongWait},
		logger: logger.With(slog.String("handler", "websocket")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r, allowedOrigins)
		},
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			h.logger.WarnContext(r.Context(), "WebSocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
			http.Error(w, http.StatusText(status), status)
		},
	}
	return h
}

func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// ServeHTTP handles GET /ws
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := infrastructure.GetTraceID(ctx)
	if traceID == "" {
		traceID = middleware.GetRequestID(ctx)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied
		return
	}

	if !h.hub.Serve(conn, traceID, h.timing) {
		h.logger.WarnContext(ctx, "WebSocket connection refused, hub stopped")
		return
	}
	h.logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("remote_addr", middleware.GetRealIP(r)))
}
