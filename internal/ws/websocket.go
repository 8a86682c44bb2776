// Package ws adapts the gorilla/websocket transport to the session
// runtime: it performs the upgrade handshake, mints a session id, and hands
// the live connection to a fresh session.Runtime for the rest of the
// connection's lifetime. The framing library itself is an out-of-scope
// external collaborator (spec §1) — this package only depends on its
// Conn's read/write/close surface.
package ws

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"asr_server/config"
	"asr_server/internal/audio"
	"asr_server/internal/logger"
	"asr_server/internal/pipeline"
	"asr_server/internal/resource"
	"asr_server/internal/session"
)

// Handler upgrades HTTP connections to WebSocket and dispatches each one to
// its own session runtime. All dependencies are explicitly injected.
type Handler struct {
	cfg        *config.Config
	validator  *audio.Validator
	pipeline   *pipeline.Pipeline
	supervisor *resource.Supervisor
	metrics    *resource.Metrics
	registry   *session.Registry
	upgrader   websocket.Upgrader
}

// NewHandler creates a new WebSocket handler with explicit dependencies.
func NewHandler(cfg *config.Config, validator *audio.Validator, p *pipeline.Pipeline, sup *resource.Supervisor, metrics *resource.Metrics, registry *session.Registry) *Handler {
	wsCfg := cfg.Server.WebSocket
	return &Handler{
		cfg:        cfg,
		validator:  validator,
		pipeline:   p,
		supervisor: sup,
		metrics:    metrics,
		registry:   registry,
		upgrader: websocket.Upgrader{
			CheckOrigin:       func(r *http.Request) bool { return true },
			ReadBufferSize:    wsCfg.ReadBufferSize,
			WriteBufferSize:   wsCfg.WriteBufferSize,
			EnableCompression: wsCfg.EnableCompression,
		},
	}
}

// HandleWebSocket upgrades the connection and runs its session to
// completion. It blocks until the connection closes.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket_upgrade_failed", "error", err)
		return
	}

	wsCfg := h.cfg.Server.WebSocket
	if wsCfg.MaxMessageSize > 0 {
		conn.SetReadLimit(int64(wsCfg.MaxMessageSize))
	}

	sessionID := uuid.New().String()
	dc := &deadlineConn{Conn: conn, readTimeout: time.Duration(wsCfg.ReadTimeout) * time.Second}
	rt := session.NewRuntime(sessionID, dc, h.validator, h.pipeline, h.supervisor, h.metrics, h.registry)
	rt.Run(r.Context())
}

// deadlineConn refreshes the read deadline on every received message, so an
// active audio stream keeps its connection alive while an idle one times
// out after readTimeout.
type deadlineConn struct {
	*websocket.Conn
	readTimeout time.Duration
}

func (c *deadlineConn) ReadMessage() (int, []byte, error) {
	if c.readTimeout > 0 {
		c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	return c.Conn.ReadMessage()
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.HandleWebSocket(w, r)
}
