package events

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/server"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 15 * time.Second
	pingTimeout  = 10 * time.Second

	// WebSocketPath is served outside gin, see server.Mount.
	WebSocketPath = "/api/v1/events/ws"
)

type Handler struct {
	transport    *Transport
	pingInterval time.Duration
	pingTimeout  time.Duration
}

func NewHandler(t *Transport) *Handler {
	return &Handler{transport: t, pingInterval: pingInterval, pingTimeout: pingTimeout}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	v1 := r.Group("/api/v1")
	v1.GET("/events", h.ServeSSE)
	v1.GET("/events/stats", h.Stats)
}

// NewWebSocketMount exposes the WebSocket endpoint on the bare server mux.
func NewWebSocketMount(h *Handler) server.Mount {
	return server.Mount{Pattern: WebSocketPath, Handler: http.HandlerFunc(h.ServeWebSocket)}
}

// ServeSSE streams every event as a named server-sent event whose data is
// the JSON event envelope.
func (h *Handler) ServeSSE(c *gin.Context) {
	stream := h.transport.Open()
	defer stream.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-stream.Done():
			return false
		case e := <-stream.Events():
			c.SSEvent(string(e.Type), e)
			return true
		}
	})
}

// ServeWebSocket upgrades the request and writes one JSON text message per
// event until either side goes away. The server pings on an interval so a
// peer that stopped answering is dropped instead of holding a stream open.
func (h *Handler) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		zap.L().Warn("websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	stream := h.transport.Open()
	defer stream.Close()

	// Viewers never send anything; CloseRead only watches for the close
	// frame and answers pongs.
	ctx := conn.CloseRead(r.Context())

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stream.Done():
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-ping.C:
			if err := pingPeer(ctx, conn, h.pingTimeout); err != nil {
				zap.L().Debug("websocket peer stopped answering", zap.String("connection_id", stream.ID), zap.Error(err))
				return
			}
		case e := <-stream.Events():
			if err := writeEvent(ctx, conn, e); err != nil {
				if !errors.Is(err, context.Canceled) && websocket.CloseStatus(err) == -1 {
					zap.L().Debug("websocket write failed", zap.String("connection_id", stream.ID), zap.Error(err))
				}
				return
			}
		}
	}
}

func pingPeer(ctx context.Context, conn *websocket.Conn, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return conn.Ping(ctx)
}

func writeEvent(ctx context.Context, conn *websocket.Conn, e Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, e)
}

// Stats reports how many viewers are connected and how many bus
// subscriptions exist, viewers included.
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connections": h.transport.Connections(),
		"subscribers": h.transport.bus.Len(),
	})
}
