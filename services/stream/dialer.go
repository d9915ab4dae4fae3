package stream

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nickh0112/jira-ticket-planner-sub001/services/events"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

const (
	defaultPingInterval = 15 * time.Second
	defaultPingTimeout  = 10 * time.Second
)

// WebSocketDialer connects to the server's WebSocket event endpoint. While
// a connection is open it pings the server every PingInterval; a pong that
// does not arrive within PingTimeout closes the connection, so a silent
// peer surfaces as a Read error.
type WebSocketDialer struct {
	URL          string
	PingInterval time.Duration
	PingTimeout  time.Duration
}

// NewWebSocketDialer derives the ws(s) endpoint from the server base url.
func NewWebSocketDialer(serverURL string) (*WebSocketDialer, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + events.WebSocketPath
	return &WebSocketDialer{
		URL:          u.String(),
		PingInterval: defaultPingInterval,
		PingTimeout:  defaultPingTimeout,
	}, nil
}

func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, d.URL, nil)
	if err != nil {
		return nil, err
	}
	c := &wsConn{conn: conn, done: make(chan struct{})}
	if d.PingInterval > 0 {
		timeout := d.PingTimeout
		if timeout <= 0 {
			timeout = defaultPingTimeout
		}
		go c.keepalive(d.PingInterval, timeout)
	}
	return c, nil
}

type wsConn struct {
	conn *websocket.Conn
	done chan struct{}
	once sync.Once
}

// keepalive relies on the concurrent Read in the consumer to receive pongs.
func (c *wsConn) keepalive(interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				zap.L().Debug("event stream ping failed, dropping connection", zap.Error(err))
				_ = c.conn.CloseNow()
				return
			}
		}
	}
}

func (c *wsConn) Read(ctx context.Context) (events.Envelope, error) {
	var env events.Envelope
	err := wsjson.Read(ctx, c.conn, &env)
	return env, err
}

func (c *wsConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
