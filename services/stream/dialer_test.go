package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/server"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/events"
)

func newEventServer(t *testing.T) (*events.Bus, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bus := events.NewBus()
	h := events.NewHandler(events.NewTransport(bus))
	r := gin.New()
	events.RegisterRoutes(r, h)

	srv := httptest.NewServer(server.NewMux(r, events.NewWebSocketMount(h)))
	t.Cleanup(srv.Close)
	return bus, srv
}

func TestConsumerReceivesConnectedFromEventServer(t *testing.T) {
	bus, srv := newEventServer(t)

	dialer, err := NewWebSocketDialer(srv.URL)
	require.NoError(t, err)

	connected := make(chan events.ConnectedData, 1)
	awarded := make(chan events.XPAwardedData, 1)

	c := NewConsumer(dialer)
	c.Handle(events.KindConnected, func(_ context.Context, env events.Envelope) error {
		var data events.ConnectedData
		if err := env.Decode(&data); err != nil {
			return err
		}
		connected <- data
		return nil
	})
	c.Handle(events.KindXPAwarded, func(_ context.Context, env events.Envelope) error {
		var data events.XPAwardedData
		if err := env.Decode(&data); err != nil {
			return err
		}
		awarded <- data
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case data := <-connected:
		require.NotEmpty(t, data.ConnectionID)
	case <-time.After(5 * time.Second):
		t.Fatal("no connected event")
	}
	require.Eventually(t, func() bool { return c.State() == StateConnected }, time.Second, 10*time.Millisecond)
	require.Zero(t, c.Attempts())

	bus.Publish(events.New(events.KindXPAwarded, events.XPAwardedData{MemberID: "m-1", Amount: 75}))
	select {
	case data := <-awarded:
		require.Equal(t, int64(75), data.Amount)
	case <-time.After(5 * time.Second):
		t.Fatal("no xp_awarded event")
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
	require.Equal(t, StateStopped, c.State())
}

func TestDialerDropsSilentServer(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		// Never reads, so pings go unanswered.
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	d := &WebSocketDialer{
		URL:          "ws" + strings.TrimPrefix(srv.URL, "http"),
		PingInterval: 50 * time.Millisecond,
		PingTimeout:  100 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := d.Dial(ctx)
	require.NoError(t, err)
	defer conn.Close()

	started := time.Now()
	_, err = conn.Read(ctx)
	require.Error(t, err)
	require.False(t, errors.Is(err, context.DeadlineExceeded))
	require.Less(t, time.Since(started), 3*time.Second)
}
