package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const defaultBufferSize = 64

var streamDropped = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "ticketsync_stream_dropped_total",
	Help: "Events dropped because a viewer connection could not keep up.",
})

func init() {
	prometheus.MustRegister(streamDropped)
}

// Transport fans bus events out to per-connection queues. Delivery is
// fire-and-forget: a full queue drops the event for that connection only.
type Transport struct {
	bus    *Bus
	buffer int

	mu    sync.Mutex
	conns map[string]*Stream
}

func NewTransport(bus *Bus) *Transport {
	return &Transport{bus: bus, buffer: defaultBufferSize, conns: map[string]*Stream{}}
}

// Stream is one viewer connection.
type Stream struct {
	ID string

	ch          chan Event
	done        chan struct{}
	once        sync.Once
	unsubscribe func()
	release     func()
}

// Open registers a new connection. The first queued event is always the
// synthetic connected event.
func (t *Transport) Open() *Stream {
	s := &Stream{
		ID:   uuid.NewString(),
		ch:   make(chan Event, t.buffer),
		done: make(chan struct{}),
	}
	s.ch <- New(KindConnected, ConnectedData{ConnectionID: s.ID})

	s.unsubscribe = t.bus.Subscribe(s.offer)
	s.release = func() {
		t.mu.Lock()
		delete(t.conns, s.ID)
		t.mu.Unlock()
	}

	t.mu.Lock()
	t.conns[s.ID] = s
	n := len(t.conns)
	t.mu.Unlock()

	zap.L().Debug("viewer connected", zap.String("connection_id", s.ID), zap.Int("connections", n))
	return s
}

// Connections reports the number of open streams.
func (t *Transport) Connections() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

func (s *Stream) offer(e Event) error {
	select {
	case <-s.done:
		return nil
	default:
	}

	select {
	case s.ch <- e:
	default:
		streamDropped.Inc()
		zap.L().Debug("viewer queue full, event dropped",
			zap.String("connection_id", s.ID),
			zap.String("event", string(e.Type)),
		)
	}
	return nil
}

// Events is the connection's queue. It is never closed; select on Done too.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Close deregisters the connection. Safe to call more than once.
func (s *Stream) Close() {
	s.once.Do(func() {
		close(s.done)
		s.unsubscribe()
		s.release()
		zap.L().Debug("viewer disconnected", zap.String("connection_id", s.ID))
	})
}
