package syncer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Cycler runs one sync cycle. *Processor satisfies it.
type Cycler interface {
	RunCycle(ctx context.Context) CycleResult
}

// Status is the scheduler snapshot served by the status endpoint.
type Status struct {
	IsRunning         bool       `json:"isRunning"`
	IsSyncing         bool       `json:"isSyncing"`
	HasScheduledTimer bool       `json:"hasScheduledTimer"`
	SyncState         *SyncState `json:"syncState"`
}

// Scheduler owns the timer loop. Cycles never overlap: a trigger that
// arrives while one is in flight is dropped without side effects.
type Scheduler struct {
	cycler Cycler
	state  *StateStore
	locker Locker

	// reconfigMu serializes Reconfigure so the persisted settings and the
	// running timer cannot diverge.
	reconfigMu sync.Mutex

	mu       sync.Mutex
	running  bool
	armed    bool
	loopGen  uint64
	interval time.Duration
	cancel   context.CancelFunc

	isSyncing atomic.Bool
	inflight  sync.WaitGroup
}

type SchedulerParams struct {
	fx.In
	Cycler Cycler
	State  *StateStore
	Locker Locker `optional:"true"`
}

func NewScheduler(p SchedulerParams) *Scheduler {
	locker := p.Locker
	if locker == nil {
		locker = NopLocker{}
	}
	return &Scheduler{cycler: p.Cycler, state: p.State, locker: locker}
}

// Start is a no-op when sync is disabled or the scheduler already runs.
// Otherwise one cycle runs right away and then one every interval.
func (s *Scheduler) Start(ctx context.Context) error {
	st, err := s.state.Get(ctx)
	if err != nil {
		return err
	}
	if !st.Enabled {
		zap.L().Info("sync disabled, scheduler not started")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	interval := st.Interval()
	if interval <= 0 {
		interval = time.Duration(minIntervalMs) * time.Millisecond
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.armed = true
	s.loopGen++
	s.interval = interval
	s.cancel = cancel
	go s.loop(loopCtx, s.loopGen, interval)

	zap.L().Info("sync scheduler started", zap.Duration("interval", interval))
	return nil
}

func (s *Scheduler) loop(ctx context.Context, gen uint64, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer func() {
		ticker.Stop()
		s.mu.Lock()
		if s.loopGen == gen {
			s.armed = false
		}
		s.mu.Unlock()
	}()

	s.trigger(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

// Stop cancels the pending timer. A cycle already in flight runs to its
// terminal event. Stopping a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	s.cancel = nil
	s.running = false
	s.armed = false
	s.interval = 0
	zap.L().Info("sync scheduler stopped")
}

// TriggerNow runs a cycle synchronously through the single-flight guard.
// ran is false when the trigger was dropped.
func (s *Scheduler) TriggerNow(ctx context.Context) (CycleResult, bool) {
	return s.trigger(ctx)
}

func (s *Scheduler) trigger(ctx context.Context) (CycleResult, bool) {
	if !s.isSyncing.CompareAndSwap(false, true) {
		cyclesSkipped.Inc()
		zap.L().Debug("sync cycle already in flight, trigger dropped")
		return CycleResult{}, false
	}
	defer s.isSyncing.Store(false)

	s.inflight.Add(1)
	defer s.inflight.Done()

	// The cycle must outlive both Stop and a cancelled caller.
	ctx = context.WithoutCancel(ctx)

	release, ok, err := s.locker.TryLock(ctx)
	if err != nil {
		zap.L().Warn("failed to acquire sync lock, trigger dropped", zap.Error(err))
		cyclesSkipped.Inc()
		return CycleResult{}, false
	}
	if !ok {
		zap.L().Debug("sync lock held by another process, trigger dropped")
		cyclesSkipped.Inc()
		return CycleResult{}, false
	}
	defer release()

	return s.cycler.RunCycle(ctx), true
}

// Reconfigure persists u and restarts the timer with the new settings, or
// stops it when sync ends up disabled.
func (s *Scheduler) Reconfigure(ctx context.Context, u ConfigUpdate) (*SyncState, error) {
	s.reconfigMu.Lock()
	defer s.reconfigMu.Unlock()

	st, err := s.state.Apply(ctx, u)
	if err != nil {
		return nil, err
	}

	s.Stop()
	if st.Enabled {
		if err := s.Start(ctx); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// Interval is the period of the running timer, zero when stopped.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Scheduler) Status(ctx context.Context) (*Status, error) {
	st, err := s.state.Get(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	running, armed := s.running, s.armed
	s.mu.Unlock()

	return &Status{
		IsRunning:         running,
		IsSyncing:         s.isSyncing.Load(),
		HasScheduledTimer: armed,
		SyncState:         st,
	}, nil
}

// Wait blocks until in-flight cycles finish or ctx ends.
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func RunScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			s.Stop()
			return s.Wait(ctx)
		},
	})
}
