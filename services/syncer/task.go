package syncer

import (
	"context"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/task"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/taskname"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/events"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewReconcileActiveTask() *asynq.Task {
	return asynq.NewTask(taskname.TrackerReconcileActive, nil,
		asynq.Queue(taskname.QueueDefault),
		asynq.MaxRetry(3),
	)
}

type TaskHandler struct {
	reconciler *Reconciler
}

func NewTaskHandler(r *Reconciler) *TaskHandler {
	return &TaskHandler{reconciler: r}
}

// HandleReconcileActive is the asynq worker entry for active reconciliation.
func (h *TaskHandler) HandleReconcileActive(ctx context.Context, t *asynq.Task) error {
	res, err := h.reconciler.Reconcile(ctx)
	if err != nil {
		zap.L().Error("active reconciliation task failed", zap.String("task_type", t.Type()), zap.Error(err))
		return err
	}
	zap.L().Info("active reconciliation task finished", zap.Int("upserted", res.Upserted), zap.Int("removed", res.Removed))
	return nil
}

type taskRegistration struct {
	fx.In
	Mux     *asynq.ServeMux `optional:"true"`
	Handler *TaskHandler
}

func registerTaskHandlers(p taskRegistration) {
	if p.Mux == nil {
		return
	}
	p.Mux.HandleFunc(taskname.TrackerReconcileActive, p.Handler.HandleReconcileActive)
}

// activeRefresher refreshes the active cache after a cycle recorded new
// completions, since those items just left the open set.
type activeRefresher struct {
	reconciler *Reconciler
	enqueuer   task.Enqueuer
	run        func(func())
}

func (a *activeRefresher) handle(e events.Event) error {
	if e.Type != events.KindSyncCompleted {
		return nil
	}
	data, ok := e.Data.(events.SyncCompletedData)
	if !ok || data.Processed == 0 {
		return nil
	}

	a.run(func() {
		if a.enqueuer != nil {
			if _, err := a.enqueuer.Enqueue(context.Background(), NewReconcileActiveTask()); err != nil {
				zap.L().Warn("failed to queue active reconciliation", zap.Error(err))
			}
			return
		}
		if _, err := a.reconciler.Reconcile(context.Background()); err != nil {
			zap.L().Warn("active reconciliation after sync failed", zap.Error(err))
		}
	})
	return nil
}

type refresherParams struct {
	fx.In
	Lifecycle  fx.Lifecycle
	Bus        *events.Bus
	Reconciler *Reconciler
	Enqueuer   task.Enqueuer `optional:"true"`
}

func subscribeActiveRefresher(p refresherParams) {
	a := &activeRefresher{
		reconciler: p.Reconciler,
		enqueuer:   p.Enqueuer,
		run:        func(fn func()) { go fn() },
	}
	var unsubscribe func()
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			unsubscribe = p.Bus.Subscribe(a.handle)
			return nil
		},
		OnStop: func(context.Context) error {
			if unsubscribe != nil {
				unsubscribe()
			}
			return nil
		},
	})
}
