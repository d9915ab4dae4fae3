package syncer

import (
	"errors"
	"net/http"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/errutil"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/task"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/tracker"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

type Handler struct {
	scheduler  *Scheduler
	reconciler *Reconciler
	enqueuer   task.Enqueuer
}

type HandlerParams struct {
	fx.In
	Scheduler  *Scheduler
	Reconciler *Reconciler
	Enqueuer   task.Enqueuer `optional:"true"`
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{scheduler: p.Scheduler, reconciler: p.Reconciler, enqueuer: p.Enqueuer}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	v1 := r.Group("/api/v1")
	v1.POST("/sync/trigger", h.Trigger)
	v1.GET("/sync/status", h.Status)
	v1.PUT("/sync/config", h.UpdateConfig)
	v1.POST("/sync/active", h.ReconcileActive)
	v1.GET("/active", h.ListActive)
}

type triggerResponse struct {
	Triggered    bool   `json:"triggered"`
	CycleID      string `json:"cycleId,omitempty"`
	Processed    int    `json:"processed"`
	Skipped      int    `json:"skipped"`
	Unattributed int    `json:"unattributed"`
	TotalReward  int64  `json:"totalReward"`
	Error        string `json:"error,omitempty"`
}

// Trigger runs a cycle now. A trigger dropped by the single-flight guard
// answers triggered=false; a failed cycle still answers 200.
func (h *Handler) Trigger(c *gin.Context) {
	res, ran := h.scheduler.TriggerNow(c.Request.Context())
	resp := triggerResponse{
		Triggered:    ran,
		CycleID:      res.CycleID,
		Processed:    res.Processed,
		Skipped:      res.Skipped,
		Unattributed: res.Unattributed,
		TotalReward:  res.TotalReward,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Status(c *gin.Context) {
	status, err := h.scheduler.Status(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) UpdateConfig(c *gin.Context) {
	var req ConfigUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	state, err := h.scheduler.Reconfigure(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	status, err := h.scheduler.Status(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	status.SyncState = state
	c.JSON(http.StatusOK, status)
}

func (h *Handler) ReconcileActive(c *gin.Context) {
	ctx := c.Request.Context()

	if h.enqueuer != nil {
		info, err := h.enqueuer.Enqueue(ctx, NewReconcileActiveTask())
		if err != nil {
			_ = c.Error(errutil.ServiceUnavailable("failed to queue reconciliation", err))
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"queued": true, "taskId": info.ID})
		return
	}

	res, err := h.reconciler.Reconcile(ctx)
	if err != nil {
		var te *tracker.TransientError
		var pe *tracker.PermanentError
		if errors.As(err, &te) || errors.As(err, &pe) {
			_ = c.Error(errutil.BadGateway("tracker request failed", err))
			return
		}
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListActive(c *gin.Context) {
	rows, err := h.reconciler.List(c.Request.Context(), c.Query("memberId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": rows})
}
