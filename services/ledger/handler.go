package ledger

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/db/pagination"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/errutil"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	v1 := r.Group("/api/v1")
	v1.GET("/members/:id/progress", h.GetProgress)
	v1.GET("/level-ups", h.ListLevelUps)
	v1.POST("/level-ups/:id/ack", h.AcknowledgeLevelUp)
	v1.GET("/completions", h.ListCompletions)
}

func (h *Handler) GetProgress(c *gin.Context) {
	progress, err := h.service.GetProgress(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (h *Handler) ListLevelUps(c *gin.Context) {
	pending, _ := strconv.ParseBool(c.DefaultQuery("pending", "false"))
	events, err := h.service.ListLevelUps(c.Request.Context(), pending)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"levelUps": events})
}

func (h *Handler) AcknowledgeLevelUp(c *gin.Context) {
	event, err := h.service.AcknowledgeLevelUp(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		_ = c.Error(errutil.NotFound("level-up event not found", err))
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *Handler) ListCompletions(c *gin.Context) {
	var p pagination.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination", err))
		return
	}

	records, info, err := h.service.ListRecords(c.Request.Context(), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completions": records, "pageInfo": info})
}
