package views

import (
	"net/http"

	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"github.com/gin-gonic/gin"
)

// Counter 在内存书目中同步浏览数，供“最受欢迎”排序使用
type Counter interface {
	IncrementViews(slug string) bool
}

type Handler struct {
	tracker Tracker
	counter Counter
}

func NewHandler(tracker Tracker, counter Counter) *Handler {
	return &Handler{tracker: tracker, counter: counter}
}

type trackRequest struct {
	Slug string `json:"slug"`
}

// TrackView 为书目的浏览数加一
func (h *Handler) TrackView(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil || !ValidSlug(req.Slug) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidSlug.Error()})
		return
	}

	if err := h.tracker.Increment(c.Request.Context(), req.Slug); err != nil {
		logger.Errorf("记录浏览数失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	if h.counter != nil {
		h.counter.IncrementViews(req.Slug)
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
