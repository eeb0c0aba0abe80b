package stats

import (
	"net/http"

	"github.com/SlpAus/book-summaries-backend/internal/platform/database"
	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"github.com/SlpAus/book-summaries-backend/internal/user"
	"github.com/gin-gonic/gin"
)

// Catalog 用于校验书目是否存在
type Catalog interface {
	Exists(slug string) bool
}

type Handler struct {
	svc     *Service
	catalog Catalog
}

func NewHandler(svc *Service, catalog Catalog) *Handler {
	return &Handler{svc: svc, catalog: catalog}
}

// GetMyStats 返回当前访客的积分、阅读数、进度和徽章
func (h *Handler) GetMyStats(c *gin.Context) {
	st := h.svc.GetStats(c.Request.Context(), user.GetUserID(c))
	c.JSON(http.StatusOK, Project(st))
}

// ToggleRead 切换一本书的已读状态
func (h *Handler) ToggleRead(c *gin.Context) {
	if !database.IsRedisHealthy() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "服务暂时不可用，请稍后重试"})
		return
	}
	slug := c.Param("slug")
	if !h.catalog.Exists(slug) {
		c.JSON(http.StatusNotFound, gin.H{"error": "找不到这本书"})
		return
	}

	res, err := h.svc.ToggleReadStatus(c.Request.Context(), user.GetUserID(c), slug)
	if err != nil {
		logger.Errorf("切换阅读状态失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存阅读状态失败"})
		return
	}
	c.JSON(http.StatusOK, res)
}
