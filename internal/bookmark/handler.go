package bookmark

import (
	"errors"
	"net/http"

	"github.com/SlpAus/book-summaries-backend/internal/platform/database"
	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"github.com/SlpAus/book-summaries-backend/internal/user"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc    *Service
	exists func(slug string) bool
}

func NewHandler(svc *Service, exists func(slug string) bool) *Handler {
	return &Handler{svc: svc, exists: exists}
}

// Toggle 切换一本书的收藏状态
func (h *Handler) Toggle(c *gin.Context) {
	if !database.IsRedisHealthy() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "服务暂时不可用，请稍后重试"})
		return
	}
	slug := c.Param("slug")
	if !h.exists(slug) {
		c.JSON(http.StatusNotFound, gin.H{"error": "找不到这本书"})
		return
	}
	res, err := h.svc.Toggle(c.Request.Context(), user.GetUserID(c), slug)
	if err != nil {
		logger.Errorf("切换收藏失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存收藏失败"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// Remove 从收藏弹窗中移除一本书
func (h *Handler) Remove(c *gin.Context) {
	if !database.IsRedisHealthy() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "服务暂时不可用，请稍后重试"})
		return
	}
	if err := h.svc.Remove(c.Request.Context(), user.GetUserID(c), c.Param("slug")); err != nil {
		logger.Errorf("移除收藏失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "移除收藏失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": h.svc.List(c.Request.Context(), user.GetUserID(c))})
}

// List 返回当前访客的收藏
func (h *Handler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.svc.List(c.Request.Context(), user.GetUserID(c))})
}

// Export 以附件形式下载收藏清单
func (h *Handler) Export(c *gin.Context) {
	body, err := h.svc.Export(c.Request.Context(), user.GetUserID(c))
	if err != nil {
		if errors.Is(err, ErrNoBookmarks) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "导出收藏失败"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+ExportFileName+`"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", body)
}
