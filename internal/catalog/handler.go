package catalog

import (
	"errors"
	"net/http"

	"github.com/SlpAus/book-summaries-backend/internal/user"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GetBook 根据slug获取单本书的信息
func (h *Handler) GetBook(c *gin.Context) {
	slug := c.Param("slug")
	item, ok := h.svc.repo.Get(slug)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "找不到这本书"})
		return
	}
	c.JSON(http.StatusOK, item)
}

// GetRandomBook 返回随机一本书的地址
func (h *Handler) GetRandomBook(c *gin.Context) {
	url, err := h.svc.RandomURL()
	if err != nil {
		if errors.Is(err, ErrEmptyCatalog) {
			c.JSON(http.StatusNotFound, gin.H{"error": "书目为空"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取随机书目失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// ClearFilter 清除当前访客的筛选偏好
func (h *Handler) ClearFilter(c *gin.Context) {
	sel := h.svc.Clear(c.Request.Context(), user.GetUserID(c))
	c.JSON(http.StatusOK, gin.H{"filter": sel})
}
