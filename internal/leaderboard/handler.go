package leaderboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GetLeaderboard 返回排行榜，不会失败
func (h *Handler) GetLeaderboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Populate(c.Request.Context()))
}
