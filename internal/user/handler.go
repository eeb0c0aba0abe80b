package user

import (
	"errors"
	"net/http"

	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"github.com/gin-gonic/gin"
)

type usernameRequest struct {
	Username string `json:"username"`
}

// GetMe 返回当前访客的ID和昵称
func GetMe(c *gin.Context) {
	id := GetUserID(c)
	c.JSON(http.StatusOK, gin.H{"id": id, "username": Username(id)})
}

// PutUsername 设置当前访客在排行榜上展示的昵称
func PutUsername(c *gin.Context) {
	var req usernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误"})
		return
	}

	name, err := SetUsername(GetUserID(c), req.Username)
	if err != nil {
		if errors.Is(err, ErrInvalidUsername) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Errorf("设置昵称失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "设置昵称失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": name})
}
