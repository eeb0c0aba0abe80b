package user

import (
	"net/http"

	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"github.com/gin-gonic/gin"
)

const (
	CookieName   = "user-id"
	CookieMaxAge = 365 * 24 * 60 * 60
	UserIDKey    = "userID"
)

// EnsureUserCookieMiddleware 确保访客的浏览器中有一个格式正确的user-id cookie。
// 如果没有或格式不正确，它会生成一个新的ID，设置cookie，并在本次请求中直接使用它。
func EnsureUserCookieMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := c.Cookie(CookieName)

		if err != nil || !IsValidUUID(userID) {
			if err != http.ErrNoCookie {
				logger.Warnf("检测到无效的访客Cookie: %s, err: %v", userID, err)
			}
			provisionalUserID, err := CreateProvisionalUser()
			if err != nil {
				logger.Errorf("创建临时访客ID时发生错误: %v", err)
				userID = ""
			} else {
				c.SetCookie(CookieName, provisionalUserID, CookieMaxAge, "/", "", false, true)
				userID = provisionalUserID
			}
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// GetUserID 返回中间件放入上下文的访客ID
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
