package ratelimit

import (
	"net/http"
	"time"

	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"github.com/gin-gonic/gin"
)

// Middleware 限制每个IP在窗口内的请求次数，超出时返回429。
// 下游处理失败(状态码>=400)时撤销本次计数，失败的请求不占用额度。
func Middleware(l Limiter, max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, comp, err := l.Hit(c.Request.Context(), c.ClientIP(), time.Now())
		if err != nil {
			logger.Warnf("请求频率统计失败，放行本次请求: %v", err)
			c.Next()
			return
		}
		if count > max {
			comp.RollbackUnlessCommitted(c.Request.Context())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many submissions, please try again later."})
			return
		}

		c.Next()

		if c.Writer.Status() < http.StatusBadRequest {
			comp.Commit()
		}
		comp.RollbackUnlessCommitted(c.Request.Context())
	}
}
