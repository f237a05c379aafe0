package public

import (
	"github.com/cartline-next/internal/http/response"
	"github.com/cartline-next/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// requestLog 提供携带 request_id 的日志实例。
func requestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// respondError 返回错误响应，并在有原始错误时记录日志。
func respondError(c *gin.Context, code int, msg string, err error) {
	if err != nil {
		requestLog(c).Errorw("handler_error",
			"code", code,
			"message", msg,
			"error", err,
		)
	}
	response.Error(c, code, msg)
}

// optionalUserID 读取中间件注入的用户身份，游客返回 0。
func optionalUserID(c *gin.Context) uint {
	value, exists := c.Get("user_id")
	if !exists {
		return 0
	}
	switch v := value.(type) {
	case uint:
		return v
	case int:
		if v < 0 {
			return 0
		}
		return uint(v)
	case float64:
		if v < 0 {
			return 0
		}
		return uint(v)
	default:
		return 0
	}
}

// normalizePagination 归一化分页参数。
func normalizePagination(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
