// Package middleware 提供 gin 中间件：日志、追踪、指标、限流、熔断以及资源注入.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	ctxPkg "github.com/yeisme/ingestvault/pkg/context"
)

// RequestIDHeader 请求 id 头.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// RequestIDMiddleware 沿用客户端传入的请求 id，没有时生成一个，并写回响应头.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		c.Request = c.Request.WithContext(ctxPkg.WithRequestID(c.Request.Context(), id))
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID 返回当前请求 id.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
