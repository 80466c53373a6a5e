package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/ingestvault/pkg/metrics"
)

// PrometheusMiddleware 记录请求数与耗时.endpoint 使用路由模板，/files/:id/status 不按 id 展开.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		metrics.ActiveConnections.Inc()
		defer metrics.ActiveConnections.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		method := c.Request.Method

		metrics.RequestCounter.WithLabelValues(method, route, statusClass(c.Writer.Status())).Inc()
		metrics.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// statusClass 把状态码归并为 2xx、4xx 这样的类别.
func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
