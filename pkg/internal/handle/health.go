package handle

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/ingestvault/pkg/context"
	"github.com/yeisme/ingestvault/pkg/internal/storage"
)

const timeout = 2 * time.Second

// Health 检查全部已初始化的资源，任一异常返回 503.
func Health(c *gin.Context) {
	mgr := ctxPkg.GetManager(c.Request.Context())
	if mgr == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "storage manager not initialized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	code := http.StatusOK
	parts := gin.H{}

	for part, err := range mgr.HealthCheck(ctx) {
		if err != nil {
			code = http.StatusServiceUnavailable
			parts[string(part)] = gin.H{"status": "unhealthy", "error": err.Error()}

			continue
		}

		parts[string(part)] = gin.H{"status": "ok"}
	}

	status := "ok"
	if code != http.StatusOK {
		status = "unhealthy"
	}

	c.JSON(code, gin.H{"status": status, "components": parts})
}

// HealthPart 返回单个资源的健康检查处理器.
func HealthPart(part storage.Part) gin.HandlerFunc {
	return func(c *gin.Context) {
		mgr := ctxPkg.GetManager(c.Request.Context())
		if mgr == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"component": part, "status": "unhealthy", "error": "storage manager not initialized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		err, ok := mgr.HealthCheck(ctx)[part]
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"component": part, "status": "unhealthy", "error": string(part) + " not initialized"})
			return
		}

		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"component": part, "status": "unhealthy", "error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"component": part, "status": "ok"})
	}
}
