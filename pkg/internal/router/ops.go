package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/ingestvault/pkg/internal/handle"
	"github.com/yeisme/ingestvault/pkg/internal/storage"
)

// RegisterOpsRoutes 健康检查与维护任务，限流与熔断都对 /health 放行.
func RegisterOpsRoutes(g *gin.RouterGroup) {
	health := g.Group("/health")
	health.GET("", handle.Health)

	for _, part := range storage.AllParts {
		health.GET("/"+string(part), handle.HealthPart(part))
	}

	jobs := g.Group("/scheduler/jobs")
	jobs.GET("", handle.SchedulerJobs)
	jobs.GET("/:name", handle.SchedulerJob)
	jobs.POST("/:name/run", handle.SchedulerRunJob)
}
