// Package router 管理路由配置，把 handle 包的处理器绑定到 gin 路由组.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/ingestvault/pkg/internal/handle"
)

// Register 绑定全部业务路由，假定上层传入 /api/v1 分组：
//
//	POST   /files/upload                 -> Upload
//	GET    /files                        -> List
//	GET    /files/:id/status             -> Status
//	GET    /files/details                -> Details
//	GET    /health, /health/:part        -> Health
//	GET    /scheduler/jobs               -> SchedulerJobs
//	GET    /scheduler/jobs/:name         -> SchedulerJob
//	POST   /scheduler/jobs/:name/run     -> SchedulerRunJob
func Register(group *gin.RouterGroup, files *handle.Files) {
	RegisterFilesRoutes(group, files)
	RegisterOpsRoutes(group)
}
