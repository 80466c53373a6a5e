package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/ingestvault/pkg/internal/handle"
)

// RegisterFilesRoutes 注册文件导入相关路由.
func RegisterFilesRoutes(g *gin.RouterGroup, files *handle.Files) {
	filesRoutes := g.Group("/files")
	{
		// 上传，支持一次提交多个文件
		filesRoutes.POST("/upload", files.Upload)
		// 导入记录列表
		filesRoutes.GET("", files.List)
		// 按唯一键查询明细
		filesRoutes.GET("/details", files.Details)
		// 单个文件的导入进度
		filesRoutes.GET("/:id/status", files.Status)
	}
}
