// Package api 组装对外的 HTTP 接口.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/ingestvault/pkg/internal/handle"
	"github.com/yeisme/ingestvault/pkg/internal/router"
)

// Prefix 业务接口的路径前缀.
const Prefix = "/api/v1"

// RegisterGroup 注册业务路由组到传入的 gin 引擎.
func RegisterGroup(e *gin.Engine, files *handle.Files) *gin.Engine {
	router.Register(e.Group(Prefix), files)

	return e
}
