package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/ingestvault/pkg/configs"
)

// CORSMiddleware 跨域配置，浏览器端需要读取 X-Request-ID 以便排查上传问题.
func CORSMiddleware(cfg configs.ServerConfig) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = append(config.AllowHeaders, "Authorization", RequestIDHeader)
	config.ExposeHeaders = []string{RequestIDHeader, "Retry-After"}

	if len(cfg.AllowOrigins) > 0 {
		config.AllowOrigins = cfg.AllowOrigins
	} else {
		config.AllowAllOrigins = true
	}

	return cors.New(config)
}
