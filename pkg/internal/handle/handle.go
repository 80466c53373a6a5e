// Package handle 提供 HTTP 请求处理器的实现.
package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/ingestvault/pkg/internal/ingest"
	"github.com/yeisme/ingestvault/pkg/log"
)

// respondError 按错误分类返回状态码：内容校验 422，不存在 404，其余 500.
func respondError(c *gin.Context, err error, msg string) {
	var iv *ingest.IntakeValidationError

	switch {
	case errors.As(err, &iv):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": iv.Error(), "missing": iv.Missing})
	case errors.Is(err, ingest.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": msg + ": not found"})
	default:
		l := log.Logger()
		l.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
