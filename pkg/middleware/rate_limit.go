package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yeisme/ingestvault/pkg/configs"
)

// maxLimiterEntries 按键限流时最多保留的 limiter 数，超过后整体重置.
const maxLimiterEntries = 10000

// uploadPath 单独限流的上传接口.
const uploadPath = "/api/v1/files/upload"

// limiterSet 按键维护令牌桶.
type limiterSet struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newLimiterSet(rps float64, burst int) *limiterSet {
	return &limiterSet{rps: rate.Limit(rps), burst: burst, limiters: map[string]*rate.Limiter{}}
}

func (s *limiterSet) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[key]
	if !ok {
		// 被重置的客户端重新获得完整的突发容量
		if len(s.limiters) >= maxLimiterEntries {
			s.limiters = map[string]*rate.Limiter{}
		}

		l = rate.NewLimiter(s.rps, s.burst)
		s.limiters[key] = l
	}

	return l.Allow()
}

// RateLimitMiddleware 返回一个基于配置的限流中间件，上传接口使用独立的限额.
func RateLimitMiddleware(cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	keyFn := limitKey(strings.ToLower(strings.TrimSpace(cfg.Key)))
	general := newLimiterSet(cfg.RPS, cfg.Burst)

	upload := general
	if cfg.UploadRPS > 0 {
		upload = newLimiterSet(cfg.UploadRPS, cfg.UploadBurst)
	}

	return func(c *gin.Context) {
		if exempt(c.Request.URL.Path, cfg.Exempt) {
			c.Next()
			return
		}

		set := general
		if c.Request.Method == http.MethodPost && c.Request.URL.Path == uploadPath {
			set = upload
		}

		if !set.allow(keyFn(c)) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				gin.H{"error": "rate limit exceeded, please retry later"})

			return
		}

		c.Next()
	}
}

// limitKey 选择限流维度：global、ip 或 header:Name，请求头为空时退回到 IP.
func limitKey(mode string) func(c *gin.Context) string {
	switch {
	case mode == "global" || mode == "":
		return func(*gin.Context) string { return "global" }
	case strings.HasPrefix(mode, "header:"):
		h := strings.TrimPrefix(mode, "header:")

		return func(c *gin.Context) string {
			if v := c.GetHeader(h); v != "" {
				return "h:" + v
			}

			return clientIP(c)
		}
	default:
		return clientIP
	}
}

func exempt(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}

func clientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}

	return host
}
