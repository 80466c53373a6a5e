// Package context 在请求 context 中携带存储资源与请求标识，handler 与日志从这里读取.
package context

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/ingestvault/pkg/internal/storage"
)

type key int

const (
	managerKey key = iota
	requestIDKey
)

// WithStorageManager 将 Manager 存储到 context 中.
func WithStorageManager(ctx context.Context, mgr *storage.Manager) context.Context {
	return context.WithValue(ctx, managerKey, mgr)
}

// GetManager 从 context 中获取 Manager，未注入时返回 nil.
func GetManager(ctx context.Context) *storage.Manager {
	mgr, _ := ctx.Value(managerKey).(*storage.Manager)

	return mgr
}

// WithRequestID 记录请求 id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID 返回请求 id，没有时为空字符串.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)

	return id
}

// Logger 在 base 上附加 request_id 与当前 span 的 trace_id、span_id.
func Logger(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	lc := base.With()

	if id := RequestID(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		lc = lc.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
	}

	return lc.Logger()
}
