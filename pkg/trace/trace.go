package trace

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// HeaderName 是 HTTP 与 MQ 消息头中携带 trace_id 的字段名
const HeaderName = "X-Trace-ID"

// GenerateTraceID 生成一个新的 trace ID
func GenerateTraceID() string {
	return uuid.NewString()
}

// FromContext 从 context 中获取 trace_id
func FromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(ctxKey{}).(string); ok {
		return traceID
	}
	return ""
}

// WithContext 将 trace_id 添加到 context 中
func WithContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, traceID)
}

// Ensure 返回带有 trace_id 的 context；已有则原样返回
func Ensure(ctx context.Context) (context.Context, string) {
	if traceID := FromContext(ctx); traceID != "" {
		return ctx, traceID
	}
	traceID := GenerateTraceID()
	return WithContext(ctx, traceID), traceID
}
