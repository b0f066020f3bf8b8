package httpserver

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"symbio/internal/handler"
	"symbio/pkg/logger"
	"symbio/pkg/metrics"
	"symbio/pkg/rbac"
	"symbio/pkg/trace"
	"symbio/pkg/util"
)

// TraceMiddleware 从请求头读取或生成 trace_id，并写回响应头
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id := c.GetHeader(trace.HeaderName); id != "" {
			ctx = trace.WithContext(ctx, id)
		}
		ctx, traceID := trace.Ensure(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(trace.HeaderName, traceID)
		c.Next()
	}
}

// AccessLog 记录请求日志和耗时指标
func AccessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		metrics.RecordHTTPRequestDuration(c.Request.Method, route, strconv.Itoa(status), elapsed)

		if route == "/metrics" || route == "/healthz" {
			return
		}
		logger.WithTrace(c.Request.Context(), log).Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", elapsed),
		)
	}
}

func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := util.ParseJWT(token, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		// store user_id / role in context so handlers can use it
		c.Set(handler.ContextKeyUserID, claims.UserID)
		c.Set(handler.ContextKeyRole, claims.Role)
		c.Next()
	}
}

// OptionalAuth 公开路由使用：带 token 时校验并写入身份，不带 token 按匿名处理
func OptionalAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			c.Next()
			return
		}
		claims, err := util.ParseJWT(token, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(handler.ContextKeyUserID, claims.UserID)
		c.Set(handler.ContextKeyRole, claims.Role)
		c.Next()
	}
}

// RequirePermission 中间件：要求用户角色具有指定权限
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(handler.ContextKeyRole)
		if err := rbac.CheckPermission(role, permission); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error(), "kind": "forbidden"})
			return
		}
		c.Next()
	}
}

// AdminToken 校验 X-Admin-Token
func AdminToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Token") != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
			return
		}
		c.Next()
	}
}

// UserRateLimiter 每个用户一个令牌桶
type UserRateLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewUserRateLimiter(rps float64, burst int) *UserRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &UserRateLimiter{
		limiters: make(map[int64]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

func (l *UserRateLimiter) Allow(userID int64) bool {
	l.mu.Lock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// RateLimitByUser 只作用于写请求；必须放在 AuthMiddleware 之后
func RateLimitByUser(l *UserRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		userID, _ := c.Get(handler.ContextKeyUserID)
		id, _ := userID.(int64)
		if !l.Allow(id) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
