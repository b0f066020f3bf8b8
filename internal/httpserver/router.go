package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"symbio/internal/handler"
	"symbio/pkg/otel"
	"symbio/pkg/rbac"
)

// Handlers 所有路由用到的 handler
type Handlers struct {
	Account      *handler.AccountHandler
	Project      *handler.ProjectHandler
	Proposal     *handler.ProposalHandler
	Milestone    *handler.MilestoneHandler
	Review       *handler.ReviewHandler
	Notification *handler.NotificationHandler
	Admin        *handler.AdminHandler
}

// Checker 用于 readyz，例如数据库 Ping
type Checker func(ctx context.Context) error

type Options struct {
	JWTSecret  string
	AdminToken string
	// WriteRPS 为 0 表示不限流
	WriteRPS   float64
	WriteBurst int
	Ready      map[string]Checker
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(h Handlers, opts Options, log *zap.Logger) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), otel.GinMiddleware(), AccessLog(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		for name, check := range opts.Ready {
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": name + "_not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/register", h.Account.Register)
	r.POST("/login", h.Account.Login)
	r.GET("/projects", h.Project.ListOpen)
	r.GET("/projects/:id", OptionalAuth(opts.JWTSecret), h.Project.Get)
	r.GET("/freelancers/:id/reviews", h.Review.ListForFreelancer)

	var limiter *UserRateLimiter
	if opts.WriteRPS > 0 {
		limiter = NewUserRateLimiter(opts.WriteRPS, opts.WriteBurst)
	}

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(opts.JWTSecret), RateLimitByUser(limiter))
	{
		auth.GET("/me/profile", h.Account.GetProfile)
		auth.PUT("/me/profile", h.Account.UpdateProfile)
		auth.GET("/me/proposals", h.Proposal.ListMine)

		auth.POST("/projects", RequirePermission(rbac.PermissionProjectCreate), h.Project.Create)
		auth.POST("/projects/:id/publish", RequirePermission(rbac.PermissionProjectManage), h.Project.Publish())
		auth.POST("/projects/:id/complete", RequirePermission(rbac.PermissionProjectManage), h.Project.Complete())
		auth.POST("/projects/:id/archive", RequirePermission(rbac.PermissionProjectManage), h.Project.Archive())
		auth.GET("/projects/:id/team", h.Project.Team)

		auth.POST("/projects/:id/proposals", RequirePermission(rbac.PermissionProposalSubmit), h.Proposal.Submit)
		auth.GET("/projects/:id/proposals", h.Proposal.ListForProject)
		auth.GET("/proposals/:id", h.Proposal.Get)
		auth.POST("/proposals/:id/accept", RequirePermission(rbac.PermissionProposalDecide), h.Proposal.Accept)
		auth.POST("/proposals/:id/reject", RequirePermission(rbac.PermissionProposalDecide), h.Proposal.Reject)

		auth.POST("/projects/:id/milestones", RequirePermission(rbac.PermissionMilestoneManage), h.Milestone.Create)
		auth.GET("/projects/:id/milestones", h.Milestone.List)
		auth.POST("/milestones/:id/submit", RequirePermission(rbac.PermissionMilestoneWork), h.Milestone.Submit())
		auth.POST("/milestones/:id/approve", RequirePermission(rbac.PermissionMilestoneManage), h.Milestone.Approve())
		auth.POST("/milestones/:id/pay", RequirePermission(rbac.PermissionMilestoneManage), h.Milestone.Pay())

		auth.POST("/projects/:id/reviews", RequirePermission(rbac.PermissionReviewCreate), h.Review.Create)

		auth.GET("/notifications", h.Notification.List)
		auth.POST("/notifications/:id/read", h.Notification.MarkRead)
	}

	// 未配置 admin token 时不开放管理接口
	if opts.AdminToken != "" && h.Admin != nil {
		admin := r.Group("/admin", AdminToken(opts.AdminToken))
		admin.POST("/outbox/replay", h.Admin.ReplayOutboxEvent)
		admin.POST("/outbox/replay-failed", h.Admin.ReplayFailedEvents)
	}

	return &Router{Engine: r}
}

// Serve 监听 addr，ctx 结束后优雅关闭
func (r *Router) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
