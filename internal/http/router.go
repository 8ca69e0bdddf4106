package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/config"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/service"
)

// RateLimiter is a simple in-memory sliding window limiter
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

// NewRateLimiter allows limit requests per key within window
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow records a request for key and reports whether it is within the limit
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.window)

	var valid []time.Time
	for _, t := range rl.requests[key] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

// RateLimitMiddleware limits requests per user, or per client IP for anonymous calls
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString("userID")
		if key == "" {
			key = c.ClientIP()
		}

		if !rl.Allow(key) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, please try again later",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// Services groups what the handlers call
type Services struct {
	Records    *service.RecordService
	ModuleRows *service.ModuleRowService
	Firewall   *service.FirewallService
}

type Server struct {
	router  *gin.Engine
	handler *Handler
	cfg     *config.Config

	mu      sync.Mutex
	httpSrv *http.Server

	userRateLimiter    *RateLimiter
	unblockRateLimiter *RateLimiter
}

func NewServer(cfg *config.Config, services Services) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:  router,
		handler: NewHandler(services),
		cfg:     cfg,
		// 30 client API calls per user per minute
		userRateLimiter: NewRateLimiter(30, time.Minute),
		// Every unblock is a remote call to the panel
		unblockRateLimiter: NewRateLimiter(5, 10*time.Minute),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "cwp-provisioner",
		})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Internal API - called by the billing system
	internal := s.router.Group("/api/internal")
	internal.Use(InternalAuthMiddleware(s.cfg.InternalSecret))
	{
		// Server rows
		internal.GET("/rows", s.handler.ListModuleRows)
		internal.POST("/rows", s.handler.AddModuleRow)
		internal.GET("/rows/:id", s.handler.GetModuleRow)
		internal.PUT("/rows/:id", s.handler.EditModuleRow)
		internal.DELETE("/rows/:id", s.handler.DeleteModuleRow)
		internal.GET("/rows/:id/logs", s.handler.GetModuleRowLogs)

		// Packages
		internal.POST("/packages/validate", s.handler.ValidatePackage)

		// Service lifecycle
		internal.POST("/services", s.handler.AddService)
		internal.GET("/services/:id", s.handler.GetService)
		internal.PUT("/services/:id", s.handler.EditService)
		internal.POST("/services/:id/suspend", s.handler.SuspendService)
		internal.POST("/services/:id/unsuspend", s.handler.UnsuspendService)
		internal.POST("/services/:id/cancel", s.handler.CancelService)
		internal.POST("/services/:id/package", s.handler.ChangeServicePackage)

		// Admin firewall tab
		internal.GET("/services/:id/firewall", s.handler.GetFirewall)
		internal.POST("/services/:id/firewall/unblock", s.handler.UnblockIP)
	}

	// Client API - requires JWT authentication
	user := s.router.Group("/api/v1")
	user.Use(JWTAuthMiddleware(s.cfg.JWT.SecretKey))
	user.Use(RateLimitMiddleware(s.userRateLimiter))
	{
		user.GET("/my/services/:id/firewall", s.handler.GetMyFirewall)
		user.POST("/my/services/:id/firewall/unblock", RateLimitMiddleware(s.unblockRateLimiter), s.handler.UnblockMyIP)
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until Shutdown is called
func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
