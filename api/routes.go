package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/mailcat/mailcat/api/handlers"
	"github.com/mailcat/mailcat/api/middleware"
	"github.com/mailcat/mailcat/config"
	"github.com/mailcat/mailcat/internal/repository"
	"github.com/mailcat/mailcat/internal/tracing"
	"github.com/mailcat/mailcat/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, cfg *config.AppConfig, s *services.Services, repos *repository.Repositories) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	apiHandlers := handlers.InitHandlers(repos, s)

	// Health check and status endpoints
	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", handlers.Status(repos))

	mailboxAuth := middleware.MailboxAuthMiddleware(s.MailboxService)
	createLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)

	// Public mailbox provisioning, rate limited per client IP
	r.POST("/mailboxes",
		tracing.TracingEnhancer(ctx, "POST /mailboxes"),
		createLimiter.Middleware(),
		apiHandlers.Mailboxes.Create())

	// Token-scoped mailbox access
	r.GET("/inbox",
		tracing.TracingEnhancer(ctx, "GET /inbox"),
		mailboxAuth,
		apiHandlers.Inbox.List())

	emails := r.Group("/emails")
	emails.Use(tracing.TracingEnhancer(ctx, "/emails"))
	emails.Use(mailboxAuth)
	{
		emails.GET("/:id", apiHandlers.Emails.Get())
		emails.DELETE("/:id", apiHandlers.Emails.Delete())
	}

	// Internal webhook for HTTP-forwarded inbound mail
	internal := r.Group("/internal")
	internal.Use(tracing.TracingEnhancer(ctx, "/internal"))
	internal.Use(middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-MAILCAT-API-KEY",
		ValidAPIKey: cfg.InternalAPIKey,
	}))
	{
		internal.POST("/ingest", apiHandlers.Ingest.Inbound())
	}
}
