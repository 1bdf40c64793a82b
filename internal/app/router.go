package app

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"heartlink.io/trustengine/internal/api/handlers"
	"heartlink.io/trustengine/internal/api/middleware"
	"heartlink.io/trustengine/internal/config"
	"heartlink.io/trustengine/internal/ratelimit"
)

func newRouter(cfg *config.Config, server *handlers.Server, limiter *ratelimit.Limiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.ErrorHandler())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	auth := middleware.JWTAuth([]byte(cfg.Security.JWTVerificationKey))
	moderator := middleware.RequireModerator()

	v1 := router.Group("/api/v1")

	health := v1.Group("/health")
	{
		health.GET("/live", server.Liveness)
		health.GET("/ready", server.Readiness)
	}

	privacy := v1.Group("/privacy", auth, middleware.RateLimit(limiter, ratelimit.PolicyAPI))
	{
		privacy.POST("/export", server.RequestExport)
		privacy.GET("/export", server.ExportStatus)
		privacy.POST("/deletion", server.RequestDeletion)
		privacy.GET("/deletion", server.DeletionStatus)
		privacy.DELETE("/deletion", server.CancelDeletion)
		privacy.PUT("/consent", server.UpdateConsent)
		privacy.GET("/consent", server.ConsentStatus)
	}

	mod := v1.Group("/moderation", auth)
	{
		mod.POST("/text", middleware.RateLimit(limiter, ratelimit.PolicyAPI), server.ClassifyText)
		mod.POST("/image", middleware.RateLimit(limiter, ratelimit.PolicyUpload), server.ClassifyImage)
		mod.POST("/message", middleware.RateLimit(limiter, ratelimit.PolicyMessage), server.ClassifyMessage)
		mod.GET("/queue", moderator, server.ReviewQueue)
		mod.POST("/queue/:content_id/review", moderator, server.ReviewContent)
	}

	auditGroup := v1.Group("/audit", auth, moderator, middleware.RateLimit(limiter, ratelimit.PolicyAPI))
	{
		auditGroup.GET("/events", server.ListAuditEvents)
		auditGroup.GET("/anomalies/:user_id", server.DetectAnomalies)
		auditGroup.GET("/compliance-report", server.ComplianceReport)
	}

	return router
}
