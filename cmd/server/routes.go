package main

import (
	"github.com/copyhere/server/internal/middleware"
	"github.com/copyhere/server/pkg/logger"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Credential and token endpoints get a tight per-IP limit.
	authLimiter := middleware.NewRateLimiter(5, 10)

	r.GET("/health", svc.healthHandler.Check)

	api := r.Group("/api")
	{
		api.GET("/health", svc.healthHandler.Check)

		// Auth routes (public, rate limited)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/register", svc.authHandler.Register)
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/refresh", svc.authHandler.Refresh)
			auth.POST("/revoke", svc.authHandler.Revoke)
			auth.GET("/config", svc.authHandler.GetAuthConfig)
		}

		// Sync websocket (token travels as a query parameter)
		api.GET("/sync/ws", svc.syncHandler.Connect)

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			// Auth
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)

			// Clipboard
			protected.POST("/clipboard", svc.clipboardHandler.Upload)
			protected.GET("/clipboard/latest", svc.clipboardHandler.Latest)
			protected.GET("/clipboard/history", svc.clipboardHandler.History)
			protected.DELETE("/clipboard/clear", svc.clipboardHandler.Clear)
			protected.DELETE("/clipboard/:id", svc.clipboardHandler.Delete)
			protected.POST("/clipboard/:id/restore", svc.clipboardHandler.Restore)
			protected.PUT("/clipboard/:id/pin", svc.clipboardHandler.SetPinned)
			protected.PUT("/clipboard/:id/archive", svc.clipboardHandler.SetArchived)
			protected.PUT("/clipboard/:id/tags", svc.clipboardHandler.UpdateTags)

			// Devices
			protected.POST("/devices", svc.deviceHandler.Register)
			protected.GET("/devices", svc.deviceHandler.List)
			protected.DELETE("/devices/:id", svc.deviceHandler.Delete)
		}
	}
}
