package main

import (
	"github.com/gin-gonic/gin"
	"github.com/teamforge/teamforge/internal/middleware"
	"github.com/teamforge/teamforge/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Throttles the unauthenticated auth endpoints.
	authLimiter := middleware.NewRateLimiter(5, 10)

	r.GET("/health", svc.healthHandler.Check)

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/refresh", svc.authHandler.Refresh)
			auth.GET("/config", svc.authHandler.GetAuthConfig)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			// Auth
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			// Teams
			protected.POST("/teams", svc.teamHandler.Create)
			protected.GET("/teams", svc.teamHandler.List)
			protected.GET("/teams/:id", svc.teamHandler.Get)
			protected.PATCH("/teams/:id/settings", svc.teamHandler.UpdateSettings)
			protected.POST("/teams/:id/archive", svc.teamHandler.Archive)

			// Members
			protected.DELETE("/teams/:id/members/:userId", svc.memberHandler.Remove)
			protected.PUT("/teams/:id/members/:userId/role", svc.memberHandler.UpdateRole)

			// Invites
			protected.POST("/teams/:id/invites", svc.inviteHandler.Create)
			protected.POST("/teams/:id/invites/accept", svc.inviteHandler.Accept)
			protected.POST("/teams/:id/invites/decline", svc.inviteHandler.Decline)
			protected.DELETE("/teams/:id/invites/:userId", svc.inviteHandler.Revoke)
			protected.GET("/invites", svc.inviteHandler.ListMine)

			// Join requests
			protected.POST("/teams/:id/join-requests", svc.joinRequestHandler.Create)
			protected.GET("/teams/:id/join-requests", svc.joinRequestHandler.List)
			protected.POST("/join-requests/:id/respond", svc.joinRequestHandler.Respond)
			protected.POST("/join-requests/:id/cancel", svc.joinRequestHandler.Cancel)
			protected.GET("/join-requests", svc.joinRequestHandler.ListMine)

			// Notification channels
			protected.GET("/notification-channels", svc.channelHandler.List)
			protected.POST("/notification-channels", svc.channelHandler.Create)
			protected.PUT("/notification-channels/:id", svc.channelHandler.Update)
			protected.DELETE("/notification-channels/:id", svc.channelHandler.Delete)
			protected.POST("/notification-channels/:id/test", svc.channelHandler.Test)
		}

		// Admin only routes
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/users", svc.userHandler.List)
			admin.POST("/users", svc.userHandler.Create)
			admin.PUT("/users/:id", svc.userHandler.Update)
			admin.DELETE("/users/:id", svc.userHandler.Delete)

			admin.GET("/audit-logs", svc.auditHandler.List)
		}
	}
}
