package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/citrusqa/bitacora-backend/internal/http/handlers"
	httpMW "github.com/citrusqa/bitacora-backend/internal/http/middleware"
	"github.com/citrusqa/bitacora-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AuthMiddleware *httpMW.AuthMiddleware

	AuthHandler        *httpH.AuthHandler
	ApplicationHandler *httpH.ApplicationHandler
	BugReportHandler   *httpH.BugReportHandler
	QAUserHandler      *httpH.QAUserHandler
	UploadHandler      *httpH.UploadHandler
	RealtimeHandler    *httpH.RealtimeHandler
	HealthHandler      *httpH.HealthHandler

	// Local directory served at /uploads.
	UploadDir string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.UploadDir != "" {
		r.Static("/uploads", cfg.UploadDir)
	}

	api := r.Group("/api")

	// Auth (public)
	if cfg.AuthHandler != nil {
		api.POST("/auth/register", cfg.AuthHandler.Register)
		api.POST("/auth/login", cfg.AuthHandler.Login)
		api.POST("/auth/refresh", cfg.AuthHandler.Refresh)
	}

	protected := api.Group("/")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}
	adminOnly := func() gin.HandlerFunc { return cfg.AuthMiddleware.RequireAdmin() }

	if cfg.AuthHandler != nil {
		protected.POST("/auth/logout", cfg.AuthHandler.Logout)
	}

	if cfg.ApplicationHandler != nil {
		protected.GET("/applications", cfg.ApplicationHandler.List)
		protected.GET("/applications/:id", cfg.ApplicationHandler.Get)
		protected.GET("/applications/:id/versions", cfg.ApplicationHandler.ListVersions)
		protected.POST("/applications", adminOnly(), cfg.ApplicationHandler.Create)
		protected.PUT("/applications/:id", adminOnly(), cfg.ApplicationHandler.Update)
		protected.DELETE("/applications/:id", adminOnly(), cfg.ApplicationHandler.Delete)
		protected.PATCH("/applications/:id/version", adminOnly(), cfg.ApplicationHandler.UpdateVersion)
	}

	if cfg.BugReportHandler != nil {
		protected.GET("/bug-reports", cfg.BugReportHandler.List)
		protected.POST("/bug-reports", cfg.BugReportHandler.Create)
		protected.GET("/bug-reports/stats/summary", adminOnly(), cfg.BugReportHandler.StatsSummary)
		protected.GET("/bug-reports/stats/trends", adminOnly(), cfg.BugReportHandler.StatsTrends)
		protected.GET("/bug-reports/application/:applicationId", cfg.BugReportHandler.ListByApplication)
		protected.GET("/bug-reports/:id", cfg.BugReportHandler.Get)
		protected.PATCH("/bug-reports/:id/status", adminOnly(), cfg.BugReportHandler.SetStatus)
		protected.PATCH("/bug-reports/:id/tester-decision", cfg.BugReportHandler.RecordTesterDecision)
		protected.POST("/bug-reports/:id/comments", cfg.BugReportHandler.AddComment)
	}

	if cfg.QAUserHandler != nil {
		protected.GET("/qa-users", adminOnly(), cfg.QAUserHandler.List)
		protected.GET("/qa-users/my-applications", cfg.QAUserHandler.MyApplications)
		protected.GET("/qa-users/profile", cfg.QAUserHandler.GetProfile)
		protected.PATCH("/qa-users/profile", cfg.QAUserHandler.UpdateProfile)
		protected.GET("/qa-users/preferences", cfg.QAUserHandler.GetPreferences)
		protected.PATCH("/qa-users/preferences", cfg.QAUserHandler.UpdatePreferences)
		protected.POST("/qa-users/test-notification", cfg.QAUserHandler.TestNotification)
		protected.DELETE("/qa-users/:id", adminOnly(), cfg.QAUserHandler.Delete)
	}

	if cfg.UploadHandler != nil {
		protected.POST("/upload/screenshots", cfg.UploadHandler.Screenshots)
	}

	if cfg.RealtimeHandler != nil {
		protected.GET("/realtime/stream", cfg.RealtimeHandler.Stream)
		protected.POST("/realtime/bugs/:id/join", cfg.RealtimeHandler.JoinBug)
		protected.POST("/realtime/bugs/:id/leave", cfg.RealtimeHandler.LeaveBug)
		protected.POST("/realtime/bugs/:id/typing", cfg.RealtimeHandler.Typing)
		protected.POST("/realtime/bugs/:id/comment", cfg.RealtimeHandler.Comment)
	}

	return r
}
