package app

import (
	"github.com/citrusqa/bitacora-backend/internal/http"
	httpH "github.com/citrusqa/bitacora-backend/internal/http/handlers"
	httpMW "github.com/citrusqa/bitacora-backend/internal/http/middleware"
	"github.com/citrusqa/bitacora-backend/internal/platform/logger"
	"github.com/citrusqa/bitacora-backend/internal/realtime"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health      *httpH.HealthHandler
	Auth        *httpH.AuthHandler
	Application *httpH.ApplicationHandler
	BugReport   *httpH.BugReportHandler
	QAUser      *httpH.QAUserHandler
	Upload      *httpH.UploadHandler
	Realtime    *httpH.RealtimeHandler
}

func wireHandlers(log *logger.Logger, services Services, sseHub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:      httpH.NewHealthHandler(),
		Auth:        httpH.NewAuthHandler(services.Auth),
		Application: httpH.NewApplicationHandler(services.Application),
		BugReport:   httpH.NewBugReportHandler(services.BugReport),
		QAUser:      httpH.NewQAUserHandler(services.User, services.Notifier),
		Upload:      httpH.NewUploadHandler(services.Upload),
		Realtime:    httpH.NewRealtimeHandler(log, sseHub, services.Emitter),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:            log,
		AuthMiddleware: middleware.Auth,

		AuthHandler:        handlers.Auth,
		ApplicationHandler: handlers.Application,
		BugReportHandler:   handlers.BugReport,
		QAUserHandler:      handlers.QAUser,
		UploadHandler:      handlers.Upload,
		RealtimeHandler:    handlers.Realtime,
		HealthHandler:      handlers.Health,

		UploadDir: cfg.UploadDir,
	})
}
