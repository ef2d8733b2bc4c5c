package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/citrusqa/bitacora-backend/internal/platform/logger"
	"github.com/citrusqa/bitacora-backend/internal/realtime"
	"github.com/citrusqa/bitacora-backend/internal/services"
)

type Services struct {
	Auth        services.AuthService
	User        services.UserService
	Application services.ApplicationService
	BugReport   services.BugReportService
	Notifier    services.Notifier
	Upload      services.UploadService
	Emitter     services.SSEEmitter
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, sseHub *realtime.SSEHub, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	// With Redis configured, events go through the bus so every instance's
	// hub fans them out; the forwarder is started in App.Start. Without it,
	// broadcast straight to the local hub.
	var emitter services.SSEEmitter
	if clients.SSEBus != nil {
		emitter = services.NewBusEmitter(log, clients.SSEBus)
	} else {
		emitter = services.NewLocalEmitter(sseHub)
	}

	authService := services.NewAuthService(
		db, log,
		repos.User,
		repos.UserToken,
		cfg.JWTSecretKey,
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
	)

	notifier := services.NewNotifier(
		log,
		repos.User,
		repos.Application,
		repos.TestingReminder,
		clients.Email,
		clients.WhatsApp,
		emitter,
	)

	userService := services.NewUserService(db, log, repos.User, repos.UserToken, repos.Application)
	applicationService := services.NewApplicationService(db, log, repos.Application, repos.User, repos.VersionHistory, notifier)
	bugReportService := services.NewBugReportService(db, log, repos.BugReport, repos.Application, notifier, emitter)

	uploadService, err := services.NewUploadService(log, cfg.UploadDir)
	if err != nil {
		return Services{}, fmt.Errorf("init upload service: %w", err)
	}

	return Services{
		Auth:        authService,
		User:        userService,
		Application: applicationService,
		BugReport:   bugReportService,
		Notifier:    notifier,
		Upload:      uploadService,
		Emitter:     emitter,
	}, nil
}
