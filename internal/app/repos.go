package app

import (
	"gorm.io/gorm"

	"github.com/citrusqa/bitacora-backend/internal/platform/logger"
	"github.com/citrusqa/bitacora-backend/internal/repos"
)

type Repos struct {
	User            repos.UserRepo
	UserToken       repos.UserTokenRepo
	Application     repos.ApplicationRepo
	BugReport       repos.BugReportRepo
	VersionHistory  repos.VersionHistoryRepo
	TestingReminder repos.TestingReminderRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:            repos.NewUserRepo(db, log),
		UserToken:       repos.NewUserTokenRepo(db, log),
		Application:     repos.NewApplicationRepo(db, log),
		BugReport:       repos.NewBugReportRepo(db, log),
		VersionHistory:  repos.NewVersionHistoryRepo(db, log),
		TestingReminder: repos.NewTestingReminderRepo(db, log),
	}
}
