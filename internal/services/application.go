package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citrusqa/bitacora-backend/internal/domain"
	"github.com/citrusqa/bitacora-backend/internal/platform/ctxutil"
	"github.com/citrusqa/bitacora-backend/internal/platform/logger"
	"github.com/citrusqa/bitacora-backend/internal/repos"
)

type ApplicationInput struct {
	Name          string
	Description   string
	Version       string
	Platform      string
	AssignedQAIDs []uuid.UUID
}

type VersionUpdateInput struct {
	Version   string
	Changelog string
}

type ApplicationService interface {
	Create(ctx context.Context, input ApplicationInput) (*domain.Application, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Application, error)
	List(ctx context.Context) ([]*domain.Application, error)
	Update(ctx context.Context, id uuid.UUID, input ApplicationInput) (*domain.Application, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateVersion(ctx context.Context, id uuid.UUID, input VersionUpdateInput) (*domain.Application, error)
	ListVersions(ctx context.Context, id uuid.UUID) ([]*domain.VersionHistory, error)
}

type applicationService struct {
	db          *gorm.DB
	log         *logger.Logger
	appRepo     repos.ApplicationRepo
	userRepo    repos.UserRepo
	versionRepo repos.VersionHistoryRepo
	notifier    Notifier
}

func NewApplicationService(
	db *gorm.DB,
	log *logger.Logger,
	appRepo repos.ApplicationRepo,
	userRepo repos.UserRepo,
	versionRepo repos.VersionHistoryRepo,
	notifier Notifier,
) ApplicationService {
	return &applicationService{
		db:          db,
		log:         log.With("service", "ApplicationService"),
		appRepo:     appRepo,
		userRepo:    userRepo,
		versionRepo: versionRepo,
		notifier:    notifier,
	}
}

func (s *applicationService) Create(ctx context.Context, input ApplicationInput) (*domain.Application, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", domain.ErrInvalidInput)
	}

	taken, err := s.appRepo.NameExists(ctx, nil, name, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("check name: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("%w: application name already in use", domain.ErrConflict)
	}

	qas, err := s.resolveQAs(ctx, input.AssignedQAIDs)
	if err != nil {
		return nil, err
	}

	app := &domain.Application{
		ID:          uuid.New(),
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Version:     strings.TrimSpace(input.Version),
		Platform:    strings.TrimSpace(input.Platform),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.appRepo.Create(ctx, tx, app); err != nil {
			return fmt.Errorf("create application: %w", err)
		}
		if len(qas) > 0 {
			if err := s.appRepo.ReplaceAssignedQAs(ctx, tx, app, qas); err != nil {
				return fmt.Errorf("assign qa users: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.appRepo.GetByID(ctx, nil, app.ID)
}

func (s *applicationService) Get(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	return s.appRepo.GetByID(ctx, nil, id)
}

func (s *applicationService) List(ctx context.Context) ([]*domain.Application, error) {
	return s.appRepo.List(ctx, nil)
}

func (s *applicationService) Update(ctx context.Context, id uuid.UUID, input ApplicationInput) (*domain.Application, error) {
	app, err := s.appRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(input.Name); name != "" && name != app.Name {
		taken, err := s.appRepo.NameExists(ctx, nil, name, app.ID)
		if err != nil {
			return nil, fmt.Errorf("check name: %w", err)
		}
		if taken {
			return nil, fmt.Errorf("%w: application name already in use", domain.ErrConflict)
		}
		app.Name = name
	}
	if desc := strings.TrimSpace(input.Description); desc != "" {
		app.Description = desc
	}
	if platform := strings.TrimSpace(input.Platform); platform != "" {
		app.Platform = platform
	}

	qas, err := s.resolveQAs(ctx, input.AssignedQAIDs)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.appRepo.Update(ctx, tx, app); err != nil {
			return fmt.Errorf("update application: %w", err)
		}
		if input.AssignedQAIDs != nil {
			if err := s.appRepo.ReplaceAssignedQAs(ctx, tx, app, qas); err != nil {
				return fmt.Errorf("reassign qa users: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.appRepo.GetByID(ctx, nil, id)
}

func (s *applicationService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.appRepo.GetByID(ctx, nil, id); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.versionRepo.DeleteByApplication(ctx, tx, id); err != nil {
			return fmt.Errorf("delete version history: %w", err)
		}
		if err := s.appRepo.Delete(ctx, tx, id); err != nil {
			return fmt.Errorf("delete application: %w", err)
		}
		s.log.Info("Application deleted", "applicationID", id)
		return nil
	})
}

// UpdateVersion bumps the version, appends the history row and kicks off the
// QA notification round. The three steps are deliberately sequential without
// a wrapping transaction: a failed notification never rolls back the bump.
func (s *applicationService) UpdateVersion(ctx context.Context, id uuid.UUID, input VersionUpdateInput) (*domain.Application, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return nil, fmt.Errorf("%w: no authenticated user", domain.ErrUnauthorized)
	}

	version := strings.TrimSpace(input.Version)
	changelog := strings.TrimSpace(input.Changelog)
	if version == "" {
		return nil, fmt.Errorf("%w: version required", domain.ErrInvalidInput)
	}
	if changelog == "" {
		return nil, fmt.Errorf("%w: changelog required", domain.ErrInvalidInput)
	}

	app, err := s.appRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if app.Version == version {
		return nil, fmt.Errorf("%w: version unchanged", domain.ErrInvalidInput)
	}

	previous := app.Version
	app.Version = version
	if err := s.appRepo.Update(ctx, nil, app); err != nil {
		return nil, fmt.Errorf("update application version: %w", err)
	}

	entry := &domain.VersionHistory{
		ID:              uuid.New(),
		ApplicationID:   app.ID,
		Version:         version,
		PreviousVersion: previous,
		Changelog:       changelog,
		UpdatedBy:       rd.UserID,
		UpdatedByName:   rd.Name,
	}
	if _, err := s.versionRepo.Create(ctx, nil, entry); err != nil {
		return nil, fmt.Errorf("record version history: %w", err)
	}

	s.notifier.NotifyVersionUpdate(app, previous, changelog, domain.ActorRef{ID: rd.UserID, Name: rd.Name})

	return app, nil
}

func (s *applicationService) ListVersions(ctx context.Context, id uuid.UUID) ([]*domain.VersionHistory, error) {
	if _, err := s.appRepo.GetByID(ctx, nil, id); err != nil {
		return nil, err
	}
	return s.versionRepo.ListByApplication(ctx, nil, id)
}

func (s *applicationService) resolveQAs(ctx context.Context, ids []uuid.UUID) ([]*domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	users, err := s.userRepo.ListByIDs(ctx, nil, ids)
	if err != nil {
		return nil, fmt.Errorf("load assigned users: %w", err)
	}
	if len(users) != len(ids) {
		return nil, fmt.Errorf("%w: unknown user in assigned set", domain.ErrInvalidInput)
	}
	for _, u := range users {
		if u.Role != domain.RoleQA {
			return nil, fmt.Errorf("%w: %s is not a qa user", domain.ErrInvalidInput, u.ID)
		}
	}
	return users, nil
}
