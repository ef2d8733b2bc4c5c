package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/citrusqa/bitacora-backend/internal/domain"
	"github.com/citrusqa/bitacora-backend/internal/platform/ctxutil"
	"github.com/citrusqa/bitacora-backend/internal/platform/logger"
	"github.com/citrusqa/bitacora-backend/internal/repos"
)

type UpdateProfileRequest struct {
	Name           string
	WhatsAppNumber string
}

type UserService interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ListQAs(ctx context.Context) ([]*domain.User, error)
	MyApplications(ctx context.Context) ([]*domain.Application, error)
	UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*domain.User, error)
	GetPreferences(ctx context.Context) (domain.NotificationPreferences, error)
	UpdatePreferences(ctx context.Context, prefs domain.NotificationPreferences) (*domain.User, error)
	DeleteQA(ctx context.Context, id uuid.UUID) error
}

type userService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	userTokenRepo repos.UserTokenRepo
	appRepo       repos.ApplicationRepo
}

func NewUserService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	userTokenRepo repos.UserTokenRepo,
	appRepo repos.ApplicationRepo,
) UserService {
	return &userService{
		db:            db,
		log:           log.With("service", "UserService"),
		userRepo:      userRepo,
		userTokenRepo: userTokenRepo,
		appRepo:       appRepo,
	}
}

func (us *userService) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return us.userRepo.GetByID(ctx, nil, id)
}

func (us *userService) ListQAs(ctx context.Context) ([]*domain.User, error) {
	return us.userRepo.ListByRole(ctx, nil, domain.RoleQA)
}

func (us *userService) MyApplications(ctx context.Context) ([]*domain.Application, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return nil, fmt.Errorf("%w: no authenticated user", domain.ErrUnauthorized)
	}
	return us.appRepo.ListAssignedTo(ctx, nil, rd.UserID)
}

func (us *userService) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*domain.User, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return nil, fmt.Errorf("%w: no authenticated user", domain.ErrUnauthorized)
	}

	user, err := us.userRepo.GetByID(ctx, nil, rd.UserID)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		user.Name = name
	}
	if number := strings.TrimSpace(req.WhatsAppNumber); number != "" {
		user.WhatsAppNumber = number
	}

	if err := us.userRepo.Update(ctx, nil, user); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

func (us *userService) GetPreferences(ctx context.Context) (domain.NotificationPreferences, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return domain.NotificationPreferences{}, fmt.Errorf("%w: no authenticated user", domain.ErrUnauthorized)
	}
	user, err := us.userRepo.GetByID(ctx, nil, rd.UserID)
	if err != nil {
		return domain.NotificationPreferences{}, err
	}
	return user.Preferences.Data(), nil
}

func (us *userService) UpdatePreferences(ctx context.Context, prefs domain.NotificationPreferences) (*domain.User, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return nil, fmt.Errorf("%w: no authenticated user", domain.ErrUnauthorized)
	}
	user, err := us.userRepo.GetByID(ctx, nil, rd.UserID)
	if err != nil {
		return nil, err
	}
	user.Preferences = datatypes.NewJSONType(prefs)
	if err := us.userRepo.Update(ctx, nil, user); err != nil {
		return nil, fmt.Errorf("update preferences: %w", err)
	}
	return user, nil
}

// DeleteQA removes a QA user and pulls them out of every application's
// assigned set. Admins cannot be deleted through this path.
func (us *userService) DeleteQA(ctx context.Context, id uuid.UUID) error {
	target, err := us.userRepo.GetByID(ctx, nil, id)
	if err != nil {
		return err
	}
	if target.Role != domain.RoleQA {
		return fmt.Errorf("%w: only qa users can be deleted", domain.ErrInvalidInput)
	}

	return us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := us.appRepo.UnassignEverywhere(ctx, tx, id); err != nil {
			return fmt.Errorf("unassign user: %w", err)
		}
		if err := us.userTokenRepo.DeleteByUserID(ctx, tx, id); err != nil {
			return fmt.Errorf("delete user tokens: %w", err)
		}
		if err := us.userRepo.Delete(ctx, tx, id); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		us.log.Info("QA user deleted", "userID", id)
		return nil
	})
}
