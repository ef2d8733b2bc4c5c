package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citrusqa/bitacora-backend/internal/domain"
	"github.com/citrusqa/bitacora-backend/internal/platform/logger"
)

type ApplicationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, app *domain.Application) (*domain.Application, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Application, error)
	List(ctx context.Context, tx *gorm.DB) ([]*domain.Application, error)
	ListAssignedTo(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*domain.Application, error)
	NameExists(ctx context.Context, tx *gorm.DB, name string, excludeID uuid.UUID) (bool, error)
	Update(ctx context.Context, tx *gorm.DB, app *domain.Application) error
	ReplaceAssignedQAs(ctx context.Context, tx *gorm.DB, app *domain.Application, qas []*domain.User) error
	UnassignEverywhere(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type applicationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewApplicationRepo(db *gorm.DB, baseLog *logger.Logger) ApplicationRepo {
	return &applicationRepo{db: db, log: baseLog.With("repo", "ApplicationRepo")}
}

func (ar *applicationRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ar.db
}

func (ar *applicationRepo) Create(ctx context.Context, tx *gorm.DB, app *domain.Application) (*domain.Application, error) {
	if err := ar.conn(tx).WithContext(ctx).Create(app).Error; err != nil {
		return nil, err
	}
	return app, nil
}

func (ar *applicationRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Application, error) {
	var app domain.Application
	err := ar.conn(tx).WithContext(ctx).
		Preload("AssignedQAs").
		First(&app, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &app, nil
}

func (ar *applicationRepo) List(ctx context.Context, tx *gorm.DB) ([]*domain.Application, error) {
	var results []*domain.Application
	if err := ar.conn(tx).WithContext(ctx).
		Preload("AssignedQAs").
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ar *applicationRepo) ListAssignedTo(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*domain.Application, error) {
	var results []*domain.Application
	if err := ar.conn(tx).WithContext(ctx).
		Preload("AssignedQAs").
		Joins("JOIN application_assigned_qas aq ON aq.application_id = applications.id").
		Where("aq.user_id = ?", userID).
		Order("applications.created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ar *applicationRepo) NameExists(ctx context.Context, tx *gorm.DB, name string, excludeID uuid.UUID) (bool, error) {
	var count int64
	q := ar.conn(tx).WithContext(ctx).
		Model(&domain.Application{}).
		Where("name = ?", name)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (ar *applicationRepo) Update(ctx context.Context, tx *gorm.DB, app *domain.Application) error {
	// Save would rewrite the association rows as a side effect; assignment
	// changes go through ReplaceAssignedQAs instead.
	return ar.conn(tx).WithContext(ctx).
		Omit("AssignedQAs").
		Save(app).Error
}

func (ar *applicationRepo) ReplaceAssignedQAs(ctx context.Context, tx *gorm.DB, app *domain.Application, qas []*domain.User) error {
	if err := ar.conn(tx).WithContext(ctx).
		Model(app).
		Association("AssignedQAs").
		Replace(qas); err != nil {
		return err
	}
	return nil
}

func (ar *applicationRepo) UnassignEverywhere(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	return ar.conn(tx).WithContext(ctx).
		Exec("DELETE FROM application_assigned_qas WHERE user_id = ?", userID).Error
}

func (ar *applicationRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	conn := ar.conn(tx).WithContext(ctx)
	if err := conn.Exec("DELETE FROM application_assigned_qas WHERE application_id = ?", id).Error; err != nil {
		return err
	}
	return conn.Delete(&domain.Application{}, "id = ?", id).Error
}
