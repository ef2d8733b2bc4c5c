package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citrusqa/bitacora-backend/internal/domain"
	"github.com/citrusqa/bitacora-backend/internal/platform/logger"
)

type TestingReminderRepo interface {
	Create(ctx context.Context, tx *gorm.DB, reminder *domain.TestingReminder) (*domain.TestingReminder, error)
	ListByApplication(ctx context.Context, tx *gorm.DB, applicationID uuid.UUID) ([]*domain.TestingReminder, error)
	DeleteByApplication(ctx context.Context, tx *gorm.DB, applicationID uuid.UUID) error
}

type testingReminderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTestingReminderRepo(db *gorm.DB, baseLog *logger.Logger) TestingReminderRepo {
	return &testingReminderRepo{db: db, log: baseLog.With("repo", "TestingReminderRepo")}
}

func (rr *testingReminderRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return rr.db
}

func (rr *testingReminderRepo) Create(ctx context.Context, tx *gorm.DB, reminder *domain.TestingReminder) (*domain.TestingReminder, error) {
	if err := rr.conn(tx).WithContext(ctx).Create(reminder).Error; err != nil {
		return nil, err
	}
	return reminder, nil
}

func (rr *testingReminderRepo) ListByApplication(ctx context.Context, tx *gorm.DB, applicationID uuid.UUID) ([]*domain.TestingReminder, error) {
	var results []*domain.TestingReminder
	if err := rr.conn(tx).WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *testingReminderRepo) DeleteByApplication(ctx context.Context, tx *gorm.DB, applicationID uuid.UUID) error {
	return rr.conn(tx).WithContext(ctx).
		Delete(&domain.TestingReminder{}, "application_id = ?", applicationID).Error
}
