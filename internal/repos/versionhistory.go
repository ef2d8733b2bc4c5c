package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citrusqa/bitacora-backend/internal/domain"
	"github.com/citrusqa/bitacora-backend/internal/platform/logger"
)

type VersionHistoryRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entry *domain.VersionHistory) (*domain.VersionHistory, error)
	ListByApplication(ctx context.Context, tx *gorm.DB, applicationID uuid.UUID) ([]*domain.VersionHistory, error)
	DeleteByApplication(ctx context.Context, tx *gorm.DB, applicationID uuid.UUID) error
}

type versionHistoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVersionHistoryRepo(db *gorm.DB, baseLog *logger.Logger) VersionHistoryRepo {
	return &versionHistoryRepo{db: db, log: baseLog.With("repo", "VersionHistoryRepo")}
}

func (vr *versionHistoryRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return vr.db
}

func (vr *versionHistoryRepo) Create(ctx context.Context, tx *gorm.DB, entry *domain.VersionHistory) (*domain.VersionHistory, error) {
	if err := vr.conn(tx).WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (vr *versionHistoryRepo) ListByApplication(ctx context.Context, tx *gorm.DB, applicationID uuid.UUID) ([]*domain.VersionHistory, error) {
	var results []*domain.VersionHistory
	if err := vr.conn(tx).WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (vr *versionHistoryRepo) DeleteByApplication(ctx context.Context, tx *gorm.DB, applicationID uuid.UUID) error {
	return vr.conn(tx).WithContext(ctx).
		Delete(&domain.VersionHistory{}, "application_id = ?", applicationID).Error
}
