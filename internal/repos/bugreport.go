package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citrusqa/bitacora-backend/internal/domain"
	"github.com/citrusqa/bitacora-backend/internal/platform/logger"
)

// BugReportFilter narrows List. Zero values mean "no filter".
type BugReportFilter struct {
	ApplicationID uuid.UUID
	ReportedBy    uuid.UUID
	Status        domain.BugStatus
	Severity      domain.Severity
}

type StatusCount struct {
	Status domain.BugStatus `json:"status"`
	Count  int64            `json:"count"`
}

type SeverityCount struct {
	Severity domain.Severity `json:"severity"`
	Count    int64           `json:"count"`
}

type ApplicationCount struct {
	ApplicationID uuid.UUID `json:"applicationId"`
	Name          string    `json:"name"`
	Count         int64     `json:"count"`
}

type DayCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

type BugReportRepo interface {
	Create(ctx context.Context, tx *gorm.DB, report *domain.BugReport) (*domain.BugReport, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.BugReport, error)
	GetWithRelations(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.BugReport, error)
	List(ctx context.Context, tx *gorm.DB, filter BugReportFilter) ([]*domain.BugReport, error)
	Save(ctx context.Context, tx *gorm.DB, report *domain.BugReport) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	CountAll(ctx context.Context, tx *gorm.DB) (int64, error)
	CountsByStatus(ctx context.Context, tx *gorm.DB) ([]StatusCount, error)
	CountsBySeverity(ctx context.Context, tx *gorm.DB) ([]SeverityCount, error)
	TopApplications(ctx context.Context, tx *gorm.DB, limit int) ([]ApplicationCount, error)
	CountsByDay(ctx context.Context, tx *gorm.DB, since time.Time) ([]DayCount, error)
}

type bugReportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBugReportRepo(db *gorm.DB, baseLog *logger.Logger) BugReportRepo {
	return &bugReportRepo{db: db, log: baseLog.With("repo", "BugReportRepo")}
}

func (br *bugReportRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return br.db
}

func (br *bugReportRepo) Create(ctx context.Context, tx *gorm.DB, report *domain.BugReport) (*domain.BugReport, error) {
	if err := br.conn(tx).WithContext(ctx).Create(report).Error; err != nil {
		return nil, err
	}
	return report, nil
}

func (br *bugReportRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.BugReport, error) {
	var report domain.BugReport
	err := br.conn(tx).WithContext(ctx).First(&report, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &report, nil
}

func (br *bugReportRepo) GetWithRelations(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.BugReport, error) {
	var report domain.BugReport
	err := br.conn(tx).WithContext(ctx).
		Preload("Application").
		Preload("Reporter").
		First(&report, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &report, nil
}

func (br *bugReportRepo) List(ctx context.Context, tx *gorm.DB, filter BugReportFilter) ([]*domain.BugReport, error) {
	q := br.conn(tx).WithContext(ctx).
		Preload("Application").
		Preload("Reporter")
	if filter.ApplicationID != uuid.Nil {
		q = q.Where("application_id = ?", filter.ApplicationID)
	}
	if filter.ReportedBy != uuid.Nil {
		q = q.Where("reported_by = ?", filter.ReportedBy)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Severity != "" {
		q = q.Where("severity = ?", filter.Severity)
	}

	var results []*domain.BugReport
	if err := q.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (br *bugReportRepo) Save(ctx context.Context, tx *gorm.DB, report *domain.BugReport) error {
	return br.conn(tx).WithContext(ctx).
		Omit("Application", "Reporter").
		Save(report).Error
}

func (br *bugReportRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return br.conn(tx).WithContext(ctx).Delete(&domain.BugReport{}, "id = ?", id).Error
}

func (br *bugReportRepo) CountAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	var count int64
	if err := br.conn(tx).WithContext(ctx).
		Model(&domain.BugReport{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (br *bugReportRepo) CountsByStatus(ctx context.Context, tx *gorm.DB) ([]StatusCount, error) {
	var rows []StatusCount
	if err := br.conn(tx).WithContext(ctx).
		Model(&domain.BugReport{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (br *bugReportRepo) CountsBySeverity(ctx context.Context, tx *gorm.DB) ([]SeverityCount, error) {
	var rows []SeverityCount
	if err := br.conn(tx).WithContext(ctx).
		Model(&domain.BugReport{}).
		Select("severity, COUNT(*) AS count").
		Group("severity").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (br *bugReportRepo) TopApplications(ctx context.Context, tx *gorm.DB, limit int) ([]ApplicationCount, error) {
	var rows []ApplicationCount
	if err := br.conn(tx).WithContext(ctx).
		Model(&domain.BugReport{}).
		Select("bug_reports.application_id, applications.name, COUNT(*) AS count").
		Joins("JOIN applications ON applications.id = bug_reports.application_id").
		Group("bug_reports.application_id, applications.name").
		Order("count DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountsByDay buckets by calendar day. DATE() works on both postgres and
// sqlite; the day column comes back driver-formatted, callers normalize.
func (br *bugReportRepo) CountsByDay(ctx context.Context, tx *gorm.DB, since time.Time) ([]DayCount, error) {
	var rows []DayCount
	if err := br.conn(tx).WithContext(ctx).
		Model(&domain.BugReport{}).
		Select("DATE(created_at) AS day, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("DATE(created_at)").
		Order("day ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
