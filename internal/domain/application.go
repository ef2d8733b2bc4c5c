package domain

import (
	"time"

	"github.com/google/uuid"
)

// Application is a product under test. QA users are assigned to it and may
// only report bugs against applications they are assigned to.
type Application struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null;column:name" json:"name"`
	Description string    `gorm:"not null;column:description" json:"description"`
	Version     string    `gorm:"not null;column:version" json:"version"`
	Platform    string    `gorm:"not null;column:platform" json:"platform"`
	AssignedQAs []User    `gorm:"many2many:application_assigned_qas" json:"assignedQAs"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"not null;default:now()" json:"updatedAt"`
}

func (Application) TableName() string {
	return "applications"
}

// VersionHistory is an append-only record of application version bumps.
// Rows are never updated after insert.
type VersionHistory struct {
	ID              uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ApplicationID   uuid.UUID `gorm:"type:uuid;not null;index:idx_version_history_app,priority:1;column:application_id" json:"applicationId"`
	Version         string    `gorm:"not null;column:version" json:"version"`
	PreviousVersion string    `gorm:"not null;column:previous_version" json:"previousVersion"`
	Changelog       string    `gorm:"not null;column:changelog" json:"changelog"`
	UpdatedBy       uuid.UUID `gorm:"type:uuid;not null;column:updated_by" json:"updatedBy"`
	UpdatedByName   string    `gorm:"column:updated_by_name" json:"updatedByName"`
	CreatedAt       time.Time `gorm:"not null;default:now();index:idx_version_history_app,priority:2,sort:desc" json:"createdAt"`
}

func (VersionHistory) TableName() string {
	return "version_histories"
}
