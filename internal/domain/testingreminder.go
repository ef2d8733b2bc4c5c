package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TestingReminder records one notification round sent to an application's
// assigned QAs after a version update. Read model only.
type TestingReminder struct {
	ID            uuid.UUID                      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ApplicationID uuid.UUID                      `gorm:"type:uuid;not null;index:idx_testing_reminder_app,priority:1;column:application_id" json:"applicationId"`
	SentBy        uuid.UUID                      `gorm:"type:uuid;not null;column:sent_by" json:"sentBy"`
	NotifiedQAs   datatypes.JSONSlice[uuid.UUID] `gorm:"column:notified_qas" json:"notifiedQAs"`
	CreatedAt     time.Time                      `gorm:"not null;default:now();index:idx_testing_reminder_app,priority:2,sort:desc" json:"createdAt"`
}

func (TestingReminder) TableName() string {
	return "testing_reminders"
}
