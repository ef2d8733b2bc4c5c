package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleQA    Role = "qa"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleQA
}

// NotificationPreferences gates the notification channels per user.
// Both default to enabled at registration.
type NotificationPreferences struct {
	Email    bool `json:"email"`
	WhatsApp bool `json:"whatsapp"`
}

type User struct {
	ID             uuid.UUID                                  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email          string                                     `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Password       string                                     `gorm:"not null;column:password" json:"-"`
	Name           string                                     `gorm:"not null;column:name" json:"name"`
	Role           Role                                       `gorm:"not null;column:role" json:"role"`
	WhatsAppNumber string                                     `gorm:"column:whatsapp_number" json:"whatsappNumber,omitempty"`
	Preferences    datatypes.JSONType[NotificationPreferences] `gorm:"column:notification_preferences" json:"notificationPreferences"`
	CreatedAt      time.Time                                  `gorm:"not null;default:now()" json:"createdAt"`
	UpdatedAt      time.Time                                  `gorm:"not null;default:now()" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

type UserToken struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	AccessToken  string    `gorm:"not null;column:access_token" json:"-"`
	RefreshToken string    `gorm:"uniqueIndex;not null;column:refresh_token" json:"-"`
	ExpiresAt    time.Time `gorm:"not null;column:expires_at" json:"expires_at"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (UserToken) TableName() string {
	return "user_tokens"
}
