package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account that owns devices and clipboard entries.
type User struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	Email     string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password  string     `gorm:"size:255" json:"-"` // bcrypt hash, empty for LDAP users
	AuthType  string     `gorm:"size:20;default:local" json:"auth_type"` // local, ldap
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
