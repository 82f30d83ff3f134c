package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefreshToken is a single-use credential for renewing an access token.
// Rows are never deleted on use: consumption sets RevokedAt, and the
// successor row is linked through ReplacedByTokenID for audit.
type RefreshToken struct {
	ID                string     `gorm:"primaryKey;size:36" json:"id"`
	UserID            string     `gorm:"index;size:36;not null" json:"user_id"`
	TokenHash         string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	ExpiresAt         time.Time  `gorm:"index;not null" json:"expires_at"`
	RevokedAt         *time.Time `gorm:"index" json:"revoked_at,omitempty"`
	ReplacedByTokenID *string    `gorm:"size:36" json:"replaced_by_token_id,omitempty"`
	CreatedByIP       string     `gorm:"size:64" json:"created_by_ip,omitempty"`
	UserAgent         string     `gorm:"size:255" json:"user_agent,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// IsExpired reports whether the validity window has passed.
func (t *RefreshToken) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt)
}

// IsActive reports whether the token can still be exchanged or revoked.
func (t *RefreshToken) IsActive() bool {
	return t.RevokedAt == nil && !t.IsExpired()
}
