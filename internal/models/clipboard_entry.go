package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Content types accepted for a clipboard entry. Text and html carry
// ContentText; image and file carry ContentBytes.
const (
	ContentTypeText  = "text"
	ContentTypeHTML  = "html"
	ContentTypeImage = "image"
	ContentTypeFile  = "file"
)

// ClipboardEntry is one pushed clipboard item. Entries are immutable
// except for the pin/archive flags and tags.
type ClipboardEntry struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	UserID       string    `gorm:"index:idx_entries_user_created;size:36;not null" json:"user_id"`
	DeviceID     string    `gorm:"index;size:36;not null" json:"device_id"`
	ContentType  string    `gorm:"size:20;not null" json:"content_type"`
	ContentText  string    `gorm:"type:text" json:"content_text,omitempty"`
	ContentBytes []byte    `gorm:"type:blob" json:"-"`
	IsPinned     bool      `gorm:"default:false" json:"is_pinned"`
	IsArchived   bool      `gorm:"default:false" json:"is_archived"`
	Tags         string    `gorm:"size:500" json:"-"` // comma-joined, exposed as a list in the DTO
	CreatedAt    time.Time `gorm:"index:idx_entries_user_created" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (ClipboardEntry) TableName() string { return "clipboard_entries" }

func (e *ClipboardEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// ValidContentType reports whether t is one of the accepted content types.
func ValidContentType(t string) bool {
	switch t {
	case ContentTypeText, ContentTypeHTML, ContentTypeImage, ContentTypeFile:
		return true
	}
	return false
}
