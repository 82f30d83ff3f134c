package services

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/copyhere/server/internal/models"
	"gorm.io/gorm"
)

const (
	defaultHistoryTake = 10
	maxHistoryTake     = 100
)

// ClipboardService implements the clipboard CRUD surface: upload, latest,
// history, delete/clear, restore, pin/archive flags and tags. Every
// operation is scoped to the calling user; entries of other users are
// indistinguishable from missing ones.
type ClipboardService struct {
	db *gorm.DB
}

func NewClipboardService(db *gorm.DB) *ClipboardService {
	return &ClipboardService{db: db}
}

type UploadRequest struct {
	DeviceID      string `json:"device_id" binding:"required"`
	ContentType   string `json:"content_type" binding:"required"`
	ContentText   string `json:"content_text"`
	ContentBase64 string `json:"content_base64"`
}

type HistoryRequest struct {
	Skip            int  `form:"skip" binding:"min=0"`
	Take            int  `form:"take" binding:"min=0,max=100"`
	IncludeArchived bool `form:"include_archived"`
}

type UpdateTagsRequest struct {
	Tags []string `json:"tags" binding:"required"`
}

// EntryDTO is the wire shape of a clipboard entry. Binary content
// travels base64-encoded; tags as a list.
type EntryDTO struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	DeviceID      string    `json:"device_id"`
	ContentType   string    `json:"content_type"`
	ContentText   string    `json:"content_text,omitempty"`
	ContentBase64 string    `json:"content_base64,omitempty"`
	IsPinned      bool      `json:"is_pinned"`
	IsArchived    bool      `json:"is_archived"`
	Tags          []string  `json:"tags"`
	CreatedAt     time.Time `json:"created_at"`
}

// Upload stores a new clipboard entry pushed from a device. The device
// must exist and belong to the caller. Text/html entries carry text,
// image/file entries carry base64 bytes.
func (s *ClipboardService) Upload(userID string, req *UploadRequest) (*EntryDTO, error) {
	if !models.ValidContentType(req.ContentType) {
		return nil, ErrInvalidContent
	}

	var device models.Device
	if err := s.db.First(&device, "id = ?", req.DeviceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if device.UserID != userID {
		return nil, ErrNotFound
	}

	entry := models.ClipboardEntry{
		UserID:      userID,
		DeviceID:    req.DeviceID,
		ContentType: req.ContentType,
	}

	switch req.ContentType {
	case models.ContentTypeText, models.ContentTypeHTML:
		if req.ContentText == "" {
			return nil, ErrInvalidContent
		}
		entry.ContentText = req.ContentText
	default:
		if req.ContentBase64 == "" {
			return nil, ErrInvalidContent
		}
		bytes, err := base64.StdEncoding.DecodeString(req.ContentBase64)
		if err != nil {
			return nil, ErrInvalidContent
		}
		entry.ContentBytes = bytes
	}

	if err := s.db.Create(&entry).Error; err != nil {
		return nil, err
	}

	s.db.Model(&device).Update("last_seen", time.Now())

	return entryToDTO(&entry), nil
}

// Latest returns the newest entry of the user, archived or not.
func (s *ClipboardService) Latest(userID string) (*EntryDTO, error) {
	var entry models.ClipboardEntry
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return entryToDTO(&entry), nil
}

// History returns entries newest-first with skip/take paging. Archived
// entries are excluded unless requested.
func (s *ClipboardService) History(userID string, req *HistoryRequest) ([]*EntryDTO, error) {
	take := req.Take
	if take <= 0 {
		take = defaultHistoryTake
	}
	if take > maxHistoryTake {
		take = maxHistoryTake
	}

	query := s.db.Where("user_id = ?", userID)
	if !req.IncludeArchived {
		query = query.Where("is_archived = ?", false)
	}

	var entries []models.ClipboardEntry
	err := query.Order("created_at DESC").
		Offset(req.Skip).
		Limit(take).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	dtos := make([]*EntryDTO, 0, len(entries))
	for i := range entries {
		dtos = append(dtos, entryToDTO(&entries[i]))
	}
	return dtos, nil
}

// Delete removes one entry of the user.
func (s *ClipboardService) Delete(userID, entryID string) error {
	entry, err := s.ownedEntry(userID, entryID)
	if err != nil {
		return err
	}
	return s.db.Delete(entry).Error
}

// Clear removes every entry of the user, pinned ones included.
func (s *ClipboardService) Clear(userID string) (int64, error) {
	res := s.db.Where("user_id = ?", userID).Delete(&models.ClipboardEntry{})
	return res.RowsAffected, res.Error
}

// Restore copies an old entry to the top of the history as a fresh,
// unpinned, unarchived entry.
func (s *ClipboardService) Restore(userID, entryID string) (*EntryDTO, error) {
	original, err := s.ownedEntry(userID, entryID)
	if err != nil {
		return nil, err
	}

	restored := models.ClipboardEntry{
		UserID:       original.UserID,
		DeviceID:     original.DeviceID,
		ContentType:  original.ContentType,
		ContentText:  original.ContentText,
		ContentBytes: original.ContentBytes,
		Tags:         original.Tags,
	}
	if err := s.db.Create(&restored).Error; err != nil {
		return nil, err
	}

	return entryToDTO(&restored), nil
}

// SetPinned toggles the pin flag.
func (s *ClipboardService) SetPinned(userID, entryID string, pinned bool) (*EntryDTO, error) {
	entry, err := s.ownedEntry(userID, entryID)
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(entry).Update("is_pinned", pinned).Error; err != nil {
		return nil, err
	}
	entry.IsPinned = pinned
	return entryToDTO(entry), nil
}

// SetArchived toggles the archive flag.
func (s *ClipboardService) SetArchived(userID, entryID string, archived bool) (*EntryDTO, error) {
	entry, err := s.ownedEntry(userID, entryID)
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(entry).Update("is_archived", archived).Error; err != nil {
		return nil, err
	}
	entry.IsArchived = archived
	return entryToDTO(entry), nil
}

// UpdateTags replaces the tag list of an entry.
func (s *ClipboardService) UpdateTags(userID, entryID string, tags []string) (*EntryDTO, error) {
	entry, err := s.ownedEntry(userID, entryID)
	if err != nil {
		return nil, err
	}

	joined := joinTags(tags)
	if err := s.db.Model(entry).Update("tags", joined).Error; err != nil {
		return nil, err
	}
	entry.Tags = joined
	return entryToDTO(entry), nil
}

func (s *ClipboardService) ownedEntry(userID, entryID string) (*models.ClipboardEntry, error) {
	var entry models.ClipboardEntry
	if err := s.db.First(&entry, "id = ?", entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if entry.UserID != userID {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func entryToDTO(e *models.ClipboardEntry) *EntryDTO {
	dto := &EntryDTO{
		ID:          e.ID,
		UserID:      e.UserID,
		DeviceID:    e.DeviceID,
		ContentType: e.ContentType,
		ContentText: e.ContentText,
		IsPinned:    e.IsPinned,
		IsArchived:  e.IsArchived,
		Tags:        splitTags(e.Tags),
		CreatedAt:   e.CreatedAt,
	}
	if len(e.ContentBytes) > 0 {
		dto.ContentBase64 = base64.StdEncoding.EncodeToString(e.ContentBytes)
	}
	return dto
}

func joinTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(strings.ReplaceAll(tag, ",", " "))
		if tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	return strings.Join(cleaned, ",")
}

func splitTags(joined string) []string {
	if joined == "" {
		return []string{}
	}
	return strings.Split(joined, ",")
}
