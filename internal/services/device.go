package services

import (
	"errors"
	"time"

	"github.com/copyhere/server/internal/models"
	"gorm.io/gorm"
)

// DeviceService manages the devices a user syncs between.
type DeviceService struct {
	db *gorm.DB
}

func NewDeviceService(db *gorm.DB) *DeviceService {
	return &DeviceService{db: db}
}

type RegisterDeviceRequest struct {
	Name string `json:"name" binding:"required,max=100"`
	Type string `json:"type" binding:"required,oneof=mobile desktop web"`
}

// Register creates a device for the user.
func (s *DeviceService) Register(userID string, req *RegisterDeviceRequest) (*models.Device, error) {
	device := models.Device{
		UserID:   userID,
		Name:     req.Name,
		Type:     req.Type,
		LastSeen: time.Now(),
	}
	if err := s.db.Create(&device).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

// List returns all devices of the user, most recently seen first.
func (s *DeviceService) List(userID string) ([]models.Device, error) {
	var devices []models.Device
	err := s.db.Where("user_id = ?", userID).
		Order("last_seen DESC").
		Find(&devices).Error
	return devices, err
}

// Delete removes one device of the user. Clipboard entries uploaded from
// it stay in the history.
func (s *DeviceService) Delete(userID, deviceID string) error {
	var device models.Device
	if err := s.db.First(&device, "id = ?", deviceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if device.UserID != userID {
		return ErrNotFound
	}
	return s.db.Delete(&device).Error
}
