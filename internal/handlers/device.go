package handlers

import (
	"errors"

	"github.com/copyhere/server/internal/middleware"
	"github.com/copyhere/server/internal/services"
	"github.com/copyhere/server/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type DeviceHandler struct {
	deviceService *services.DeviceService
}

func NewDeviceHandler(db *gorm.DB) *DeviceHandler {
	return &DeviceHandler{
		deviceService: services.NewDeviceService(db),
	}
}

// Register adds a device for the authenticated user
// POST /api/devices
func (h *DeviceHandler) Register(c *gin.Context) {
	var req services.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	device, err := h.deviceService.Register(middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, device)
}

// List returns the user's devices, most recently seen first
// GET /api/devices
func (h *DeviceHandler) List(c *gin.Context) {
	devices, err := h.deviceService.List(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, devices)
}

// Delete removes a device. Its uploaded entries stay in the history.
// DELETE /api/devices/:id
func (h *DeviceHandler) Delete(c *gin.Context) {
	err := h.deviceService.Delete(middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			response.NotFound(c, "device not found")
			return
		}
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
