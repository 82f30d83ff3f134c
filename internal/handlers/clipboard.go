package handlers

import (
	"errors"

	"github.com/copyhere/server/internal/middleware"
	"github.com/copyhere/server/internal/services"
	"github.com/copyhere/server/pkg/logger"
	"github.com/copyhere/server/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ClipboardHandler struct {
	clipboardService *services.ClipboardService
}

func NewClipboardHandler(db *gorm.DB) *ClipboardHandler {
	return &ClipboardHandler{
		clipboardService: services.NewClipboardService(db),
	}
}

// Upload stores a clipboard entry and fans it out to the user's other
// devices. Delivery is fire-and-forget: a queue failure never fails
// the upload.
// POST /api/clipboard
func (h *ClipboardHandler) Upload(c *gin.Context) {
	var req services.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	userID := middleware.GetUserID(c)
	entry, err := h.clipboardService.Upload(userID, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.notify(&services.SyncEvent{
		Type:   services.EventClipboardUpdated,
		UserID: userID,
		Entry:  entry,
	})

	response.Created(c, entry)
}

// Latest returns the newest entry
// GET /api/clipboard/latest
func (h *ClipboardHandler) Latest(c *gin.Context) {
	entry, err := h.clipboardService.Latest(middleware.GetUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, entry)
}

// History returns a page of entries, newest first
// GET /api/clipboard/history
func (h *ClipboardHandler) History(c *gin.Context) {
	var req services.HistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	entries, err := h.clipboardService.History(middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, entries)
}

// Delete removes one entry
// DELETE /api/clipboard/:id
func (h *ClipboardHandler) Delete(c *gin.Context) {
	userID := middleware.GetUserID(c)
	entryID := c.Param("id")

	if err := h.clipboardService.Delete(userID, entryID); err != nil {
		h.writeError(c, err)
		return
	}

	h.notify(&services.SyncEvent{
		Type:    services.EventClipboardDeleted,
		UserID:  userID,
		EntryID: entryID,
	})

	response.NoContent(c)
}

// Clear wipes the whole history, pinned entries included
// DELETE /api/clipboard/clear
func (h *ClipboardHandler) Clear(c *gin.Context) {
	userID := middleware.GetUserID(c)

	deleted, err := h.clipboardService.Clear(userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.notify(&services.SyncEvent{
		Type:   services.EventClipboardCleared,
		UserID: userID,
	})

	response.Success(c, gin.H{"deleted": deleted})
}

// Restore copies an old entry back to the top of the history
// POST /api/clipboard/:id/restore
func (h *ClipboardHandler) Restore(c *gin.Context) {
	userID := middleware.GetUserID(c)

	entry, err := h.clipboardService.Restore(userID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.notify(&services.SyncEvent{
		Type:   services.EventClipboardUpdated,
		UserID: userID,
		Entry:  entry,
	})

	response.Created(c, entry)
}

type flagRequest struct {
	Value *bool `json:"value" binding:"required"`
}

// SetPinned toggles the pin flag
// PUT /api/clipboard/:id/pin
func (h *ClipboardHandler) SetPinned(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	entry, err := h.clipboardService.SetPinned(middleware.GetUserID(c), c.Param("id"), *req.Value)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, entry)
}

// SetArchived toggles the archive flag
// PUT /api/clipboard/:id/archive
func (h *ClipboardHandler) SetArchived(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	entry, err := h.clipboardService.SetArchived(middleware.GetUserID(c), c.Param("id"), *req.Value)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, entry)
}

// UpdateTags replaces the tag list of an entry
// PUT /api/clipboard/:id/tags
func (h *ClipboardHandler) UpdateTags(c *gin.Context) {
	var req services.UpdateTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	entry, err := h.clipboardService.UpdateTags(middleware.GetUserID(c), c.Param("id"), req.Tags)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, entry)
}

func (h *ClipboardHandler) notify(event *services.SyncEvent) {
	queue := services.GetPushQueue()
	if queue == nil {
		return
	}
	if err := queue.Enqueue(event); err != nil {
		logger.Warnf("[Clipboard] Failed to enqueue %s event: %v", event.Type, err)
	}
}

func (h *ClipboardHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		response.NotFound(c, "entry not found")
	case errors.Is(err, services.ErrInvalidContent):
		response.BadRequest(c, "invalid content")
	default:
		response.Error(c, err)
	}
}
