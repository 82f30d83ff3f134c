package handlers

import (
	"github.com/copyhere/server/internal/services"
	"github.com/copyhere/server/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check reports service health including database connectivity
// GET /api/health
func (h *HealthHandler) Check(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.Ping()
	}
	if err != nil {
		response.ServerError(c, "database unavailable")
		return
	}

	queue := services.GetPushQueue()
	asyncPush := queue != nil && queue.IsAsync()

	response.Success(c, gin.H{
		"status":     "ok",
		"async_push": asyncPush,
	})
}
