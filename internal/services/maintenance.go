package services

import (
	"time"

	"github.com/copyhere/server/internal/config"
	"github.com/copyhere/server/internal/models"
	"github.com/copyhere/server/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// MaintenanceService runs the daily purge jobs: dropping refresh tokens
// that finished their audit window and pruning old clipboard history.
type MaintenanceService struct {
	db        *gorm.DB
	retention *config.RetentionConfig
	scheduler *cron.Cron
}

func NewMaintenanceService(db *gorm.DB, retention *config.RetentionConfig) *MaintenanceService {
	return &MaintenanceService{db: db, retention: retention}
}

// StartScheduler runs both jobs once at startup and then daily at 03:30.
func (s *MaintenanceService) StartScheduler() {
	go s.runAll()

	s.scheduler = cron.New()
	if _, err := s.scheduler.AddFunc("30 3 * * *", s.runAll); err != nil {
		logger.Errorf("[Maintenance] Failed to schedule jobs: %v", err)
		return
	}
	s.scheduler.Start()
	logger.Infof("[Maintenance] Scheduler started (daily at 03:30)")
}

// StopScheduler stops the cron scheduler.
func (s *MaintenanceService) StopScheduler() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *MaintenanceService) runAll() {
	if deleted, err := s.PurgeRefreshTokens(); err != nil {
		logger.Errorf("[Maintenance] Token purge failed: %v", err)
	} else if deleted > 0 {
		logger.Infof("[Maintenance] Purged %d refresh tokens past the audit window", deleted)
	}

	if deleted, err := s.PruneHistory(); err != nil {
		logger.Errorf("[Maintenance] History prune failed: %v", err)
	} else if deleted > 0 {
		logger.Infof("[Maintenance] Pruned %d old clipboard entries", deleted)
	}
}

// PurgeRefreshTokens deletes tokens that have been expired or revoked
// for longer than the configured audit window. Active tokens and
// recently consumed ones (still useful for replay detection) stay.
func (s *MaintenanceService) PurgeRefreshTokens() (int64, error) {
	days := s.retention.TokenDays
	if days <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	res := s.db.Where("expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)", cutoff, cutoff).
		Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

// PruneHistory deletes unpinned, unarchived clipboard entries older than
// the configured retention. Disabled when history_days is 0.
func (s *MaintenanceService) PruneHistory() (int64, error) {
	days := s.retention.HistoryDays
	if days <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	res := s.db.Where("is_pinned = ? AND is_archived = ? AND created_at < ?", false, false, cutoff).
		Delete(&models.ClipboardEntry{})
	return res.RowsAffected, res.Error
}
