package main

import (
	"github.com/copyhere/server/internal/config"
	"github.com/copyhere/server/internal/handlers"
	"github.com/copyhere/server/internal/models"
	"github.com/copyhere/server/internal/services"
	"github.com/copyhere/server/internal/utils"
	"github.com/copyhere/server/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	pushQueue          services.PushQueue
	worker             *services.Worker
	maintenanceService *services.MaintenanceService
	authHandler        *handlers.AuthHandler
	clipboardHandler   *handlers.ClipboardHandler
	deviceHandler      *handlers.DeviceHandler
	syncHandler        *handlers.SyncHandler
	healthHandler      *handlers.HealthHandler
}

// bootstrap initializes all application dependencies: database, push
// queue, schedulers, handlers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	db := models.GetDB()

	// Push pipeline: queue on the write side, hub on the delivery side.
	// With Redis enabled a worker moves events between the two.
	hub := services.GetSyncHub()
	pushQueue := services.InitPushQueue(cfg)

	var worker *services.Worker
	if cfg.Redis.Enabled && pushQueue.IsAsync() {
		worker = services.NewWorker(&cfg.Redis, hub)
		if worker != nil {
			worker.Start()
		}
	}

	maintenanceService := services.NewMaintenanceService(db, &cfg.Retention)
	maintenanceService.StartScheduler()

	return &appServices{
		pushQueue:          pushQueue,
		worker:             worker,
		maintenanceService: maintenanceService,
		authHandler:        handlers.NewAuthHandler(db, cfg),
		clipboardHandler:   handlers.NewClipboardHandler(db),
		deviceHandler:      handlers.NewDeviceHandler(db),
		syncHandler:        handlers.NewSyncHandler(hub),
		healthHandler:      handlers.NewHealthHandler(db),
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.maintenanceService.StopScheduler()

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.pushQueue != nil {
		s.pushQueue.Close()
	}
	logger.Info().Msg("All services stopped")
}
