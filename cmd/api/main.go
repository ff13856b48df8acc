package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xelth-com/ordsyncgo/internal/config"
	"github.com/xelth-com/ordsyncgo/internal/database"
	"github.com/xelth-com/ordsyncgo/internal/errlog"
	"github.com/xelth-com/ordsyncgo/internal/handlers"
	"github.com/xelth-com/ordsyncgo/internal/marketplace"
	"github.com/xelth-com/ordsyncgo/internal/models"
	"github.com/xelth-com/ordsyncgo/internal/notify"
	"github.com/xelth-com/ordsyncgo/internal/sync"
	"github.com/xelth-com/ordsyncgo/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	syncCfg := config.LoadSyncConfig()

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Auto-Migrate Schema (Critical for Zero-Config)
	log.Println("🚀 Synchronizing database schema...")
	err = db.AutoMigrate(
		&models.UserAuth{},

		// Storefront order tables
		&models.StoreOrder{},
		&models.OrderNote{},

		// Sync engine tables
		&models.OrderSyncState{},
		&models.OrderSyncHistory{},
		&models.ManualResolution{},
		&models.ResolutionLog{},
		&models.SyncJob{},
		&models.SyncJobOrder{},
		&models.ErrorLog{},
	)
	if err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. WebSocket hub for the admin event stream
	hub := websocket.NewHub()
	go hub.Run()

	// 5. Error logger with severity-routed notifications
	errLogger := errlog.New(db, notify.Multi{notify.LogNotifier{}, hub})

	// 6. Sync engine wiring
	log.Println("🔄 Initializing Order Sync Engine...")
	machine := sync.NewStateMachine()
	states := sync.NewStateStore(db, machine, errLogger,
		syncCfg.MaxRetries, time.Duration(syncCfg.RetryDelay)*time.Second)

	remote := marketplace.NewService(marketplace.Config{
		URL:      cfg.Marketplace.URL,
		Database: cfg.Marketplace.Database,
		Username: cfg.Marketplace.Username,
		Password: cfg.Marketplace.Password,
	})

	localStore := sync.NewGormOrderStore(db)
	resolutions := sync.NewGormResolutionLog(db)
	manualQueue := sync.NewManualQueue(db, localStore)
	resolver := sync.NewResolver(sync.DefaultPolicy(syncCfg.TotalThreshold))
	extensions := sync.NewExtensionRegistry()

	orchestrator := sync.NewOrchestrator(remote, localStore, states, resolver,
		errLogger, manualQueue, resolutions, hub, extensions)

	scheduler := sync.NewTimerScheduler()
	jobs := sync.NewGormJobStore(db)
	runner := sync.NewRunner(jobs, remote, orchestrator, scheduler, errLogger, hub,
		time.Duration(syncCfg.BatchDelay)*time.Second, syncCfg.JobRetention)
	log.Println("✅ Sync Engine: ready")

	// Pick up bulk jobs interrupted by the previous shutdown
	if resumed, err := runner.Resume(); err != nil {
		log.Printf("⚠️ Could not resume interrupted bulk jobs: %v", err)
	} else if resumed > 0 {
		log.Printf("🔄 Resumed %d interrupted bulk job(s)", resumed)
	}

	// 7. Background auto-recovery sweep
	if syncCfg.Enabled && syncCfg.AutoRecoveryEnabled {
		go func() {
			interval := time.Duration(syncCfg.AutoRecoveryInterval) * time.Second
			ticker := time.NewTicker(interval)
			for range ticker.C {
				keys, err := states.GetRecoverableOrders(syncCfg.BatchSize)
				if err != nil {
					log.Printf("⚠️ Recovery sweep failed: %v", err)
					continue
				}
				for _, key := range keys {
					ok, err := states.AttemptRecovery(key, "automatic recovery sweep")
					if err != nil || !ok {
						continue
					}
					orchestrator.SyncOrder(key.LocalOrderID)
				}
			}
		}()
		log.Printf("✅ Recovery: sweep every %ds", syncCfg.AutoRecoveryInterval)
	}

	// 8. Daily history retention cleanup
	if syncCfg.HistoryRetentionDays > 0 {
		go func() {
			ticker := time.NewTicker(24 * time.Hour)
			for range ticker.C {
				deleted, err := states.CleanupHistory(syncCfg.HistoryRetentionDays)
				if err != nil {
					log.Printf("⚠️ History cleanup failed: %v", err)
					continue
				}
				if deleted > 0 {
					log.Printf("🧹 History cleanup: %d rows removed", deleted)
				}
			}
		}()
	}

	// 9. HTTP router
	router := handlers.NewRouter(db, cfg, orchestrator, runner, states, manualQueue, errLogger, hub)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server (%s) starting on port %s\n", cfg.InstanceID, cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	// Create context with timeout for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Stop pending batch ticks
	scheduler.Stop()

	// Close database (this also stops embedded PostgreSQL)
	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
