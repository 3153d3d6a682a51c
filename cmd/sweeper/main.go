// Command sweeper re-runs push dispatch for notification recipients with no
// recorded successful delivery. It is a one-shot binary meant to be invoked
// from cron; each run is idempotent, so overlapping schedules are safe.
package main

import (
	"context"
	"log"
	"time"

	"github.com/trungle-dev/relaychat/internal/config"
	"github.com/trungle-dev/relaychat/internal/repository"
	"github.com/trungle-dev/relaychat/internal/service"
	"github.com/trungle-dev/relaychat/pkg/push"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sweepTimeout = 5 * time.Minute

func main() {
	cfg := config.Load()

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	log.Println("✅ Connected to Database")

	notifRepo := repository.NewNotificationRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)

	fcm, err := push.NewFCM(cfg.Firebase.CredentialsFile, deviceRepo)
	if err != nil {
		log.Fatalf("❌ Failed to initialize FCM: %v", err)
	}
	if fcm == nil {
		log.Println("⚠️  Push is disabled, nothing to sweep")
		return
	}

	notifService := service.NewNotificationService(notifRepo, fcm, nil, cfg.Push.Concurrency)

	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	// One batch per run. Recipients that fail again stay pending and are
	// picked up by the next cron invocation.
	attempted, err := notifService.Redispatch(ctx, cfg.Push.SweepBatch)
	if err != nil {
		log.Fatalf("❌ Sweep failed: %v", err)
	}

	log.Printf("🧹 Sweep completed: %d dispatch attempts", attempted)
}
