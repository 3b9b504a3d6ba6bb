package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/escrowpay/backend/internal/config"
	"github.com/escrowpay/backend/internal/db"
	"github.com/escrowpay/backend/internal/events"
	"github.com/escrowpay/backend/internal/models"
	"github.com/escrowpay/backend/internal/repositories"
	"github.com/escrowpay/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	ledger := repositories.NewLedgerRepo(pool, cfg.LockTimeout)
	publisher := events.NewRedisPublisher(rdb, log)
	escrowService := services.NewEscrowService(ledger, publisher, log)

	log.Info("worker started")

	timeoutTicker := time.NewTicker(2 * time.Minute)
	disputeTicker := time.NewTicker(15 * time.Minute)
	defer timeoutTicker.Stop()
	defer disputeTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-timeoutTicker.C:
			runFundingTimeouts(ctx, ledger, escrowService, cfg, log)
		case <-disputeTicker.C:
			runDisputeReminders(ctx, ledger, publisher, cfg, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// runFundingTimeouts cancels escrows that never completed funding. This is
// the only producer of the canceled status.
func runFundingTimeouts(ctx context.Context, ledger repositories.Ledger, escrowService *services.EscrowService, cfg *config.Config, log *zap.Logger) {
	for _, status := range []string{models.EscrowStatusCreated, models.EscrowStatusFundingPending} {
		escrows, err := ledger.ListEscrowsInStatusOlderThan(ctx, status, cfg.EscrowFundingTimeout, 100)
		if err != nil {
			log.Error("failed to list timed out escrows", zap.String("status", status), zap.Error(err))
			continue
		}

		for _, escrow := range escrows {
			log.Info("canceling escrow after funding timeout",
				zap.String("escrow_id", escrow.ID.String()),
				zap.String("status", escrow.Status),
			)
			if _, err := escrowService.Cancel(ctx, escrow.ID); err != nil {
				// A funding webhook may have landed between the sweep
				// query and the lock; that loss is fine.
				if errors.Is(err, models.ErrInvalidTransition) {
					continue
				}
				log.Error("failed to cancel escrow", zap.String("escrow_id", escrow.ID.String()), zap.Error(err))
			}
		}
	}
}

// runDisputeReminders flags long-open disputes for operators. No mutation:
// disputes resolve only through refund or a provider-confirmed release.
func runDisputeReminders(ctx context.Context, ledger repositories.Ledger, publisher events.Publisher, cfg *config.Config, log *zap.Logger) {
	escrows, err := ledger.ListEscrowsInStatusOlderThan(ctx, models.EscrowStatusDisputed, cfg.DisputeReminderAge, 100)
	if err != nil {
		log.Error("failed to list stale disputes", zap.Error(err))
		return
	}

	for _, escrow := range escrows {
		log.Warn("dispute open past reminder age",
			zap.String("escrow_id", escrow.ID.String()),
			zap.Time("updated_at", escrow.UpdatedAt),
		)
		_ = publisher.Publish(ctx, events.StreamEscrow, events.Event{
			Type: events.EventDisputeStale,
			Payload: map[string]any{
				"escrow_id":   escrow.ID.String(),
				"disputed_at": escrow.UpdatedAt,
				"buyer_id":    escrow.BuyerID,
				"seller_id":   escrow.SellerID,
			},
		})
	}
}
