package http

import (
	"time"

	"github.com/escrowpay/backend/internal/config"
	"github.com/escrowpay/backend/internal/http/handlers"
	"github.com/escrowpay/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	escrowHandler *handlers.EscrowHandler,
	webhookHandler *handlers.WebhookHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Provider webhooks: no rate limit, providers back off on 429 badly
	app.Post("/webhooks/:provider", webhookHandler.HandleEvent)

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute))

	// Escrows
	api.Post("/escrows", escrowHandler.CreateEscrow)
	api.Get("/escrows", escrowHandler.ListEscrows)
	api.Get("/escrows/:id", escrowHandler.GetEscrow)
	api.Get("/escrows/:id/transactions", escrowHandler.ListTransactions)
	api.Post("/escrows/:id/fund", escrowHandler.Fund)
	api.Post("/escrows/:id/release", escrowHandler.Release)
	api.Post("/escrows/:id/refund", escrowHandler.Refund)
	api.Post("/escrows/:id/dispute", escrowHandler.Dispute)

	// WebSocket event feed
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
