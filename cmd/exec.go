package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ticket-resale/config"
	"ticket-resale/internal/handlers"
	"ticket-resale/internal/services"
	"ticket-resale/internal/services/gateway"
	"ticket-resale/internal/services/notify"
	"ticket-resale/internal/store"
	_ "ticket-resale/migrations"
	"ticket-resale/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

func Start() error {
	app := pocketbase.New()

	cfg := config.LoadConfig()

	redisClient, err := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Warn("redis unavailable, market stats cache disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	notifier := buildNotifier(cfg)

	gw, err := gateway.New(&gateway.Config{
		Provider: gateway.Provider(cfg.GatewayProvider),
		REST: gateway.RESTConfig{
			BaseURL: cfg.GatewayBaseURL,
			APIKey:  cfg.GatewayAPIKey,
			Timeout: cfg.GatewayTimeout,
		},
	})
	if err != nil {
		return err
	}

	st := store.NewPocketBase(app)

	// Services
	pricing := services.NewPricingAdvisor(st)
	settlement := services.NewSettlement(st, gw, notifier, cfg.DefaultFeePercent)
	offerService := services.NewOfferService(st, gw, pricing, settlement, notifier)
	listingService := services.NewListingService(st, settlement, notifier)
	accountService := services.NewAccountService(st)
	marketData := services.NewMarketData(st, redisCmdable(redisClient), cfg.MarketStatsTTL)
	sweeps := services.NewSweepService(st, offerService, listingService, settlement, cfg.EscrowGrace)

	// Handlers
	offerHandler := handlers.NewOfferHandler(offerService, pricing)
	listingHandler := handlers.NewListingHandler(listingService)
	settlementHandler := handlers.NewSettlementHandler(settlement)
	marketHandler := handlers.NewMarketHandler(marketData)
	accountHandler := handlers.NewAccountHandler(accountService)

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == "development",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := startSweeps(ctx, cfg, sweeps)
	defer scheduler.Stop()

	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Account endpoints
		e.Router.POST("/api/v1/accounts/register", accountHandler.Register)
		e.Router.POST("/api/v1/accounts/login", accountHandler.Login)
		e.Router.PATCH("/api/v1/accounts/password", accountHandler.UpdatePassword)
		e.Router.PATCH("/api/v1/accounts/payout-account", accountHandler.UpdatePayoutAccount)
		e.Router.PATCH("/api/v1/accounts/{customerId}/fee", accountHandler.SetFeePercentage)

		// Offer endpoints
		e.Router.POST("/api/v1/offers", offerHandler.CreateOffer)
		e.Router.GET("/api/v1/offers", offerHandler.ListOffers)
		e.Router.GET("/api/v1/offers/{offerId}", offerHandler.GetOffer)
		e.Router.POST("/api/v1/offers/{offerId}/cancel", offerHandler.CancelOffer)
		e.Router.POST("/api/v1/offers/suggest-price", offerHandler.SuggestPrice)

		// Listing endpoints
		e.Router.POST("/api/v1/listings", listingHandler.CreateListing)
		e.Router.GET("/api/v1/listings", listingHandler.ListListings)
		e.Router.GET("/api/v1/listings/{listingId}", listingHandler.GetListing)
		e.Router.PATCH("/api/v1/listings/{listingId}", listingHandler.UpdateListing)
		e.Router.POST("/api/v1/listings/{listingId}/cancel", listingHandler.CancelListing)
		e.Router.POST("/api/v1/listings/{listingId}/go-live", listingHandler.GoLive)
		e.Router.POST("/api/v1/listings/{listingId}/accept", listingHandler.DirectAccept)
		e.Router.GET("/api/v1/events/{eventId}/offers", listingHandler.OffersForEvent)
		e.Router.GET("/api/v1/seller/analytics", listingHandler.Analytics)

		// Transaction endpoints
		e.Router.GET("/api/v1/transactions", offerHandler.ListTransactions)
		e.Router.POST("/api/v1/transactions/{transactionId}/transfer", settlementHandler.TransferTickets)
		e.Router.POST("/api/v1/transactions/{transactionId}/confirm", settlementHandler.ConfirmDelivery)
		e.Router.POST("/api/v1/transactions/{transactionId}/dispute", settlementHandler.OpenDispute)
		e.Router.POST("/api/v1/transactions/{transactionId}/resolve", settlementHandler.ResolveDispute)
		e.Router.POST("/api/v1/transactions/{transactionId}/retry-payout", settlementHandler.RetryPayout)

		// Market data
		e.Router.GET("/api/v1/events/{eventId}/market-stats", marketHandler.Stats)

		if cfg.EnableMetrics {
			e.Router.GET("/metrics", func(e *core.RequestEvent) error {
				promhttp.Handler().ServeHTTP(e.Response, e.Request)
				return nil
			})
		}

		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if redisClient != nil {
				if err := utils.RedisHealthCheck(redisClient); err != nil {
					return e.JSON(503, map[string]string{
						"status": "unhealthy",
						"error":  err.Error(),
					})
				}
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	return app.Start()
}

func buildNotifier(cfg *config.Config) notify.Notifier {
	if cfg.PubNubPublishKey == "" || cfg.PubNubSubscribeKey == "" {
		slog.Info("pubnub keys not configured, notifications disabled")
		return notify.Nop{}
	}

	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	return notify.NewPubNub(pubnub.NewPubNub(pnConfig))
}

func startSweeps(ctx context.Context, cfg *config.Config, sweeps *services.SweepService) *cron.Cron {
	scheduler := cron.New()

	register := func(schedule, name string, run func(context.Context)) {
		if _, err := scheduler.AddFunc(schedule, func() { run(ctx) }); err != nil {
			slog.Error("invalid sweep schedule", "sweep", name, "schedule", schedule, "error", err)
		}
	}

	register(cfg.ExpirationSchedule, "expiration", sweeps.RunExpiration)
	register(cfg.GoLiveSchedule, "go_live", sweeps.RunGoLive)
	register(cfg.AutoSellSchedule, "auto_sell", sweeps.RunAutoSell)
	register(cfg.EscrowTimeoutSchedule, "escrow_timeout", sweeps.RunEscrowTimeout)

	scheduler.Start()
	return scheduler
}

func redisCmdable(client *redis.Client) redis.Cmdable {
	if client == nil {
		return nil
	}
	return client
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
