package server

import (
	"context"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sporesmarket/settlement/internal/auth"
	"github.com/sporesmarket/settlement/internal/collection"
	"github.com/sporesmarket/settlement/internal/config"
	"github.com/sporesmarket/settlement/internal/constants"
	"github.com/sporesmarket/settlement/internal/events"
	"github.com/sporesmarket/settlement/internal/handlers"
	"github.com/sporesmarket/settlement/internal/logger"
	"github.com/sporesmarket/settlement/internal/market"
	"github.com/sporesmarket/settlement/internal/middleware"
	"github.com/sporesmarket/settlement/internal/minter"
	"github.com/sporesmarket/settlement/internal/registry"
	"github.com/sporesmarket/settlement/internal/store"
	"github.com/sporesmarket/settlement/internal/token"
)

// Handler Definitions
var (
	healthHandler     *handlers.HealthHandler
	marketHandler     *handlers.MarketHandler
	collectionHandler *handlers.CollectionHandler
	registryHandler   *handlers.RegistryHandler

	cfg         *config.Config
	ledger      store.Ledger
	webhookSink *events.Webhook
)

// InitializeHandlers loads configuration, opens the settlement store and
// wires the engine behind the API handlers.
func InitializeHandlers() {
	loaded, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	cfg = loaded

	logger.InitLogger(cfg.Stage)

	ledger = openLedger()

	reg := registry.New(ledger, registry.Config{
		Admin:    cfg.Admin,
		Verifier: cfg.Verifier,
		Treasury: cfg.Treasury,
	})
	// Privileged addresses are held in memory and re-seeded each boot; the
	// ledger carries only consumed signatures, cancellations and settlements.
	if err := reg.UpdateMarket(cfg.Admin, cfg.Market); err != nil {
		logger.Fatal("seed market address", zap.Error(err))
	}
	if err := reg.UpdateMinter(cfg.Admin, cfg.Minter); err != nil {
		logger.Fatal("seed minter address", zap.Error(err))
	}

	bank := token.NewInMemoryBank()
	directory := token.NewDirectory()
	collector := token.NewCollector(bank, directory, cfg.Market)

	emitter := buildEmitter()

	factory := collection.NewFactory(reg, cfg.Registry, directory, emitter)
	engine := market.New(cfg.Market, reg, ledger, collector, directory, emitter)
	minterService := minter.New(cfg.Minter, reg, factory)

	commonServices := handlers.NewCommonServices(engine, factory, reg, minterService)

	// API Handler initialization
	healthHandler = handlers.NewHealthHandler()
	marketHandler = handlers.NewMarketHandler(commonServices)
	collectionHandler = handlers.NewCollectionHandler(commonServices)
	registryHandler = handlers.NewRegistryHandler(commonServices)

	logger.Info("settlement engine initialized",
		zap.String("stage", cfg.Stage),
		zap.String("store", cfg.StoreDriver),
		zap.String("market", cfg.Market.Hex()),
		zap.String("minter", cfg.Minter.Hex()),
		zap.String("verifier", cfg.Verifier.Hex()))
}

func openLedger() store.Ledger {
	switch cfg.StoreDriver {
	case constants.StorePebble:
		db, err := store.OpenPebble(cfg.PebblePath)
		if err != nil {
			logger.Fatal("open pebble store", zap.String("path", cfg.PebblePath), zap.Error(err))
		}
		return db
	case constants.StorePostgres:
		db, err := store.OpenPostgres(context.Background(), cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("open postgres store", zap.Error(err))
		}
		return db
	default:
		return store.NewMemory()
	}
}

func buildEmitter() events.Emitter {
	sinks := events.Multi{events.Log{}}
	if cfg.WebhookURL != "" {
		webhookSink = events.NewWebhook(events.WebhookConfig{
			URL:            cfg.WebhookURL,
			RequestTimeout: cfg.WebhookTimeout,
		})
		sinks = append(sinks, webhookSink)
	}
	return sinks
}

// InitializeRoutes mounts the middleware chain and every API route.
func InitializeRoutes(router *gin.Engine) {
	router.Use(configureCORS())
	router.Use(middleware.CorrelationIDMiddleware())

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	router.Use(rateLimiter.Middleware())

	isDevelopment := cfg.Stage != constants.StageProd
	if isDevelopment {
		router.Use(middleware.EnhancedLoggingMiddleware(true))
	} else {
		router.Use(middleware.RequestLoggingMiddleware())
	}

	// Health check
	router.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Settlement
		marketRoutes := v1.Group("/market")
		{
			marketRoutes.POST("/redeem", marketHandler.Redeem)
			marketRoutes.POST("/purchase", marketHandler.Purchase)
			marketRoutes.POST("/cancel", marketHandler.Cancel)
			marketRoutes.GET("/settlements", marketHandler.ListSettlements)
			marketRoutes.GET("/settlements/:sale_id", marketHandler.GetSettlement)
		}

		// Collections and editions
		collections := v1.Group("/collections")
		{
			collections.POST("", collectionHandler.CreateCollection)
			collections.GET("", collectionHandler.ListCollections)
			collections.GET("/:collection_id", collectionHandler.GetCollection)
			collections.POST("/:collection_id/subcollections", collectionHandler.AddSubCollection)
		}
		v1.GET("/tokens/:token_id", collectionHandler.GetToken)

		// Eager minting through the minter role
		v1.POST("/mint", collectionHandler.Mint)
		v1.POST("/mint/batch", collectionHandler.MintBatch)

		// Registry reads
		registryRoutes := v1.Group("/registry")
		{
			registryRoutes.GET("", registryHandler.GetRegistry)
			registryRoutes.GET("/nft-contracts/:address", registryHandler.GetNFTContract)
			registryRoutes.GET("/payment-tokens/:address", registryHandler.GetPaymentToken)
		}

		// Admin-only registry mutations
		admin := v1.Group("/admin")
		admin.Use(auth.RequireAdmin(cfg.AdminJWTSecret))
		admin.Use(middleware.StrictRateLimiter.Middleware())
		{
			admin.POST("/registry/nft-contracts", registryHandler.RegisterNFTContract)
			admin.DELETE("/registry/nft-contracts/:address", registryHandler.UnregisterNFTContract)
			admin.POST("/registry/payment-tokens", registryHandler.RegisterPaymentToken)
			admin.DELETE("/registry/payment-tokens/:address", registryHandler.UnregisterPaymentToken)
			admin.PUT("/registry/market", registryHandler.UpdateMarket)
			admin.PUT("/registry/minter", registryHandler.UpdateMinter)
			admin.PUT("/registry/verifier", registryHandler.UpdateVerifier)
			admin.PUT("/registry/treasury", registryHandler.UpdateTreasury)
			admin.PUT("/registry/admin", registryHandler.UpdateAdmin)
		}
	}
}

// ListenAddr returns the configured listen address.
func ListenAddr() string {
	return cfg.ListenAddr
}

// Shutdown drains the webhook queue and closes the settlement store.
func Shutdown() {
	if webhookSink != nil {
		webhookSink.Close()
	}
	if ledger != nil {
		if err := ledger.Close(); err != nil {
			logger.Error("close settlement store", zap.Error(err))
		}
	}
	_ = logger.Sync()
}

// configureCORS returns a configured CORS middleware
func configureCORS() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key", "X-Correlation-ID"}
	corsConfig.ExposeHeaders = []string{"X-Correlation-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"}
	return cors.New(corsConfig)
}
