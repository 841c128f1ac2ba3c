package main // Entry point package

import (
	"context" // contexts for startup tasks
	"log"     // Logging library
	"time"    // timeouts for startup tasks

	"github.com/joho/godotenv"    // loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/tuition-marketplace/internal/checkout"   // checkout session initiator
	"github.com/iliyamo/tuition-marketplace/internal/config"     // Internal config loader
	"github.com/iliyamo/tuition-marketplace/internal/database"   // MySQL connection helper
	"github.com/iliyamo/tuition-marketplace/internal/gateway"    // Stripe gateway adapter
	"github.com/iliyamo/tuition-marketplace/internal/handler"    // HTTP handlers
	"github.com/iliyamo/tuition-marketplace/internal/lifecycle"  // listing/application lifecycles
	"github.com/iliyamo/tuition-marketplace/internal/middleware" // rate limiting and caching
	"github.com/iliyamo/tuition-marketplace/internal/queue"      // hire.confirmed consumer
	"github.com/iliyamo/tuition-marketplace/internal/reconciler" // payment reconciler
	"github.com/iliyamo/tuition-marketplace/internal/repository" // account repositories
	"github.com/iliyamo/tuition-marketplace/internal/router"     // Internal router setup
	mysqlstore "github.com/iliyamo/tuition-marketplace/internal/store/mysql"
)

func main() {
	// .env is optional; real deployments set variables directly.
	_ = godotenv.Load()

	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	st := mysqlstore.New(db)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := st.Migrate(ctx); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	listings := lifecycle.NewListings(st)
	applications := lifecycle.NewApplications(st)

	gw := gateway.NewStripe(cfg.StripeSecretKey)
	initiator := checkout.NewInitiator(st, gw, cfg.Currency, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL)
	rec := reconciler.New(st, gw)

	// Forward-complete any hire whose payment insert was lost in a
	// crash before serving traffic alongside it.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := rec.Recover(ctx)
		if err != nil {
			log.Printf("recovery pass: %v", err)
			return
		}
		if n > 0 {
			log.Printf("recovery pass: forward-completed %d payment(s)", n)
		}
	}()

	// Consume hire.confirmed events in the background; the consumer
	// reconnects on broker failures and never stops the server.
	go func() {
		if err := queue.StartHireConsumer(); err != nil {
			log.Printf("hire consumer stopped: %v", err)
		}
	}()

	e := echo.New() // Create Echo instance

	// Redis-backed rate limiting and response caching.  A missing
	// Redis instance degrades both to pass-through middleware.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and caching disabled")
	}
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	// The response cache keys on route and query only, so it guards
	// just the public browse surface where responses are user-agnostic.
	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	authHandler := handler.NewAuthHandler(cfg, users, tokens)
	listingHandler := handler.NewListingHandler(listings, applications)
	applicationHandler := handler.NewApplicationHandler(applications)
	publicHandler := handler.NewPublicHandler(listings)
	paymentHandler := handler.NewPaymentHandler(initiator, rec, st)

	router.RegisterRoutes(e) // health check
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterPublic(e, publicHandler, cacheMW)
	router.RegisterMarketplace(e, listingHandler, applicationHandler, paymentHandler, cfg.JWTSecret)

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
