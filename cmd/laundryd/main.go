package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"laundry-jobs-backend/config"
	"laundry-jobs-backend/internal/api"
	"laundry-jobs-backend/internal/clock"
	"laundry-jobs-backend/internal/db"
	"laundry-jobs-backend/internal/disposal"
	"laundry-jobs-backend/internal/lifecycle"
	"laundry-jobs-backend/internal/lock"
	"laundry-jobs-backend/internal/notification"
	"laundry-jobs-backend/internal/store"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "laundry-jobs ", log.LstdFlags)

	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			logger.Fatalf("failed to load .env file: %v", err)
		}
	}

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	appStore := store.NewGormStore(gormDB)

	// Outbound notification channels
	var sms notification.Sender
	if cfg.SMS.Enabled {
		client, err := notification.NewSMSClient(cfg.SMS)
		if err != nil {
			logger.Fatalf("failed to configure SMS gateway: %v", err)
		}
		sms = client
	} else {
		logger.Println("SMS disabled; customer notifications will only be logged")
	}

	var webpushOptions *webpush.Options
	var staff notification.Broadcaster
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		staff = notification.NewStaffBroadcaster(appStore, webpushOptions)
	} else {
		logger.Println("VAPID keys not configured; staff push notifications disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, sms, staff, cfg.SMS.Timeout)
	workerPool.Start(ctx)

	locks := lock.NewKeyed()
	policy := disposal.Policy{
		WarningAfter: cfg.Disposal.WarningThreshold,
		ExpireAfter:  cfg.Disposal.ExpiryThreshold,
	}

	engine, err := lifecycle.NewEngine(lifecycle.Options{
		Store:       appStore,
		Locks:       locks,
		Notifier:    workerPool,
		Clock:       clock.Real{},
		Policy:      policy,
		Lifecycle:   cfg.Lifecycle,
		Receipt:     cfg.Receipt,
		Consumables: cfg.Consumables,
	})
	if err != nil {
		logger.Fatalf("failed to create job engine: %v", err)
	}

	sweeper, err := disposal.NewSweeper(disposal.SweeperOptions{
		Store:         appStore,
		Locks:         locks,
		Notifier:      workerPool,
		Clock:         clock.Real{},
		Policy:        policy,
		Interval:      cfg.Disposal.Interval,
		NotifyTimeout: cfg.Disposal.NotifyTimeout,
		StoreName:     cfg.Receipt.StoreName,
		Branding:      engine.StoreName,
	})
	if err != nil {
		logger.Fatalf("failed to create disposal sweeper: %v", err)
	}

	router := api.NewRouter(engine, sweeper, appStore, webpushOptions, cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server ListenAndServe: %w", err)
		}
		return nil
	})
	if cfg.Disposal.Enabled {
		group.Go(func() error { return sweeper.Run(gctx) })
	} else {
		logger.Println("disposal sweep disabled; use POST /api/disposal/trigger to run it manually")
	}
	group.Go(func() error {
		<-gctx.Done()
		logger.Println("Shutdown signal received, stopping services...")

		// Create a deadline to wait for.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Printf("service stopped with error: %v", err)
	}

	// Flush queued notifications after the last request and sweep tick.
	workerPool.Shutdown()
	logger.Println("Server gracefully stopped")
}
