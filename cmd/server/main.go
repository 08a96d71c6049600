package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"

	"learnloop-backend/internal/config"
	"learnloop-backend/internal/database"
	"learnloop-backend/internal/handlers"
	"learnloop-backend/internal/middleware"
	"learnloop-backend/internal/router"
	"learnloop-backend/internal/services"
	"learnloop-backend/internal/store"
	"learnloop-backend/internal/tracker"
	"learnloop-backend/internal/websocket"
	"learnloop-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting LearnLoop Activity Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Step 5: Select Aggregation Store ────
	var aggregateStore store.AggregateStore
	switch cfg.StoreBackend {
	case "redis":
		aggregateStore = store.NewRedisStore(redisClients.Store)
	default:
		aggregateStore = store.NewPostgresStore(pool)
	}
	log.Printf("✓ Aggregation store ready (%s)", cfg.StoreBackend)

	// ──── Step 6: Initialize Tracking Engine ────
	publisher := websocket.NewPublisher(redisClients.Store)
	trackerOpts := []tracker.Option{
		tracker.WithInterval(cfg.CheckpointInterval),
		tracker.WithMinSessionSeconds(cfg.MinSessionSeconds),
		tracker.WithEventSink(publisher),
	}

	var retryPool *worker.RetryPool
	if cfg.RetryEnabled {
		retryPool = worker.NewRetryPool(redisClients.Store, aggregateStore, cfg.RetryWorkers)
		retryPool.Start()
		trackerOpts = append(trackerOpts, tracker.WithRetrySink(retryPool))
		log.Printf("✓ Flush retry pool started (%d goroutines)", cfg.RetryWorkers)
	}

	manager := tracker.NewManager(aggregateStore, trackerOpts...)
	activityService := services.NewActivityService(aggregateStore, quartz.NewReal())

	// ──── Step 7: Start WebSocket Hub ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret)
	log.Println("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	activityHandler := handlers.NewActivityHandler(manager, activityService)
	r := router.New(jwtAuth, activityHandler, wsHub, cfg.FrontendURL)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")

		// Final flush for every open session before the process exits.
		manager.StopAll(context.Background())
		if retryPool != nil {
			retryPool.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ LearnLoop Activity Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
