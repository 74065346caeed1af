package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ywcorp/corploango/internal/config"
	"github.com/ywcorp/corploango/internal/database"
	"github.com/ywcorp/corploango/internal/events"
	"github.com/ywcorp/corploango/internal/handlers"
	"github.com/ywcorp/corploango/internal/models"
	"github.com/ywcorp/corploango/internal/storage"
	"github.com/ywcorp/corploango/internal/workflow"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Auto-Migrate Schema
	log.Println("🚀 Synchronizing database schema...")
	err = db.AutoMigrate(
		&models.UserAuth{},
		&models.LoanApplication{},
		&models.WorkflowStage{},
		&models.UploadedDocument{},
		&models.UserAction{},
	)
	if err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. Object store for document bytes
	store, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize object store: %v", err)
	}
	bucketCtx, cancelBucket := context.WithTimeout(context.Background(), 15*time.Second)
	if err := store.EnsureBucket(bucketCtx); err != nil {
		log.Printf("⚠️ Object store not ready (uploads will fail until it is): %v", err)
	}
	cancelBucket()

	// 5. Workflow service and event hub
	svc := workflow.New(db)

	hub := events.NewHub()
	go hub.Run()

	// 6. HTTP router
	router := handlers.NewRouter(db, svc, store, hub, cfg)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Loan dashboard API starting on port %s [env: %s]\n", cfg.Port, cfg.NodeEnv)
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

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ HTTP server shutdown error: %v", err)
	}

	if err := db.Close(); err != nil {
		log.Printf("⚠️ Database shutdown error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
