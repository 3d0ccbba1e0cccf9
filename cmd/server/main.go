package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bcnelson/firewalld-rule-manager/internal/api"
	"github.com/bcnelson/firewalld-rule-manager/internal/compiler"
	"github.com/bcnelson/firewalld-rule-manager/internal/config"
	"github.com/bcnelson/firewalld-rule-manager/internal/firewalld"
	"github.com/bcnelson/firewalld-rule-manager/internal/service"
	"github.com/bcnelson/firewalld-rule-manager/internal/storage/sql"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Create data directory if needed (for SQLite)
	if cfg.Database.Driver == "sqlite3" {
		dir := "data"
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}

	// Initialize storage
	store, err := sql.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Initialize firewalld client (or file shim for testing)
	var fwClient firewalld.ConfigClient
	if cfg.UseFileShim() {
		log.Printf("Using file shim for firewalld: %s", cfg.Firewalld.FileShim)
		fwClient = firewalld.NewFileShim(cfg.Firewalld.FileShim)
	} else {
		client, err := firewalld.NewDBusClient()
		if err != nil {
			log.Fatalf("Failed to connect to firewalld over D-Bus: %v", err)
		}
		defer client.Close()
		fwClient = client
	}

	// Initialize sync service
	syncService := service.NewSyncService(
		store,
		fwClient,
		compiler.Defaults{
			Prefix: cfg.Firewalld.DefaultPrefix,
			Zone:   cfg.Firewalld.DefaultZone,
		},
		cfg.Sync.Debounce,
		cfg.Sync.AutoApply,
		cfg.Firewalld.Enabled,
	)

	// Create router
	router := api.NewRouter(store, syncService, cfg.Sync.BootstrapAPIKey)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting Firewalld Rule Manager on http://%s", cfg.Server.Addr())
	log.Printf("Press Ctrl+C to stop")

	// Start server in goroutine
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
