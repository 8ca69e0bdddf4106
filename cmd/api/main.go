package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wenwu/saas-platform/cwp-provisioner/internal/config"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/db"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/http"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/repository"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/secret"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/service"
)

func main() {
	log.Println("Starting CWP Provisioner...")

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize database
	database, err := db.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(context.Background()); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	box, err := secret.NewBox(cfg.Encryption.Key)
	if err != nil {
		log.Fatalf("Failed to initialize encryption: %v", err)
	}

	// Initialize repositories
	rowRepo := repository.NewModuleRowRepository(database.Pool, box)
	serviceRepo := repository.NewServiceRepository(database.Pool, box)
	logRepo := repository.NewLogRepository(database.Pool)

	// Initialize services
	panels := service.NewPanelFactory(cfg.Panel.Timeout)

	provisionService := service.NewProvisionService(cfg, rowRepo, rowRepo, logRepo, panels)

	server := http.NewServer(cfg, http.Services{
		Records:    service.NewRecordService(provisionService, serviceRepo),
		ModuleRows: service.NewModuleRowService(cfg, rowRepo, logRepo, logRepo, panels),
		Firewall:   service.NewFirewallService(rowRepo, logRepo, panels),
	})

	// Start server in goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Printf("Server starting on %s", addr)
		if err := server.Run(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}

	log.Println("Server exited")
}
