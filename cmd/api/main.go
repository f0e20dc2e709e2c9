package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"yard-pick/internal/config"
	"yard-pick/internal/handler"
	"yard-pick/internal/metrics"
	"yard-pick/internal/repository"
	"yard-pick/internal/service"
)

func main() {
	configPath := flag.String("config", "yard.yaml", "path to YAML config file")
	driver := flag.String("driver", "", "database driver (sqlite3 or mysql), overrides config")
	dsn := flag.String("db", "", "database path or DSN, overrides config")
	port := flag.String("port", "", "HTTP server port, overrides config")
	monitor := flag.Bool("monitor", true, "report stale claims in the background")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *driver != "" {
		cfg.Database.Driver = *driver
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	// Initialize repository
	repo, err := repository.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("failed to initialize repository: %v", err)
	}
	defer repo.Close()

	metricsInstance := metrics.NewMetrics()
	rateLimiter := service.NewRateLimiter(cfg.Server.RequestsPerMinute)

	// Initialize services
	claimService := service.NewClaimService(repo, metricsInstance)
	jobService := service.NewJobService(repo, metricsInstance)
	progressService := service.NewProgressService(repo, metricsInstance)
	spotService := service.NewSpotService(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := claimService.RegisterWorkers(ctx, cfg.WorkerList()); err != nil {
		log.Fatalf("failed to register workers: %v", err)
	}
	if err := spotService.Provision(ctx, cfg.Spots()); err != nil {
		log.Fatalf("failed to provision spots: %v", err)
	}

	if *monitor {
		claimMonitor := service.NewClaimMonitor(repo, metricsInstance)
		go func() {
			if err := claimMonitor.Run(ctx, cfg.Monitor.Interval, cfg.Monitor.StaleAfter); err != nil && err != context.Canceled {
				log.Printf("claim monitor stopped: %v", err)
			}
		}()
	}

	jobHandler := handler.NewJobHandler(claimService, jobService, progressService, spotService, rateLimiter, metricsInstance)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           jobHandler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("API server starting on port %s (driver=%s)", cfg.Server.Port, cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-sigChan
	log.Println("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("error closing server: %v", err)
	}
	log.Println("server stopped")
}
