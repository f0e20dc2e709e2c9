package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"yard-pick/internal/config"
	"yard-pick/internal/metrics"
	"yard-pick/internal/repository"
	"yard-pick/internal/service"
)

func main() {
	configPath := flag.String("config", "yard.yaml", "path to YAML config file")
	dsn := flag.String("db", "", "database path or DSN, overrides config")
	once := flag.Bool("once", false, "run a single check and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}

	repo, err := repository.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("failed to initialize repository: %v", err)
	}
	defer repo.Close()

	claimMonitor := service.NewClaimMonitor(repo, metrics.NewMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		stale, err := claimMonitor.Check(ctx, cfg.Monitor.StaleAfter)
		if err != nil {
			log.Fatalf("check failed: %v", err)
		}
		log.Printf("%d stale claims older than %s", len(stale), cfg.Monitor.StaleAfter)
		return
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("shutting down monitor...")
		cancel()
	}()

	log.Printf("monitor started, checking every %s for claims older than %s", cfg.Monitor.Interval, cfg.Monitor.StaleAfter)
	if err := claimMonitor.Run(ctx, cfg.Monitor.Interval, cfg.Monitor.StaleAfter); err != nil && err != context.Canceled {
		log.Fatalf("monitor error: %v", err)
	}

	log.Println("monitor stopped")
}
