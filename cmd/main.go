package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"pointsbot/internal/auth"
	"pointsbot/internal/bot"
	"pointsbot/internal/config"
	"pointsbot/internal/events"
	"pointsbot/internal/handlers"
	"pointsbot/internal/ledger"
	"pointsbot/internal/service"
	"pointsbot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Initializing database at: %s", cfg.DatabasePath)
	if err := storage.InitDB(cfg.DatabasePath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer storage.CloseDB()

	pointsLedger := ledger.New()
	registry := events.NewRegistry()

	b, err := bot.New(cfg, pointsLedger, registry)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}
	go b.Start()
	defer b.Stop()

	// Resolution worker closes events once their deadline passes
	worker := service.NewEventWorker(registry, cfg.WorkerInterval)
	worker.Start()
	defer worker.Stop()

	// HTTP read API behind auth middleware
	validator := auth.NewValidator(cfg.BotToken)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/ping", handlers.PingHandler)
	apiMux.HandleFunc("/me", handlers.HandleMe)
	apiMux.HandleFunc("/leaderboard", handlers.HandleLeaderboard)
	apiMux.HandleFunc("/events", handlers.HandleLiveEvents(registry))

	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", validator.Middleware(apiMux)))

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("Server starting on %s", addr)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
}
