package main

import (
	"context"
	"log"
	"net/http"

	"github.com/zpcg-gtfs/poller/internal/api"
	"github.com/zpcg-gtfs/poller/internal/config"
	"github.com/zpcg-gtfs/poller/internal/db"
	"github.com/zpcg-gtfs/poller/internal/metrics"
)

func main() {
	// Load base .env first, then .env.local (which overrides for local development)
	config.LoadEnvFiles()
	cfg := config.Load()

	feedName := "feed.gtfs.zip"
	if op, err := config.LoadOperator(cfg.OperatorConfig); err != nil {
		log.Printf("Warning: operator document unavailable (%v), serving %s", err, feedName)
	} else if op.Output.FeedName != "" {
		feedName = op.Output.FeedName
	}

	log.Printf("Connecting to SQLite database: %s", cfg.DatabasePath)
	database, err := db.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize SQLite database: %v", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}
	log.Println("SQLite database connection established")

	handler := api.NewFeedHandler(database, cfg.OutputDir, feedName, metrics.NewCollector())
	r := api.NewRouter(handler, cfg.AllowedOrigins)

	log.Printf("API server starting on :%s", cfg.Port)
	log.Println("Feed endpoints:")
	log.Println("  GET /api/feed")
	log.Println("  GET /api/runs?limit=N")
	log.Println("  GET /api/unresolved")
	log.Println("  GET /feed.zip")
	log.Println("  GET /cancellations.pb")
	log.Println("Health:")
	log.Println("  GET /health (with database check)")
	log.Println("  GET /metrics")

	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
