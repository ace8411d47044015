package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/zpcg-gtfs/poller/internal/config"
	"github.com/zpcg-gtfs/poller/internal/db"
	"github.com/zpcg-gtfs/poller/internal/publish"
)

func main() {
	config.LoadEnvFiles()
	cfg := config.Load()

	dbPath := flag.String("db", cfg.DatabasePath, "Path to SQLite database")
	outDir := flag.String("out", cfg.OutputDir, "Output directory for the feed archive")
	operatorPath := flag.String("operator", cfg.OperatorConfig, "Path to the operator document")
	flag.Parse()

	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	op, err := config.LoadOperator(*operatorPath)
	if err != nil {
		log.Fatalf("Failed to load operator document: %v", err)
	}

	database, err := db.Connect(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publisher := publish.New(database, publish.ExecRunner{}, publish.Options{
		OutputDir: *outDir,
		FeedName:  op.Output.FeedName,
		OSMPath:   op.Shapes.OSMPath,
		GTFSClean: op.Tools.GTFSClean,
		Pfaedle:   op.Tools.Pfaedle,
		Location:  op.Location(),
	})

	manifest, err := publisher.Publish(ctx)
	if err != nil {
		log.Fatalf("Failed to publish feed: %v", err)
	}
	log.Printf("Published %s (sha256 %s)", publisher.FeedPath(), manifest.FeedSHA256)
}
