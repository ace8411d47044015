package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zpcg-gtfs/poller/internal/config"
	"github.com/zpcg-gtfs/poller/internal/db"
	"github.com/zpcg-gtfs/poller/internal/feed"
	"github.com/zpcg-gtfs/poller/internal/fetch"
	"github.com/zpcg-gtfs/poller/internal/gtfs"
	"github.com/zpcg-gtfs/poller/internal/metrics"
	"github.com/zpcg-gtfs/poller/internal/publish"
	"github.com/zpcg-gtfs/poller/internal/resolve"
	"github.com/zpcg-gtfs/poller/internal/stations"
	"github.com/zpcg-gtfs/poller/internal/timetable"
	"github.com/zpcg-gtfs/poller/internal/timetable/hafasrest"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("Starting HAFAS feed poller...")

	config.LoadEnvFiles()
	cfg := config.Load()
	log.Printf("Config loaded: db=%s, backend=%s, max_trips=%d", cfg.DatabasePath, cfg.HafasBaseURL, cfg.MaxTrips)

	// ═══════════════════════════════════════════════════════
	// PHASE 1: Inputs (fatal when missing)
	// ═══════════════════════════════════════════════════════
	op, err := config.LoadOperator(cfg.OperatorConfig)
	if err != nil {
		log.Fatalf("Failed to load operator document: %v", err)
	}
	if err := config.RequireFile(cfg.StationsGeoJSON, "stations dataset"); err != nil {
		log.Fatalf("Failed to load stations: %v", err)
	}
	index, err := stations.Load(cfg.StationsGeoJSON)
	if err != nil {
		log.Fatalf("Failed to load stations: %v", err)
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 2: Initialize Database
	// ═══════════════════════════════════════════════════════
	database, err := db.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}
	if err := database.Cleanup(context.Background(), cfg.RetentionDuration); err != nil {
		log.Printf("Warning: cleanup failed: %v", err)
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 3: Wire resolver, assembler and fetch loop
	// ═══════════════════════════════════════════════════════
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()
	if cfg.MetricsAddr != "" {
		srv := collector.Serve(cfg.MetricsAddr)
		defer srv.Close()
	}

	var offsets metrics.OffsetStats
	cache := resolve.NewCache()
	resolver := resolve.New(index, cache, resolve.Options{
		NamePriority:   op.NamePriority,
		StopQualifiers: op.StopQualifiers,
		OnMiss: func(s timetable.Stop) {
			collector.StopsUnresolved.Inc()
			if err := database.RecordUnresolved(context.WithoutCancel(ctx), s.ID, s.Name, s.Lat, s.Lon, time.Now()); err != nil {
				log.Printf("Warning: %v", err)
			}
		},
		OnMatch: func(s timetable.Stop, rec stations.Record) {
			collector.StopsMatched.Inc()
			collector.MatchOffsetMetres.Observe(offsets.Observe(s.Lat, s.Lon, rec.Lat, rec.Lon))
		},
	})

	assembler := feed.New(resolver, feed.Options{
		Agency: gtfs.Agency{
			ID:       op.Agency.ID,
			Name:     op.Agency.Name,
			URL:      op.Agency.URL,
			Timezone: op.Timezone,
			Phone:    op.Agency.Phone,
			FareURL:  op.Agency.FareURL,
			Email:    op.Agency.Email,
		},
		FeedInfo: gtfs.FeedInfo{
			PublisherName: op.Feed.PublisherName,
			PublisherURL:  op.Feed.PublisherURL,
			Lang:          op.Feed.Lang,
			ContactEmail:  op.Feed.ContactEmail,
		},
		Location:          op.Location(),
		RouteColor:        op.Agency.Color,
		RouteTextColor:    op.Agency.TextColor,
		OnUnknownCategory: func(c string) { collector.UnknownCategories.WithLabelValues(c).Inc() },
		OnSkippedStopover: func(*timetable.Trip, timetable.Stop) { collector.StopoversSkipped.Inc() },
	})

	client := hafasrest.NewClient(cfg.HafasBaseURL, cfg.HafasTimeout)
	loop := fetch.NewLoop(client, assembler, database, fetch.FileStore{Dir: cfg.StateDir}, fetch.Options{
		MaxTrips: cfg.MaxTrips,
		Products: timetable.Products(op.Products),
		Observer: collector,
	})

	// ═══════════════════════════════════════════════════════
	// PHASE 4: One fetch session per station query
	// ═══════════════════════════════════════════════════════
	for _, station := range op.Stations {
		if ctx.Err() != nil {
			break
		}
		log.Printf("Fetch[%s]: fetching data", station)
		if err := runSession(ctx, database, loop, station); err != nil {
			log.Printf("Fetch[%s]: session failed: %v", station, err)
		}
	}

	collector.ResolverCacheHits.Add(float64(cache.Hits()))
	log.Printf("Resolver: %d coordinate pairs cached, %d cache hits", cache.Len(), cache.Hits())
	if offsets.Count > 0 {
		log.Printf("Resolver: match offset mean=%.0fm stddev=%.0fm max=%.0fm over %d stops",
			offsets.Mean, offsets.StdDev(), offsets.Max, offsets.Count)
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 5: Publish
	// ═══════════════════════════════════════════════════════
	if !cfg.Publish || ctx.Err() != nil {
		log.Println("Goodbye!")
		return
	}

	publisher := publish.New(database, publish.ExecRunner{}, publish.Options{
		OutputDir: cfg.OutputDir,
		FeedName:  op.Output.FeedName,
		OSMPath:   op.Shapes.OSMPath,
		GTFSClean: op.Tools.GTFSClean,
		Pfaedle:   op.Tools.Pfaedle,
		Location:  op.Location(),
	})
	if !publish.IsStale(publisher.ManifestPath(), cfg.PublishMaxAge) {
		log.Println("Publish: feed is fresh, skipping")
		return
	}
	if _, err := publisher.Publish(ctx); err != nil {
		log.Fatalf("Failed to publish feed: %v", err)
	}
	log.Println("Goodbye!")
}

// runSession runs one fetch session and records it in fetch_runs
func runSession(ctx context.Context, database *db.DB, loop *fetch.Loop, station string) error {
	bookkeeping := context.WithoutCancel(ctx)

	runID, err := database.StartRun(bookkeeping, station, time.Now())
	if err != nil {
		return err
	}

	res, runErr := loop.Run(ctx, station)

	outcome := db.RunOutcome{
		StartWatermark: res.Start,
		EndWatermark:   res.End,
		Batches:        res.Batches,
		Trips:          res.Trips,
		StopReason:     string(res.Reason),
		Err:            errors.Join(res.Err, runErr),
	}
	if err := database.FinishRun(bookkeeping, runID, time.Now(), outcome); err != nil {
		log.Printf("Warning: %v", err)
	}

	log.Printf("Fetch[%s]: stopped (%s) after %d batches, %d trips", station, res.Reason, res.Batches, res.Trips)
	return runErr
}
