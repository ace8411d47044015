// Package publish exports the feed store to a GTFS archive, runs the
// post-processing tools and writes the side files served next to it.
package publish

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/zpcg-gtfs/poller/internal/db"
	"github.com/zpcg-gtfs/poller/internal/feed"
	"github.com/zpcg-gtfs/poller/internal/gtfs"
)

// File names inside the output directory
const (
	RawFeedName       = "gtfs.zip"
	CancellationsName = "cancellations.pb"
	ManifestName      = "manifest.json"
)

// gtfsCleanFlags minimize and deduplicate the raw export
var gtfsCleanFlags = []string{
	"--minimize-services",
	"--minimize-stoptimes",
	"--remove-red-routes",
	"--remove-red-services",
	"--remove-red-trips",
	"--red-trips-fuzzy",
	"--non-overlapping-services",
	"--explicit-calendar",
	"--minimize-ids-char",
	"--keep-station-ids",
	"--delete-orphans",
}

// Store is the read side of the feed store
type Store interface {
	ReadFeed(ctx context.Context) (*gtfs.Feed, error)
	Cancellations(ctx context.Context, fromDate int) ([]db.Cancellation, error)
}

// Options configures a publisher
type Options struct {
	OutputDir string
	FeedName  string
	OSMPath   string
	GTFSClean string
	Pfaedle   string
	Location  *time.Location
	Now       func() time.Time
}

// Publisher turns the feed store into a published archive
type Publisher struct {
	store  Store
	runner Runner
	opts   Options
}

// New creates a publisher
func New(store Store, runner Runner, opts Options) *Publisher {
	if opts.OutputDir == "" {
		opts.OutputDir = "out"
	}
	if opts.FeedName == "" {
		opts.FeedName = "feed.gtfs.zip"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Publisher{store: store, runner: runner, opts: opts}
}

// ManifestPath returns where Publish writes its manifest
func (p *Publisher) ManifestPath() string {
	return filepath.Join(p.opts.OutputDir, ManifestName)
}

// FeedPath returns where Publish writes the final archive
func (p *Publisher) FeedPath() string {
	return filepath.Join(p.opts.OutputDir, p.opts.FeedName)
}

// Publish exports the store, post-processes the archive and writes the
// cancellation feed and manifest
func (p *Publisher) Publish(ctx context.Context) (*Manifest, error) {
	now := p.opts.Now()
	outDir, err := filepath.Abs(p.opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output dir: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	rows, err := p.store.ReadFeed(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}

	raw := filepath.Join(outDir, RawFeedName)
	if err := gtfs.WriteZip(raw, rows); err != nil {
		return nil, err
	}
	log.Printf("Publish: exported %s (%d trips, %d stop times)",
		raw, rows.Count(gtfs.Trips), rows.Count(gtfs.StopTimes))

	final := filepath.Join(outDir, p.opts.FeedName)
	if err := p.postProcess(ctx, outDir, raw, final); err != nil {
		return nil, err
	}

	cancellations, err := p.store.Cancellations(ctx, feed.ServiceDate(now.In(p.opts.Location)))
	if err != nil {
		return nil, err
	}
	if err := WriteCancellations(filepath.Join(outDir, CancellationsName), cancellations, now); err != nil {
		return nil, err
	}

	checksum, err := fileSHA256(final)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", final, err)
	}

	manifest := &Manifest{
		GeneratedAt:       now.UTC().Format(time.RFC3339),
		FeedPath:          p.opts.FeedName,
		FeedSHA256:        checksum,
		CancellationsPath: CancellationsName,
		Counts:            rows.Counts(),
	}
	if err := writeJSON(filepath.Join(outDir, ManifestName), manifest); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	if summary, err := Summarize(final); err != nil {
		log.Printf("Warning: published feed could not be read back: %v", err)
	} else {
		log.Printf("Publish: %s has %d routes, %d trips, %d stops, %d services",
			p.opts.FeedName, summary.Routes, summary.Trips, summary.Stops, summary.Services)
	}

	return manifest, nil
}

// postProcess runs gtfsclean, pfaedle and gtfsclean again. Unconfigured
// tools are skipped; without gtfsclean the raw archive is copied as is.
func (p *Publisher) postProcess(ctx context.Context, dir, raw, final string) error {
	if p.opts.GTFSClean == "" {
		log.Printf("Warning: gtfsclean not configured, publishing unminimized feed")
		if err := copyFile(raw, final); err != nil {
			return fmt.Errorf("failed to copy feed: %w", err)
		}
	} else {
		args := append(append([]string{}, gtfsCleanFlags...), raw, "--output", final)
		if err := p.runner.Run(ctx, dir, p.opts.GTFSClean, args...); err != nil {
			return err
		}
	}

	if p.opts.Pfaedle == "" || p.opts.OSMPath == "" {
		log.Printf("Warning: pfaedle or OSM path not configured, publishing without shapes")
		return nil
	}

	osm, err := filepath.Abs(p.opts.OSMPath)
	if err != nil {
		return fmt.Errorf("failed to resolve OSM path: %w", err)
	}
	if err := p.runner.Run(ctx, dir, p.opts.Pfaedle, "--inplace", "-x", osm, final); err != nil {
		return err
	}

	if p.opts.GTFSClean != "" {
		if err := p.runner.Run(ctx, dir, p.opts.GTFSClean, final, "-o", final); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
