package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes feed builder metrics on a private registry
type Collector struct {
	reg *prometheus.Registry

	TripsWritten      prometheus.Counter
	BatchesCommitted  prometheus.Counter
	StopsUnresolved   prometheus.Counter
	StopsMatched      prometheus.Counter
	ResolverCacheHits prometheus.Counter
	StopoversSkipped  prometheus.Counter
	UnknownCategories *prometheus.CounterVec // category label
	SessionsStopped   *prometheus.CounterVec // reason label: exhausted|stagnated|upstream|interrupted
	Watermark         *prometheus.GaugeVec   // station label, epoch seconds
	FeedRows          *prometheus.GaugeVec   // table label

	MatchOffsetMetres prometheus.Histogram
	BatchDuration     prometheus.Histogram
}

// NewCollector creates and registers all metrics
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		TripsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hafas_gtfs_trips_written_total",
			Help: "Total trips upserted into the feed store.",
		}),
		BatchesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hafas_gtfs_batches_committed_total",
			Help: "Total fetch batches committed.",
		}),
		StopsUnresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hafas_gtfs_stops_unresolved_total",
			Help: "Stops that fell back to timetable names and coordinates.",
		}),
		StopsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hafas_gtfs_stops_matched_total",
			Help: "Stops matched to a station record.",
		}),
		ResolverCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hafas_gtfs_resolver_cache_hits_total",
			Help: "Stop resolutions answered from the coordinate cache.",
		}),
		StopoversSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hafas_gtfs_stopovers_skipped_total",
			Help: "Stopovers dropped because they carried no times.",
		}),
		UnknownCategories: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hafas_gtfs_unknown_route_categories_total",
			Help: "Train categories without a route type mapping.",
		}, []string{"category"}),
		SessionsStopped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hafas_gtfs_sessions_stopped_total",
			Help: "Fetch sessions by stop reason.",
		}, []string{"reason"}),
		Watermark: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hafas_gtfs_watermark_seconds",
			Help: "Latest persisted watermark per station query.",
		}, []string{"station"}),
		FeedRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hafas_gtfs_feed_rows",
			Help: "Rows per GTFS table in the feed store.",
		}, []string{"table"}),
		MatchOffsetMetres: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hafas_gtfs_match_offset_metres",
			Help:    "Distance between timetable stop coordinates and the matched station.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hafas_gtfs_batch_duration_seconds",
			Help:    "Duration of fetching, assembling and committing one batch.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}

	reg.MustRegister(
		c.TripsWritten, c.BatchesCommitted,
		c.StopsUnresolved, c.StopsMatched, c.ResolverCacheHits, c.StopoversSkipped,
		c.UnknownCategories, c.SessionsStopped, c.Watermark, c.FeedRows,
		c.MatchOffsetMetres, c.BatchDuration,
	)

	return c
}

// BatchCommitted records a committed batch
func (c *Collector) BatchCommitted(station string, watermark time.Time, trips int, took time.Duration) {
	c.BatchesCommitted.Inc()
	c.TripsWritten.Add(float64(trips))
	c.Watermark.WithLabelValues(station).Set(float64(watermark.Unix()))
	c.BatchDuration.Observe(took.Seconds())
}

// SessionStopped records why a fetch session ended
func (c *Collector) SessionStopped(station string, reason string) {
	c.SessionsStopped.WithLabelValues(reason).Inc()
}

// SetFeedRows publishes per-table row counts
func (c *Collector) SetFeedRows(counts map[string]int) {
	for table, n := range counts {
		c.FeedRows.WithLabelValues(table).Set(float64(n))
	}
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics: server error: %v", err)
		}
	}()
	log.Printf("Metrics: listening on %s", addr)
	return srv
}
