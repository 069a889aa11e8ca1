package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rieriver/sextsieve/internal/config"
	"github.com/rieriver/sextsieve/internal/sieve"
)

// MetricsExporter serves a scoped Prometheus registry over HTTP, populated
// from a sieve.Snapshot each time the caller passes one to Observe rather
// than pushed incrementally — the controller's Stats is already the single
// source of truth, so the exporter just mirrors it.
type MetricsExporter struct {
	logger *zap.Logger
	config config.MetricsConfig
	server *http.Server

	registry *prometheus.Registry
	healthy  atomic.Bool

	difficulty         prometheus.Gauge
	foundTuples        *prometheus.GaugeVec
	sharesSubmitted    prometheus.Gauge
	candidatesScanned  prometheus.Gauge
	blocksProcessed    prometheus.Gauge
	currentHeight      prometheus.Gauge
	iterationDurations *prometheus.HistogramVec
}

// NewMetricsExporter builds an exporter with its own registry — it never
// touches prometheus.DefaultRegisterer, so multiple Miners in one process
// (tests, or a future multi-table runner) never collide on metric names.
func NewMetricsExporter(logger *zap.Logger, cfg config.MetricsConfig) *MetricsExporter {
	registry := prometheus.NewRegistry()

	const ns = "sextsieve"

	me := &MetricsExporter{
		logger:   logger,
		config:   cfg,
		registry: registry,
		difficulty: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "difficulty",
			Help:      "Bit length of the current block target.",
		}),
		foundTuples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "found_tuples_total",
			Help:      "Count of Fermat-probable tuples found, by tuple length k.",
		}, []string{"k"}),
		sharesSubmitted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "shares_submitted_total",
			Help:      "Total candidates submitted to the pool/solo RPC target.",
		}),
		candidatesScanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "candidates_scanned_total",
			Help:      "Total bitmap zero-bits Fermat-tested across all blocks.",
		}),
		blocksProcessed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "blocks_processed_total",
			Help:      "Total blocks whose search loop ran to completion or preemption.",
		}),
		currentHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "current_height",
			Help:      "Height of the block currently (or most recently) being searched.",
		}),
		iterationDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "iteration_duration_seconds",
			Help:      "Wall-clock duration of one dispatch-and-wait phase per sieve iteration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
	}

	registry.MustRegister(
		me.difficulty,
		me.foundTuples,
		me.sharesSubmitted,
		me.candidatesScanned,
		me.blocksProcessed,
		me.currentHeight,
		me.iterationDurations,
	)
	me.healthy.Store(true)

	return me
}

// ObservePhase implements sieve.PhaseRecorder, feeding the iteration phase
// histogram directly from the controller without the controller ever
// importing Prometheus itself.
func (me *MetricsExporter) ObservePhase(phase string, d time.Duration) {
	me.iterationDurations.WithLabelValues(phase).Observe(d.Seconds())
}

// Observe copies snap's counters into the registered metrics. Called on a
// timer by the caller (see cmd/sextsieve), not by the controller itself —
// the controller has no business knowing Prometheus exists.
func (me *MetricsExporter) Observe(snap sieve.Snapshot) {
	me.difficulty.Set(float64(snap.Difficulty))
	for k, count := range snap.FoundTuples {
		me.foundTuples.WithLabelValues(fmt.Sprintf("%d", k)).Set(float64(count))
	}
	me.sharesSubmitted.Set(float64(snap.SharesSubmitted))
	me.candidatesScanned.Set(float64(snap.CandidatesScanned))
	me.blocksProcessed.Set(float64(snap.BlocksProcessed))
	me.currentHeight.Set(float64(snap.CurrentHeight))
	me.healthy.Store(snap.Healthy)
}

// Start runs the /metrics and /healthz HTTP server until ctx is canceled.
// A no-op if metrics are disabled in config.
func (me *MetricsExporter) Start(ctx context.Context) error {
	if !me.config.Enabled {
		me.logger.Info("metrics exporter disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(me.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !me.healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("stuck"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	me.server = &http.Server{
		Addr:    me.config.ListenAddr,
		Handler: mux,
	}

	go func() {
		me.logger.Info("starting metrics exporter", zap.String("address", me.config.ListenAddr))
		if err := me.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			me.logger.Error("metrics server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	return me.Stop()
}

// Stop gracefully shuts the HTTP server down.
func (me *MetricsExporter) Stop() error {
	if me.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := me.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown metrics server: %w", err)
	}
	me.logger.Info("metrics exporter stopped")
	return nil
}
