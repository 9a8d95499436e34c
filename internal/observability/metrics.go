// Package observability exposes pipeline counters over /metrics.
package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lumenwatch/internal/logging"
)

const namespace = "lumenwatch"

// Metrics holds the pipeline collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	listings         *prometheus.CounterVec
	regions          *prometheus.CounterVec
	warnings         *prometheus.CounterVec
	storageFailures  *prometheus.CounterVec
	versionConflicts prometheus.Counter
	listingDuration  *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		listings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_total",
			Help:      "Listings processed, by brand and outcome (ok, invalid, failed).",
		}, []string{"brand", "outcome"}),
		regions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "region_rows_total",
			Help:      "Per-region product rows, by brand and outcome (new, changed, unchanged, error).",
		}, []string{"brand", "outcome"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_warnings_total",
			Help:      "Validation warnings, by field.",
		}, []string{"field"}),
		storageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_failures_total",
			Help:      "Failed storage operations, by operation.",
		}, []string{"op"}),
		versionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "version_conflicts_total",
			Help:      "Version inserts retried after a number collision.",
		}),
		listingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "listing_duration_seconds",
			Help:      "Time to take one listing through the pipeline.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"brand"}),
	}

	m.Registry.MustRegister(
		m.listings,
		m.regions,
		m.warnings,
		m.storageFailures,
		m.versionConflicts,
		m.listingDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ListingProcessed(brand, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.listings.WithLabelValues(brand, outcome).Inc()
	m.listingDuration.WithLabelValues(brand).Observe(d.Seconds())
}

func (m *Metrics) RegionOutcome(brand, outcome string) {
	if m == nil {
		return
	}
	m.regions.WithLabelValues(brand, outcome).Inc()
}

func (m *Metrics) ValidationWarning(field string) {
	if m == nil {
		return
	}
	m.warnings.WithLabelValues(field).Inc()
}

func (m *Metrics) StorageFailure(op string) {
	if m == nil {
		return
	}
	m.storageFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) VersionConflict() {
	if m == nil {
		return
	}
	m.versionConflicts.Inc()
}

// Handler serves /metrics and /healthz.
func (m *Metrics) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{
		ErrorLog: slogErrorLog{},
	}))
	return r
}

// Start serves Handler on port until ctx is cancelled.
func (m *Metrics) Start(ctx context.Context, port string) *http.Server {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logging.FromContext(ctx).Info("metrics server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.FromContext(ctx).Error("metrics server stopped", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	return srv
}

// slogErrorLog adapts promhttp's error logger to slog.
type slogErrorLog struct{}

func (slogErrorLog) Println(v ...interface{}) {
	logging.FromContext(context.Background()).Error("metrics handler", "err", v)
}
