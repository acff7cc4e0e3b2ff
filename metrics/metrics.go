// Package metrics exposes per-run counters for the batch tools, served on
// /metrics in loop mode or pushed to a Prometheus pushgateway.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

type Metrics struct {
	registry *prometheus.Registry
	scrape   *prometheus.Registry
	tool     string

	RowsRead         prometheus.Counter
	ObservationsLong prometheus.Counter
	RowsDropped      prometheus.Counter
	ResultsGenerated prometheus.Counter
	ResultsStored    prometheus.Counter
	StoreFailures    prometheus.Counter
	ResultsPublished prometheus.Counter
	RunFailures      prometheus.Counter
	ModelScore       prometheus.Gauge
	LastSuccess      prometheus.Gauge
	RunDuration      prometheus.Histogram
}

// New registers the tool's metrics on a fresh registry. The pushed series
// carry no tool label since the pushgateway grouping key adds it; the
// scrape registry wraps the same collectors with it.
func New(tool string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		scrape:   prometheus.NewRegistry(),
		tool:     tool,
		RowsRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "aqi_rows_read_total",
			Help: "Total number of wide CSV rows read.",
		}),
		ObservationsLong: factory.NewCounter(prometheus.CounterOpts{
			Name: "aqi_observations_total",
			Help: "Total number of long observations kept after reshaping.",
		}),
		RowsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "aqi_rows_dropped_total",
			Help: "Total number of long rows dropped for missing values.",
		}),
		ResultsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "aqi_results_generated_total",
			Help: "Total number of forecast rows or aggregate points produced.",
		}),
		ResultsStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "aqi_results_stored_total",
			Help: "Total number of results stored in DB.",
		}),
		StoreFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "aqi_results_store_failed_total",
			Help: "Total number of results that failed to store.",
		}),
		ResultsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "aqi_runs_published_total",
			Help: "Total number of run summaries published.",
		}),
		RunFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "aqi_run_failures_total",
			Help: "Total number of failed runs.",
		}),
		ModelScore: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aqi_model_r2",
			Help: "R2 of the last fitted model on the held-out split.",
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aqi_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "aqi_run_duration_seconds",
			Help:    "Duration of a full tool run.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
	prometheus.WrapRegistererWith(prometheus.Labels{"tool": tool}, m.scrape).MustRegister(
		m.RowsRead, m.ObservationsLong, m.RowsDropped, m.ResultsGenerated,
		m.ResultsStored, m.StoreFailures, m.ResultsPublished, m.RunFailures,
		m.ModelScore, m.LastSuccess, m.RunDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the scrape registry, where every series is labelled with the tool.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.scrape, promhttp.HandlerOpts{})
}

// Push sends the current values to a pushgateway, grouped by tool.
func (m *Metrics) Push(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, "aqi_pipeline").
		Gatherer(m.registry).
		Grouping("tool", m.tool).
		PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// Serve exposes /metrics and /health on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("metrics server listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
