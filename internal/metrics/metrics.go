package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"latencyharness/internal/latency"
)

const namespace = "harness"

// Metrics exports the latency pipeline to Prometheus. It implements latency.Observer.
type Metrics struct {
	samples      prometheus.Counter
	decodeErrors prometheus.Counter
	reports      prometheus.Counter
	reportErrors prometheus.Counter
	latency      prometheus.Histogram
	lastBatch    prometheus.Gauge
}

// New registers the harness collectors on reg. storeLen, when non-nil, backs a gauge
// of the number of retained samples.
func New(reg prometheus.Registerer, storeLen func() int) (*Metrics, error) {
	m := &Metrics{
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Messages decoded into latency samples.",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Messages dropped because their timestamp could not be decoded.",
		}),
		reports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Summary lines printed.",
		}),
		reportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_errors_total",
			Help:      "Report ticks that failed and were retried.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "latency_milliseconds",
			Help:      "End-to-end message latency.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000},
		}),
		lastBatch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_batch_size",
			Help:      "Sample count of the most recent report.",
		}),
	}

	collectors := []prometheus.Collector{m.samples, m.decodeErrors, m.reports, m.reportErrors, m.latency, m.lastBatch}
	if storeLen != nil {
		collectors = append(collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_samples",
			Help:      "Samples currently retained in memory.",
		}, func() float64 { return float64(storeLen()) }))
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) SampleRecorded(s latency.Sample) {
	m.samples.Inc()
	m.latency.Observe(s.LatencyMillis)
}

func (m *Metrics) DecodeFailed(error) {
	m.decodeErrors.Inc()
}

func (m *Metrics) BatchReported(sum latency.Summary) {
	m.reports.Inc()
	m.lastBatch.Set(float64(sum.Count))
}

func (m *Metrics) ReportFailed(error) {
	m.reportErrors.Inc()
}

var _ latency.Observer = (*Metrics)(nil)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("starting metrics server", "address", addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
