package harness

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"latencyharness/internal/config"
	"latencyharness/internal/latency"
	"latencyharness/internal/metrics"
	"latencyharness/internal/source"
)

// Deps are the collaborators the harness does not construct itself.
type Deps struct {
	Source source.Source
	Out    io.Writer // summary lines
	Log    *slog.Logger

	// Registry enables metrics when non-nil; it is served on cfg.MetricsAddr if set.
	Registry *prometheus.Registry
}

// Run wires one store between the sampler and the reporter and runs the consumption
// loop and the reporting loop until the stream ends or ctx is cancelled. Samples
// still pending at that point are reported before Run returns.
func Run(ctx context.Context, cfg config.Config, deps Deps) error {
	store := latency.NewMemStore(cfg.MaxSamples)

	var observer latency.Observer
	if deps.Registry != nil {
		m, err := metrics.New(deps.Registry, store.Len)
		if err != nil {
			return err
		}
		observer = m
	}

	sampler := latency.NewSampler(store, cfg.Encoding, deps.Log, observer)
	reporter := latency.NewReporter(store, deps.Out, cfg.ReportInterval, deps.Log, observer)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reporter.Run(runCtx)
	}()

	if deps.Registry != nil && cfg.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(runCtx, cfg.MetricsAddr, deps.Registry, deps.Log); err != nil {
				deps.Log.Error("Oops... metrics unavailable", "err", err)
			}
		}()
	}

	deps.Log.Info("listening for messages", "topic", cfg.Topic, "interval", cfg.ReportInterval)
	err := source.Consume(runCtx, deps.Source, sampler.OnMessage, deps.Log)

	stop()
	wg.Wait()
	reporter.Tick()

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}
