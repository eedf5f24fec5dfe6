package latency

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultReportInterval is the period between report ticks.
const DefaultReportInterval = 1000 * time.Millisecond

// State is the reporter's position in its tick cycle.
type State int32

const (
	// Idle is the state between ticks.
	Idle State = iota
	// Reporting is held while a tick reads the store and writes its summary.
	Reporting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Reporting:
		return "reporting"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Reporter periodically prints a summary of the samples received since its last report.
type Reporter struct {
	store    Store
	out      io.Writer
	log      *slog.Logger
	observer Observer
	interval time.Duration

	// watermark is only touched by Tick, which must not run concurrently with itself
	watermark Watermark
	state     atomic.Int32
}

// NewReporter creates a reporter writing summary lines to out. interval <= 0 selects
// DefaultReportInterval; a nil observer is replaced by a no-op.
func NewReporter(store Store, out io.Writer, interval time.Duration, log *slog.Logger, observer Observer) *Reporter {
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Reporter{
		store:    store,
		out:      out,
		log:      log,
		observer: observer,
		interval: interval,
	}
}

// Run ticks until ctx is cancelled. Sleeping between ticks holds no lock.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick()
		}
	}
}

// Tick reports every sample appended since the previous successful report. An empty
// batch prints nothing. Failures are logged and the batch is retried next tick.
func (r *Reporter) Tick() {
	r.state.Store(int32(Reporting))
	defer r.state.Store(int32(Idle))

	if err := r.report(); err != nil {
		r.log.Error("Oops... report failed", "err", err)
		r.observer.ReportFailed(err)
	}
}

func (r *Reporter) report() (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("report panic: %v", p)
		}
	}()

	batch, next := r.store.ReadSince(r.watermark)
	sum, ok := Summarize(batch)
	if !ok {
		return nil
	}

	if _, err := fmt.Fprintln(r.out, sum.String()); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	r.watermark = next
	r.observer.BatchReported(sum)
	return nil
}

// State returns whether a tick is currently in progress.
func (r *Reporter) State() State {
	return State(r.state.Load())
}

// Watermark returns the current reporting watermark. Not safe to call concurrently with Run.
func (r *Reporter) Watermark() Watermark {
	return r.watermark
}
