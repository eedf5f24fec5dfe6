package latency

import (
	"fmt"
	"time"
)

// Sample is a single latency measurement taken when a message was decoded.
type Sample struct {
	ReceivedAt    time.Time // when the payload was decoded
	LatencyMillis float64   // receive time minus embedded send time
}

// Watermark separates already reported samples from pending ones. The zero value
// precedes every sample. A watermark built from At alone selects samples received
// strictly after At; one returned by ReadSince also carries the store's insertion
// cursor, so samples appended late with an earlier receive time are still reported.
type Watermark struct {
	// At is the receive time of the newest sample reported so far.
	At time.Time

	seq uint64
}

// Summary aggregates one reporting batch.
type Summary struct {
	Count   int
	Max     float64
	Min     float64
	Average float64
}

// Summarize computes count, max, min and average latency over samples. It reports false
// for an empty batch.
func Summarize(samples []Sample) (Summary, bool) {
	if len(samples) == 0 {
		return Summary{}, false
	}

	sum := Summary{
		Count: len(samples),
		Max:   samples[0].LatencyMillis,
		Min:   samples[0].LatencyMillis,
	}
	var total float64
	for _, s := range samples {
		if s.LatencyMillis > sum.Max {
			sum.Max = s.LatencyMillis
		}
		if s.LatencyMillis < sum.Min {
			sum.Min = s.LatencyMillis
		}
		total += s.LatencyMillis
	}
	sum.Average = total / float64(len(samples))

	return sum, true
}

// String renders the summary as a report line (without trailing newline).
func (s Summary) String() string {
	return fmt.Sprintf("Count: %dmsgs\tMax: %.3fms\tMin: %.3f\tAve: %.3f", s.Count, s.Max, s.Min, s.Average)
}
