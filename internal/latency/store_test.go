package latency

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSinceSummarizesWindow(t *testing.T) {
	t0 := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	t1, t2, t3 := t0.Add(time.Millisecond), t0.Add(2*time.Millisecond), t0.Add(3*time.Millisecond)

	store := NewMemStore(0)
	store.Append(Sample{ReceivedAt: t1, LatencyMillis: 10})
	store.Append(Sample{ReceivedAt: t2, LatencyMillis: 20})
	store.Append(Sample{ReceivedAt: t3, LatencyMillis: 30})

	batch, next := store.ReadSince(Watermark{At: t0})
	require.Len(t, batch, 3)
	assert.Equal(t, []float64{10, 20, 30}, latencies(batch))
	assert.True(t, next.At.Equal(t3))

	sum, ok := Summarize(batch)
	require.True(t, ok)
	assert.Equal(t, Summary{Count: 3, Max: 30, Min: 10, Average: 20}, sum)
}

func TestReadSinceTimestampWatermark(t *testing.T) {
	t0 := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	t1, t2, t3 := t0.Add(time.Millisecond), t0.Add(2*time.Millisecond), t0.Add(3*time.Millisecond)

	store := NewMemStore(0)
	store.Append(Sample{ReceivedAt: t1, LatencyMillis: 10})
	store.Append(Sample{ReceivedAt: t2, LatencyMillis: 20})
	store.Append(Sample{ReceivedAt: t3, LatencyMillis: 30})

	batch, next := store.ReadSince(Watermark{At: t2})
	require.Len(t, batch, 1)
	assert.Equal(t, 30.0, batch[0].LatencyMillis)
	assert.True(t, next.At.Equal(t3))

	batch, w := store.ReadSince(Watermark{At: t3})
	assert.Empty(t, batch)
	assert.True(t, w.At.Equal(t3))

	// the returned watermark continues from where the timestamp read stopped
	store.Append(Sample{ReceivedAt: t3.Add(time.Millisecond), LatencyMillis: 40})
	batch, _ = store.ReadSince(next)
	assert.Equal(t, []float64{40}, latencies(batch))
}

func TestReadSinceNoDoubleReport(t *testing.T) {
	store := NewMemStore(0)
	now := time.Now()
	store.Append(Sample{ReceivedAt: now, LatencyMillis: 1})
	store.Append(Sample{ReceivedAt: now.Add(time.Microsecond), LatencyMillis: 2})

	first, w := store.ReadSince(Watermark{})
	require.Len(t, first, 2)

	second, w2 := store.ReadSince(w)
	assert.Empty(t, second)
	assert.Equal(t, w, w2, "empty read must not move the watermark")

	store.Append(Sample{ReceivedAt: now.Add(time.Second), LatencyMillis: 3})
	third, w3 := store.ReadSince(w2)
	require.Len(t, third, 1)
	assert.Equal(t, 3.0, third[0].LatencyMillis)
	assert.True(t, w3.At.After(w2.At))
}

func TestReadSinceKeepsLateOutOfOrderSample(t *testing.T) {
	store := NewMemStore(0)
	base := time.Now()

	store.Append(Sample{ReceivedAt: base.Add(time.Second), LatencyMillis: 1})
	_, w := store.ReadSince(Watermark{})

	// a concurrent producer stamped its sample earlier but won the lock later
	store.Append(Sample{ReceivedAt: base, LatencyMillis: 2})
	batch, next := store.ReadSince(w)
	require.Len(t, batch, 1)
	assert.Equal(t, 2.0, batch[0].LatencyMillis)
	assert.True(t, next.At.Equal(w.At), "watermark time never moves backwards")
}

func TestConcurrentAppendLosesNothing(t *testing.T) {
	const writers, perWriter = 8, 500

	store := NewMemStore(0)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				store.Append(Sample{ReceivedAt: time.Now(), LatencyMillis: float64(j)})
			}
		}()
	}

	// read concurrently with the writers; batches must partition the samples
	var reported int
	w := Watermark{}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for finished := false; !finished; {
		select {
		case <-done:
			finished = true
		default:
		}
		batch, next := store.ReadSince(w)
		reported += len(batch)
		w = next
	}

	assert.Equal(t, writers*perWriter, reported)
	assert.Equal(t, writers*perWriter, store.Len())
}

func TestMemStoreBound(t *testing.T) {
	store := NewMemStore(3)
	now := time.Now()
	for i := 1; i <= 10; i++ {
		store.Append(Sample{ReceivedAt: now.Add(time.Duration(i)), LatencyMillis: float64(i)})
	}

	assert.Equal(t, 3, store.Len())
	assert.Equal(t, uint64(7), store.Evicted())

	batch, w := store.ReadSince(Watermark{})
	require.Len(t, batch, 3)
	assert.Equal(t, []float64{8, 9, 10}, latencies(batch))

	store.Append(Sample{ReceivedAt: now.Add(11), LatencyMillis: 11})
	batch, _ = store.ReadSince(w)
	assert.Equal(t, []float64{11}, latencies(batch))
}

func TestSummarizeEmpty(t *testing.T) {
	sum, ok := Summarize(nil)
	assert.False(t, ok)
	assert.Zero(t, sum)
}

func latencies(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.LatencyMillis
	}
	return out
}
