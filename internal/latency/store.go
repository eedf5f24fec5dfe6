package latency

import (
	"sort"
	"sync"
)

// Store is the shared collection of samples written by the Sampler and read by the Reporter.
type Store interface {
	// Append adds a sample. Safe for concurrent callers.
	Append(s Sample)
	// ReadSince returns every sample appended after w together with the advanced
	// watermark, atomically with respect to Append. An empty batch returns w unchanged.
	ReadSince(w Watermark) ([]Sample, Watermark)
	// Len is the number of retained samples.
	Len() int
}

type entry struct {
	seq    uint64
	sample Sample
}

// MemStore is an in-memory Store guarded by a single mutex. Samples are retained
// indefinitely unless a maximum is set.
type MemStore struct {
	mu      sync.Mutex
	entries []entry
	head    int // entries[:head] are evicted
	lastSeq uint64
	max     int
	evicted uint64
}

// NewMemStore creates a store. maxSamples <= 0 keeps every sample.
func NewMemStore(maxSamples int) *MemStore {
	return &MemStore{max: maxSamples}
}

func (m *MemStore) Append(s Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Sequence numbers are assigned under the lock, so insertion order is the
	// reporting order even when receive timestamps interleave across producers.
	m.lastSeq++
	m.entries = append(m.entries, entry{seq: m.lastSeq, sample: s})

	if m.max > 0 && len(m.entries)-m.head > m.max {
		m.head++
		m.evicted++
		// compact once the evicted prefix dominates the backing array
		if m.head >= m.max {
			m.entries = append(m.entries[:0], m.entries[m.head:]...)
			m.head = 0
		}
	}
}

func (m *MemStore) ReadSince(w Watermark) ([]Sample, Watermark) {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.entries[m.head:]
	if len(live) == 0 {
		return nil, w
	}

	var out []Sample
	if w.seq == 0 && !w.At.IsZero() {
		// a watermark built from a receive time alone selects by that time
		for _, e := range live {
			if e.sample.ReceivedAt.After(w.At) {
				out = append(out, e.sample)
			}
		}
	} else {
		start := sort.Search(len(live), func(i int) bool {
			return live[i].seq > w.seq
		})
		for _, e := range live[start:] {
			out = append(out, e.sample)
		}
	}
	if len(out) == 0 {
		return nil, w
	}

	next := Watermark{At: w.At, seq: live[len(live)-1].seq}
	for _, s := range out {
		if s.ReceivedAt.After(next.At) {
			next.At = s.ReceivedAt
		}
	}
	return out, next
}

func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries) - m.head
}

// Evicted is the number of samples dropped to honour the size bound.
func (m *MemStore) Evicted() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evicted
}

var _ Store = (*MemStore)(nil)
