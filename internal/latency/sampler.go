package latency

import (
	"fmt"
	"log/slog"
	"time"
)

// Sampler turns consumed payloads into latency samples.
type Sampler struct {
	store    Store
	encoding Encoding
	log      *slog.Logger
	observer Observer

	// Now is the receive clock. Defaults to time.Now.
	Now func() time.Time
}

// NewSampler creates a sampler appending to store. A nil observer is replaced by a no-op.
func NewSampler(store Store, encoding Encoding, log *slog.Logger, observer Observer) *Sampler {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Sampler{
		store:    store,
		encoding: encoding,
		log:      log,
		observer: observer,
		Now:      time.Now,
	}
}

// OnMessage decodes the send time embedded in payload and records its latency. Malformed
// payloads are logged and dropped; nothing escapes this call.
func (s *Sampler) OnMessage(payload []byte) {
	sample, err := s.measure(payload)
	if err != nil {
		s.log.Error("Oops... dropping message", "bytes", len(payload), "err", err)
		s.observer.DecodeFailed(err)
		return
	}

	s.store.Append(sample)
	s.observer.SampleRecorded(sample)
}

func (s *Sampler) measure(payload []byte) (sample Sample, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode panic: %v", r)
		}
	}()

	sent, err := s.encoding.Decode(payload)
	if err != nil {
		return Sample{}, err
	}
	// receive time is taken after decoding so only one clock read lands in the sample
	now := s.Now()

	return Sample{
		ReceivedAt:    now,
		LatencyMillis: float64(now.Sub(sent).Nanoseconds()) / 1e6,
	}, nil
}
