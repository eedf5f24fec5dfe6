package latency

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) SampleRecorded(s Sample)   { m.Called(s) }
func (m *mockObserver) DecodeFailed(err error)    { m.Called(err) }
func (m *mockObserver) BatchReported(sum Summary) { m.Called(sum) }
func (m *mockObserver) ReportFailed(err error)    { m.Called(err) }

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func logLines(buf *bytes.Buffer) []string {
	s := strings.TrimSpace(buf.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestSamplerComputesLatency(t *testing.T) {
	sent := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	received := sent.Add(42*time.Millisecond + 500*time.Microsecond)

	store := NewMemStore(0)
	log, buf := bufferLogger()
	s := NewSampler(store, EncodingUnixNano, log, nil)
	s.Now = func() time.Time { return received }

	s.OnMessage(EncodingUnixNano.Encode(sent))

	batch, _ := store.ReadSince(Watermark{})
	require.Len(t, batch, 1)
	assert.True(t, batch[0].ReceivedAt.Equal(received))
	assert.InDelta(t, 42.5, batch[0].LatencyMillis, 1e-9)
	assert.Empty(t, logLines(buf))
}

func TestSamplerTicksEncoding(t *testing.T) {
	sent := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	store := NewMemStore(0)
	log, _ := bufferLogger()
	s := NewSampler(store, EncodingTicks, log, nil)
	s.Now = func() time.Time { return sent.Add(3 * time.Millisecond) }

	// payloads may carry padding after the timestamp; only the first 8 bytes matter
	payload := append(EncodingTicks.Encode(sent), make([]byte, 24)...)
	s.OnMessage(payload)

	batch, _ := store.ReadSince(Watermark{})
	require.Len(t, batch, 1)
	assert.InDelta(t, 3.0, batch[0].LatencyMillis, 1e-9)
}

func TestSamplerDropsShortPayload(t *testing.T) {
	store := NewMemStore(0)
	log, buf := bufferLogger()
	obs := new(mockObserver)
	obs.On("DecodeFailed", mock.MatchedBy(func(err error) bool {
		return errors.Is(err, ErrShortPayload)
	})).Once()

	s := NewSampler(store, EncodingUnixNano, log, obs)
	require.NotPanics(t, func() { s.OnMessage([]byte{1, 2, 3, 4}) })

	assert.Zero(t, store.Len())
	lines := logLines(buf)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Oops...")
	assert.Contains(t, lines[0], "bytes=4")
	obs.AssertExpectations(t)
}

func TestSamplerContinuesAfterMalformedMessage(t *testing.T) {
	store := NewMemStore(0)
	log, buf := bufferLogger()
	obs := new(mockObserver)
	obs.On("DecodeFailed", mock.Anything).Once()
	obs.On("SampleRecorded", mock.Anything).Twice()

	s := NewSampler(store, EncodingUnixNano, log, obs)
	now := time.Now()
	s.OnMessage(EncodingUnixNano.Encode(now))
	s.OnMessage(nil)
	s.OnMessage(EncodingUnixNano.Encode(now))

	assert.Equal(t, 2, store.Len())
	assert.Len(t, logLines(buf), 1)
	obs.AssertExpectations(t)
}
