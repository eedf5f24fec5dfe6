package source

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrEndOfStream is returned by Next once a source has no more messages.
var ErrEndOfStream = errors.New("end of stream")

// Message is one record delivered by a broker.
type Message struct {
	Value     []byte
	Topic     string
	Partition int32
	Offset    int64
	Timestamp time.Time
}

// Source yields consumed messages one at a time.
type Source interface {
	// Next blocks until a message is available, the stream ends (ErrEndOfStream),
	// or ctx is done. Other errors are transient transport failures.
	Next(ctx context.Context) (Message, error)
	Close()
}

// errorBackoff paces the loop when a source keeps failing without blocking.
const errorBackoff = 100 * time.Millisecond

// Consume pumps messages from src into handle until the stream ends or ctx is
// cancelled. Transport errors are logged and consumption continues. An in-flight
// handle call is never interrupted.
func Consume(ctx context.Context, src Source, handle func(payload []byte), log *slog.Logger) error {
	var received int
	for {
		msg, err := src.Next(ctx)
		switch {
		case err == nil:
			handle(msg.Value)
			received++
		case errors.Is(err, ErrEndOfStream):
			log.Info("message stream ended", "received", received)
			return nil
		case ctx.Err() != nil:
			log.Debug("consumer stopping", "received", received)
			return ctx.Err()
		default:
			log.Error("Oops... fetch failed", "err", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(errorBackoff):
			}
		}
	}
}

// Slice is an in-memory Source over fixed payloads.
type Slice struct {
	msgs []Message
	pos  int
}

// NewSlice creates a Source that yields each payload once, then ErrEndOfStream.
func NewSlice(payloads ...[]byte) *Slice {
	msgs := make([]Message, len(payloads))
	for i, p := range payloads {
		msgs[i] = Message{Value: p, Offset: int64(i)}
	}
	return &Slice{msgs: msgs}
}

func (s *Slice) Next(ctx context.Context) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	if s.pos >= len(s.msgs) {
		return Message{}, ErrEndOfStream
	}
	msg := s.msgs[s.pos]
	s.pos++
	return msg, nil
}

func (s *Slice) Close() {
	s.pos = len(s.msgs)
}

var _ Source = (*Slice)(nil)
