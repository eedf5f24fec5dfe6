package producer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"latencyharness/internal/latency"
)

// PayloadSize is the timestamp followed by a 16-byte message id.
const PayloadSize = latency.TimestampSize + 16

// Syncer is the subset of *kgo.Client the producer loop needs.
type Syncer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// NewClient creates a franz-go client tuned for low latency: leader acks, no
// linger, no compression.
func NewClient(brokers []string, clientID string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.RequiredAcks(kgo.LeaderAck()), // ack=1
		kgo.DisableIdempotentWrite(),      // required for ack=1
		kgo.ProducerLinger(0),
		kgo.ProducerBatchMaxBytes(4096),
		kgo.ProducerBatchCompression(kgo.NoCompression()),
		kgo.ConnIdleTimeout(30*time.Second),
		kgo.RequestTimeoutOverhead(1*time.Second),
		kgo.RetryBackoffFn(func(int) time.Duration {
			return 10 * time.Millisecond
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return client, nil
}

// Payload builds a message whose first 8 bytes carry sendTime in enc and whose
// remainder is the message id.
func Payload(enc latency.Encoding, sendTime time.Time, id uuid.UUID) []byte {
	msg := make([]byte, PayloadSize)
	enc.Put(msg, sendTime)
	copy(msg[latency.TimestampSize:], id[:])
	return msg
}

// Stats counts what a producer run did.
type Stats struct {
	Sent   int
	Failed int
}

// Loop publishes one timestamped message to topic every interval until ctx is
// cancelled. A zero interval sends back to back. Failed sends are logged and skipped.
func Loop(ctx context.Context, p Syncer, topic string, enc latency.Encoding, interval time.Duration, log *slog.Logger) Stats {
	var stats Stats
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return stats
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return stats
		}

		id := uuid.New()
		record := &kgo.Record{
			Topic: topic,
			Key:   []byte(id.String()),
			// timestamp captured immediately before the send
			Value: Payload(enc, time.Now(), id),
		}

		if err := p.ProduceSync(ctx, record).FirstErr(); err != nil {
			if ctx.Err() != nil {
				return stats
			}
			stats.Failed++
			log.Error("Oops... produce failed", "err", err)
		} else {
			stats.Sent++
			log.Debug("sent", "id", id, "partition", record.Partition, "offset", record.Offset)
		}

		timer.Reset(interval)
	}
}
