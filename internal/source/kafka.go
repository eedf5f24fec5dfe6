package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaConfig describes a group-less consumer of a single topic.
type KafkaConfig struct {
	Brokers   []string
	Topic     string
	ClientID  string
	FromStart bool // consume from the oldest offset instead of only new records
}

// NewKafkaClient creates a franz-go client tuned for latency measurement: no
// fetch batching delay and small fetches.
func NewKafkaClient(cfg KafkaConfig) (*kgo.Client, error) {
	offset := kgo.NewOffset().AtEnd()
	if cfg.FromStart {
		offset = kgo.NewOffset().AtStart()
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(offset),

		kgo.FetchMinBytes(1),                    // don't wait for data to accumulate
		kgo.FetchMaxWait(10 * time.Millisecond), // minimum allowed max wait
		kgo.FetchMaxBytes(1024 * 1024),

		kgo.ConnIdleTimeout(20 * time.Second),
		kgo.RequestTimeoutOverhead(1 * time.Second),
		kgo.RetryBackoffFn(func(tries int) time.Duration {
			return time.Duration(tries) * 10 * time.Millisecond
		}),
		kgo.MetadataMaxAge(30 * time.Second),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return client, nil
}

// Poller is the subset of *kgo.Client used by Kafka.
type Poller interface {
	PollFetches(ctx context.Context) kgo.Fetches
	Close()
}

// FetchError is a per-partition fetch failure.
type FetchError struct {
	Topic     string
	Partition int32
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s[%d]: %v", e.Topic, e.Partition, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Kafka adapts a polling franz-go client to the one-message-at-a-time Source contract.
type Kafka struct {
	client  Poller
	pending []*kgo.Record
}

// NewKafka wraps client. Close closes the client.
func NewKafka(client Poller) *Kafka {
	return &Kafka{client: client}
}

func (k *Kafka) Next(ctx context.Context) (Message, error) {
	for len(k.pending) == 0 {
		fetches := k.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return Message{}, ErrEndOfStream
		}

		var errs []error
		fetches.EachError(func(topic string, partition int32, err error) {
			errs = append(errs, &FetchError{Topic: topic, Partition: partition, Err: err})
		})
		fetches.EachRecord(func(r *kgo.Record) {
			k.pending = append(k.pending, r)
		})

		// records fetched alongside errors stay buffered for the next call
		if len(errs) > 0 {
			return Message{}, errors.Join(errs...)
		}
	}

	r := k.pending[0]
	k.pending[0] = nil
	k.pending = k.pending[1:]

	return Message{
		Value:     r.Value,
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Timestamp: r.Timestamp,
	}, nil
}

func (k *Kafka) Close() {
	k.client.Close()
}

var _ Source = (*Kafka)(nil)
