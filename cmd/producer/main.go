package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"latencyharness/internal/config"
	"latencyharness/internal/logging"
	"latencyharness/internal/producer"
	"latencyharness/internal/source"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Parse(config.Producer, os.Args[1:], os.Stdout, os.Stderr)
	if errors.Is(err, config.ErrHelp) {
		return 0
	}
	log := logging.New(os.Stderr, cfg.Verbose)
	if err != nil {
		log.Error("Oops... invalid arguments", "err", err)
		fmt.Fprintln(os.Stderr, "You need to give me a valid URI for a Kafka node, e.g. http://192.168.59.103:9092. Try \"help\".")
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	clientID := fmt.Sprintf("latency-producer-%s", uuid.New().String()[:8])
	client, err := producer.NewClient(cfg.Brokers, clientID)
	if err != nil {
		log.Error("Oops... startup failed", "err", err)
		return 1
	}
	defer client.Close()

	info, err := source.Probe(ctx, client, cfg.Topic)
	if err != nil {
		log.Error("Oops... cannot reach brokers", "brokers", cfg.Brokers, "err", err)
		return 1
	}
	log.Info("connected", "client_id", clientID, "brokers", info.Brokers, "topic_found", info.TopicFound)
	log.Info("publishing", "topic", cfg.Topic, "interval", cfg.SendInterval, "encoding", cfg.Encoding)

	start := time.Now()
	stats := producer.Loop(ctx, client, cfg.Topic, cfg.Encoding, cfg.SendInterval, log)

	elapsed := time.Since(start)
	log.Info("producer finished", "sent", stats.Sent, "failed", stats.Failed,
		"elapsed", elapsed.Round(time.Millisecond),
		"rate", fmt.Sprintf("%.2f msg/s", float64(stats.Sent)/elapsed.Seconds()))
	return 0
}
