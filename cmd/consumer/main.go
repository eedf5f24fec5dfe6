package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"latencyharness/internal/config"
	"latencyharness/internal/harness"
	"latencyharness/internal/logging"
	"latencyharness/internal/source"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Parse(config.Consumer, os.Args[1:], os.Stdout, os.Stderr)
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

	clientID := fmt.Sprintf("latency-consumer-%s", uuid.New().String()[:8])
	client, err := source.NewKafkaClient(source.KafkaConfig{
		Brokers:   cfg.Brokers,
		Topic:     cfg.Topic,
		ClientID:  clientID,
		FromStart: cfg.FromStart,
	})
	if err != nil {
		log.Error("Oops... startup failed", "err", err)
		return 1
	}
	src := source.NewKafka(client)
	defer src.Close()

	info, err := source.Probe(ctx, client, cfg.Topic)
	if err != nil {
		log.Error("Oops... cannot reach brokers", "brokers", cfg.Brokers, "err", err)
		return 1
	}
	log.Info("connected", "client_id", clientID, "brokers", info.Brokers, "api_keys", info.APIKeys, "encoding", cfg.Encoding)
	if info.TopicFound {
		log.Info("topic ready", "topic", cfg.Topic, "partitions", info.Partitions)
	} else {
		log.Warn("topic does not exist yet, waiting for it", "topic", cfg.Topic)
	}

	var reg *prometheus.Registry
	if cfg.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	err = harness.Run(ctx, cfg, harness.Deps{
		Source:   src,
		Out:      os.Stdout,
		Log:      log,
		Registry: reg,
	})
	if err != nil {
		log.Error("Oops... consumer stopped", "err", err)
		return 1
	}

	log.Info("shutdown complete")
	return 0
}
