package source

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

// ProbeTimeout bounds the startup connectivity check.
const ProbeTimeout = 10 * time.Second

const (
	softwareName    = "latencyharness"
	softwareVersion = "1.0.0"
)

// ClusterInfo is what the startup probe learned about the cluster.
type ClusterInfo struct {
	APIKeys    int
	Brokers    []string
	TopicFound bool
	Partitions int
}

// Probe verifies the cluster is reachable before the harness starts consuming. A
// missing topic is not an error; the consumer picks it up once it exists.
func Probe(ctx context.Context, client *kgo.Client, topic string) (ClusterInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	var info ClusterInfo

	keys, err := checkAPIVersions(ctx, client)
	if err != nil {
		return info, err
	}
	info.APIKeys = keys

	admin := kadm.NewClient(client)
	brokers, err := admin.ListBrokers(ctx)
	if err != nil {
		return info, fmt.Errorf("failed to list brokers: %w", err)
	}
	for _, b := range brokers {
		info.Brokers = append(info.Brokers, fmt.Sprintf("%s:%d", b.Host, b.Port))
	}

	topics, err := admin.ListTopics(ctx, topic)
	if err != nil {
		return info, fmt.Errorf("failed to describe topic %s: %w", topic, err)
	}
	if detail, ok := topics[topic]; ok && detail.Err == nil {
		info.TopicFound = true
		info.Partitions = len(detail.Partitions)
	}

	return info, nil
}

// checkAPIVersions issues an ApiVersions request and returns the number of API keys
// the broker advertises.
func checkAPIVersions(ctx context.Context, r kmsg.Requestor) (int, error) {
	req := kmsg.NewPtrApiVersionsRequest()
	req.ClientSoftwareName = softwareName
	req.ClientSoftwareVersion = softwareVersion

	resp, err := req.RequestWith(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to kafka cluster: %w", err)
	}
	if err := kerr.ErrorForCode(resp.ErrorCode); err != nil {
		return 0, fmt.Errorf("api versions rejected: %w", err)
	}
	if len(resp.ApiKeys) == 0 {
		return 0, fmt.Errorf("broker advertised no api keys")
	}
	return len(resp.ApiKeys), nil
}
