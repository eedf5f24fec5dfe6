package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"latencyharness/internal/latency"
)

const (
	// DefaultTopic is the topic both commands use unless -topic is given.
	DefaultTopic = "TestHarness"
	// DefaultBrokerPort completes broker URIs that omit a port.
	DefaultBrokerPort = "9092"
)

// ErrHelp is returned when usage was requested explicitly or no broker was given.
var ErrHelp = errors.New("usage requested")

// Config is the resolved command line of either harness command.
type Config struct {
	Brokers        []string // host:port seeds
	Topic          string
	Encoding       latency.Encoding
	ReportInterval time.Duration
	FromStart      bool
	MetricsAddr    string
	MaxSamples     int
	Verbose        bool

	// SendInterval is the producer's pause between messages; zero sends back to back.
	SendInterval time.Duration
}

// Command identifies which binary is parsing its arguments.
type Command int

const (
	// Consumer measures and reports latency.
	Consumer Command = iota
	// Producer publishes timestamp messages and takes an optional send interval.
	Producer
)

func (c Command) name() string {
	if c == Producer {
		return "producer"
	}
	return "consumer"
}

// Parse resolves args (without the program name). Usage text is written to out when
// ErrHelp is returned. Flag errors and the usage that follows them go to errOut.
func Parse(cmd Command, args []string, out, errOut io.Writer) (Config, error) {
	cfg := Config{}
	var encoding string

	fs := flag.NewFlagSet(cmd.name(), flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&cfg.Topic, "topic", DefaultTopic, "Topic carrying timestamp messages")
	fs.StringVar(&encoding, "encoding", string(latency.EncodingUnixNano), "Timestamp wire encoding: unixnano, ticks (UTC) or ticks-local")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Verbose logging")
	if cmd == Consumer {
		fs.DurationVar(&cfg.ReportInterval, "interval", latency.DefaultReportInterval, "Period between summary lines")
		fs.BoolVar(&cfg.FromStart, "from-start", false, "Consume from the oldest offset instead of new messages only")
		fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :8080 (disabled when empty)")
		fs.IntVar(&cfg.MaxSamples, "max-samples", 0, "Retain at most this many samples in memory (0 = unbounded)")
	}
	// usage is printed below once the destination is known
	fs.Usage = func() {}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			writeUsage(cmd, fs, out)
			return cfg, ErrHelp
		}
		writeUsage(cmd, fs, errOut)
		return cfg, err
	}

	rest := fs.Args()
	if len(rest) == 0 || (len(rest) == 1 && rest[0] == "help") {
		writeUsage(cmd, fs, out)
		return cfg, ErrHelp
	}

	brokers, err := ParseBrokerURIs(rest[0])
	if err != nil {
		return cfg, err
	}
	cfg.Brokers = brokers

	if cmd == Producer && len(rest) > 1 {
		ms, err := strconv.Atoi(rest[1])
		if err != nil || ms < 0 {
			return cfg, fmt.Errorf("invalid send interval %q: want a non-negative number of milliseconds", rest[1])
		}
		cfg.SendInterval = time.Duration(ms) * time.Millisecond
	}

	if cfg.Encoding, err = latency.ParseEncoding(encoding); err != nil {
		return cfg, err
	}
	if cmd == Consumer && cfg.ReportInterval <= 0 {
		return cfg, fmt.Errorf("report interval must be positive, got %v", cfg.ReportInterval)
	}
	if cfg.MaxSamples < 0 {
		return cfg, fmt.Errorf("max samples must not be negative, got %d", cfg.MaxSamples)
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return cfg, errors.New("topic must not be empty")
	}

	return cfg, nil
}

// ParseBrokerURIs converts a comma-separated list of broker URIs such as
// http://10.0.0.5:9092 into host:port seeds. A missing port defaults to 9092.
func ParseBrokerURIs(list string) ([]string, error) {
	var brokers []string
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid broker URI %q: %w", raw, err)
		}
		if u.Scheme == "" || u.Hostname() == "" {
			return nil, fmt.Errorf("invalid broker URI %q: want scheme://host[:port], e.g. http://192.168.59.103:9092", raw)
		}

		port := u.Port()
		if port == "" {
			port = DefaultBrokerPort
		}
		if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
			return nil, fmt.Errorf("invalid broker URI %q: bad port %q", raw, port)
		}
		brokers = append(brokers, net.JoinHostPort(u.Hostname(), port))
	}

	if len(brokers) == 0 {
		return nil, errors.New("no valid broker addresses found")
	}
	return brokers, nil
}

func writeUsage(cmd Command, fs *flag.FlagSet, out io.Writer) {
	prev := fs.Output()
	fs.SetOutput(out)
	defer fs.SetOutput(prev)

	switch cmd {
	case Producer:
		fmt.Fprintln(out, "Publishes timestamp messages for the latency consumer.")
		fmt.Fprintln(out, "Usage: producer [flags] <broker-uri> [interval-ms]")
		fmt.Fprintln(out, "\tE.g. \"producer http://192.168.59.103:9092 100\" publishes one message every 100ms.")
		fmt.Fprintln(out, "\tWithout an interval messages are sent back to back.")
	default:
		fmt.Fprintln(out, "Consumes timestamp messages and prints transit latency once per interval.")
		fmt.Fprintln(out, "Usage: consumer [flags] <broker-uri>")
		fmt.Fprintln(out, "\tE.g. \"consumer http://192.168.59.103:9092\" listens on the TestHarness topic.")
		fmt.Fprintln(out, "\tSeveral brokers may be given as a comma-separated list.")
	}
	fmt.Fprintln(out, "Flags:")
	fs.PrintDefaults()
}
