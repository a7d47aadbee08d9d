// Package producer writes issuance events to Kafka with franz-go.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

var ErrClosed = errors.New("kafka producer is closed")

type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

type Config struct {
	// Brokers is a comma separated seed list.
	Brokers string
	// Acks is "0", "1" or "all". Anything else means "all".
	Acks            string
	Retries         int
	DeliveryTimeout time.Duration
	CloseTimeout    time.Duration
}

func DefaultConfig(brokers string) Config {
	return Config{
		Brokers:         brokers,
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 30 * time.Second,
		CloseTimeout:    5 * time.Second,
	}
}

type Producer struct {
	client       *kgo.Client
	logger       *slog.Logger
	closeTimeout time.Duration
	closed       atomic.Bool
}

func New(cfg Config, logger *slog.Logger) (*Producer, error) {
	seeds := splitBrokers(cfg.Brokers)
	if len(seeds) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(seeds...),
		kgo.RecordRetries(cfg.Retries),
		kgo.ProducerLinger(5 * time.Millisecond),
		kgo.AllowAutoTopicCreation(),
	}
	switch cfg.Acks {
	case "0":
		opts = append(opts, kgo.RequiredAcks(kgo.NoAck()), kgo.DisableIdempotentWrite())
	case "1":
		opts = append(opts, kgo.RequiredAcks(kgo.LeaderAck()), kgo.DisableIdempotentWrite())
	default:
		opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	}
	if cfg.DeliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(cfg.DeliveryTimeout))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	closeTimeout := cfg.CloseTimeout
	if closeTimeout <= 0 {
		closeTimeout = 5 * time.Second
	}
	return &Producer{client: client, logger: logger, closeTimeout: closeTimeout}, nil
}

func splitBrokers(raw string) []string {
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Produce blocks until the brokers acknowledge msg.
func (p *Producer) Produce(ctx context.Context, msg *Message) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := p.client.ProduceSync(ctx, record(msg)).FirstErr(); err != nil {
		p.logger.WarnContext(ctx, "kafka produce failed", "topic", msg.Topic, "error", err)
		return fmt.Errorf("produce to %s: %w", msg.Topic, err)
	}
	return nil
}

// record converts msg, ordering headers by key.
func record(msg *Message) *kgo.Record {
	keys := make([]string, 0, len(msg.Headers))
	for k := range msg.Headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	headers := make([]kgo.RecordHeader, len(keys))
	for i, k := range keys {
		headers[i] = kgo.RecordHeader{Key: k, Value: []byte(msg.Headers[k])}
	}
	return &kgo.Record{Topic: msg.Topic, Key: msg.Key, Value: msg.Value, Headers: headers}
}

// Ping reports whether a broker answers.
func (p *Producer) Ping(ctx context.Context) error {
	if p.closed.Load() {
		return ErrClosed
	}
	return p.client.Ping(ctx)
}

// Close flushes buffered records for up to the close timeout and releases
// the client. Later calls are no-ops.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.closeTimeout)
	defer cancel()
	err := p.client.Flush(ctx)
	p.client.Close()
	return err
}
