// Package events publishes scrape-outcome events to Kafka for downstream
// monitoring of upstream health and scraper-grammar drift. The publisher is
// optional: a nil *Publisher is safe to call and drops events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// ScrapeOutcome is emitted after every upstream fetch attempt.
type ScrapeOutcome struct {
	KeyKind    string    `json:"key_kind"`
	KeyValue   string    `json:"key_value"`
	Outcome    string    `json:"outcome"` // success | not_found | parse_error | upstream_error
	Degraded   bool      `json:"degraded"`
	DurationMs int64     `json:"duration_ms"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher writes scrape outcomes to a Kafka topic, fire-and-forget.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New connects to the brokers and ensures the topic exists. Returns nil if no
// brokers are configured.
func New(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopic(ctx, 1, 1, nil, topic); err != nil {
		// Already-exists is fine; anything else means the cluster is
		// misconfigured and publishing would fail anyway.
		if !isTopicExists(err) {
			client.Close()
			return nil, fmt.Errorf("ensure topic %s: %w", topic, err)
		}
	}

	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// Publish sends one outcome event asynchronously. Failures are logged, never
// propagated: the lookup path must not depend on Kafka availability.
func (p *Publisher) Publish(ctx context.Context, event ScrapeOutcome) {
	if p == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal scrape outcome", "error", err)
		return
	}
	record := &kgo.Record{Topic: p.topic, Key: []byte(event.KeyValue), Value: payload}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.WarnContext(ctx, "publish scrape outcome failed", "error", err)
		}
	})
}

// Close flushes pending records and releases the client.
func (p *Publisher) Close(ctx context.Context) {
	if p == nil {
		return
	}
	if err := p.client.Flush(ctx); err != nil {
		p.logger.WarnContext(ctx, "flush scrape outcomes failed", "error", err)
	}
	p.client.Close()
}

func isTopicExists(err error) bool {
	// kadm surfaces per-topic errors as kerr.TopicAlreadyExists; string match
	// keeps us off the kerr internals.
	return err != nil && (strings.Contains(err.Error(), "TOPIC_ALREADY_EXISTS") || strings.Contains(err.Error(), "already exists"))
}
