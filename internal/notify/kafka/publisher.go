// Package kafka publishes notifications to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/twmb/franz-go/pkg/kgo"

	"custos/internal/notify"
)

var published = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "custos_notifications_published_total",
	Help: "Notifications published to Kafka by category.",
}, []string{"category"})

// message is the wire shape of one notification record.
type message struct {
	TenantID    string    `json:"tenant_id"`
	RecipientID string    `json:"recipient_id"`
	SubjectID   string    `json:"subject_id,omitempty"`
	Category    string    `json:"category"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Urgency     string    `json:"urgency"`
	SentAt      time.Time `json:"sent_at"`
}

// Publisher implements notify.Notifier on top of a Kafka producer. Records
// are keyed by tenant so a tenant's notifications stay ordered within a
// partition.
type Publisher struct {
	client *kgo.Client
	topic  string
	log    *slog.Logger
}

var _ notify.Notifier = (*Publisher)(nil)

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Publisher) { p.log = log }
}

// NewPublisher connects a producer to the given brokers.
func NewPublisher(brokers []string, topic string, opts ...Option) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher: brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka publisher: topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}

	p := &Publisher{
		client: client,
		topic:  topic,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Send publishes the request and waits for broker acknowledgement.
func (p *Publisher) Send(ctx context.Context, req notify.Request) error {
	payload, err := json.Marshal(message{
		TenantID:    req.TenantID.String(),
		RecipientID: req.RecipientID.String(),
		SubjectID:   req.SubjectID,
		Category:    string(req.Category),
		Title:       req.Title,
		Body:        req.Body,
		Urgency:     string(req.Urgency),
		SentAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(req.TenantID.String()),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce notification: %w", err)
	}

	published.WithLabelValues(string(req.Category)).Inc()
	p.log.DebugContext(ctx, "notification published",
		"category", req.Category,
		"tenant_id", req.TenantID,
		"recipient_id", req.RecipientID,
	)
	return nil
}

// Close flushes pending records and releases the producer.
func (p *Publisher) Close() {
	p.client.Close()
}
