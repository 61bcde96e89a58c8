package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/mikey/email-threat-triage/internal/core"
)

// Event types
const (
	EventVerdictCompleted = "verdict.completed"
	EventThreatDetected   = "threat.detected"
)

// Envelope is the JSON payload published for each event
type Envelope struct {
	EventType         string              `json:"event_type"`
	VerdictID         string              `json:"verdict_id"`
	OccurredAt        time.Time           `json:"occurred_at"`
	Sender            string              `json:"sender"`
	Subject           string              `json:"subject"`
	Classification    core.Classification `json:"classification"`
	FinalRiskScore    int                 `json:"final_risk_score"`
	RecommendedAction core.Action         `json:"recommended_action"`
	ReasoningSummary  string              `json:"reasoning_summary"`
}

// NewEnvelope builds the envelope of an event about v
func NewEnvelope(eventType string, v *core.SecurityVerdict, now time.Time) Envelope {
	return Envelope{
		EventType:         eventType,
		VerdictID:         v.ID,
		OccurredAt:        now.UTC(),
		Sender:            v.Metadata.Sender,
		Subject:           v.Metadata.Subject,
		Classification:    v.Classification,
		FinalRiskScore:    v.FinalRiskScore,
		RecommendedAction: v.RecommendedAction,
		ReasoningSummary:  v.ReasoningSummary,
	}
}

// messageWriter is the part of *kafkago.Writer the publisher needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config holds Kafka connection parameters
type Config struct {
	Brokers     []string
	Topic       string
	ThreatTopic string
}

// KafkaPublisher publishes verdict events, one writer per topic
type KafkaPublisher struct {
	mu          sync.Mutex
	writers     map[string]messageWriter
	newWriter   func(topic string) messageWriter
	topic       string
	threatTopic string
	logger      *zap.Logger
}

// NewKafkaPublisher creates a publisher; writers are created lazily per topic
func NewKafkaPublisher(cfg Config, logger *zap.Logger) *KafkaPublisher {
	brokers := cfg.Brokers
	return &KafkaPublisher{
		writers: make(map[string]messageWriter),
		newWriter: func(topic string) messageWriter {
			return &kafkago.Writer{
				Addr:         kafkago.TCP(brokers...),
				Topic:        topic,
				Balancer:     &kafkago.Hash{},
				BatchTimeout: 10 * time.Millisecond,
				RequiredAcks: kafkago.RequireAll,
			}
		},
		topic:       cfg.Topic,
		threatTopic: cfg.ThreatTopic,
		logger:      logger,
	}
}

// PublishVerdict emits verdict.completed, plus threat.detected for malicious verdicts
func (p *KafkaPublisher) PublishVerdict(ctx context.Context, v *core.SecurityVerdict) error {
	now := time.Now()

	if err := p.publish(ctx, p.topic, NewEnvelope(EventVerdictCompleted, v, now)); err != nil {
		return err
	}

	if v.Classification == core.ClassificationMalicious && p.threatTopic != "" {
		if err := p.publish(ctx, p.threatTopic, NewEnvelope(EventThreatDetected, v, now)); err != nil {
			return err
		}
	}

	return nil
}

func (p *KafkaPublisher) publish(ctx context.Context, topic string, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", env.EventType, err)
	}

	msg := kafkago.Message{
		Key:   []byte(env.VerdictID),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "event-type", Value: []byte(env.EventType)},
			{Key: "content-type", Value: []byte("application/json")},
		},
	}

	if err := p.writer(topic).WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}

	p.logger.Debug("Published event",
		zap.String("topic", topic),
		zap.String("event_type", env.EventType),
		zap.String("verdict_id", env.VerdictID))
	return nil
}

func (p *KafkaPublisher) writer(topic string) messageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := p.newWriter(topic)
	p.writers[topic] = w
	return w
}

// Close closes all writers
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing writer for topic %s: %w", topic, err)
		}
	}
	p.writers = make(map[string]messageWriter)
	return firstErr
}

// NopPublisher discards events
type NopPublisher struct{}

// PublishVerdict does nothing
func (NopPublisher) PublishVerdict(context.Context, *core.SecurityVerdict) error { return nil }
