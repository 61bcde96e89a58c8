package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mikey/email-threat-triage/internal/core"
)

type memWriter struct {
	mu     sync.Mutex
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error {
	w.closed = true
	return nil
}

func newTestPublisher(t *testing.T) (*KafkaPublisher, map[string]*memWriter) {
	writers := map[string]*memWriter{}
	p := NewKafkaPublisher(Config{Brokers: []string{"localhost:9092"}, Topic: "verdicts", ThreatTopic: "threats"}, zaptest.NewLogger(t))
	p.newWriter = func(topic string) messageWriter {
		w := &memWriter{}
		writers[topic] = w
		return w
	}
	return p, writers
}

func testVerdict(c core.Classification) *core.SecurityVerdict {
	return &core.SecurityVerdict{
		ID:                "d9b2c7de-0a51-4f55-9d0e-4a7d0c0f2f10",
		Metadata:          core.EmailMetadata{Sender: "x@evil.tk", Subject: "Pay now"},
		FinalRiskScore:    77,
		Classification:    c,
		RecommendedAction: core.ActionBlockSender,
	}
}

func TestPublishVerdictSafe(t *testing.T) {
	p, writers := newTestPublisher(t)

	require.NoError(t, p.PublishVerdict(context.Background(), testVerdict(core.ClassificationSafe)))

	require.Contains(t, writers, "verdicts")
	assert.NotContains(t, writers, "threats")
	require.Len(t, writers["verdicts"].msgs, 1)

	msg := writers["verdicts"].msgs[0]
	assert.Equal(t, "d9b2c7de-0a51-4f55-9d0e-4a7d0c0f2f10", string(msg.Key))

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, EventVerdictCompleted, env.EventType)
	assert.Equal(t, "x@evil.tk", env.Sender)
	assert.Equal(t, 77, env.FinalRiskScore)
}

func TestPublishVerdictMalicious(t *testing.T) {
	p, writers := newTestPublisher(t)

	require.NoError(t, p.PublishVerdict(context.Background(), testVerdict(core.ClassificationMalicious)))

	require.Len(t, writers["verdicts"].msgs, 1)
	require.Len(t, writers["threats"].msgs, 1)

	var env Envelope
	require.NoError(t, json.Unmarshal(writers["threats"].msgs[0].Value, &env))
	assert.Equal(t, EventThreatDetected, env.EventType)
	assert.Equal(t, core.ClassificationMalicious, env.Classification)
}

func TestPublishReusesWriters(t *testing.T) {
	p, writers := newTestPublisher(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, p.PublishVerdict(context.Background(), testVerdict(core.ClassificationSafe)))
	}
	assert.Len(t, writers["verdicts"].msgs, 3)

	require.NoError(t, p.Close())
	assert.True(t, writers["verdicts"].closed)
}

func TestPublishError(t *testing.T) {
	p, _ := newTestPublisher(t)
	p.newWriter = func(string) messageWriter { return &memWriter{err: errors.New("leader not available")} }

	err := p.PublishVerdict(context.Background(), testVerdict(core.ClassificationSafe))
	assert.ErrorContains(t, err, "kafka publish to verdicts")
}

func TestNewEnvelope(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	env := NewEnvelope(EventVerdictCompleted, testVerdict(core.ClassificationSuspicious), now)

	assert.Equal(t, time.UTC, env.OccurredAt.Location())
	assert.Equal(t, core.ActionBlockSender, env.RecommendedAction)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.PublishVerdict(context.Background(), testVerdict(core.ClassificationSafe)))
}
