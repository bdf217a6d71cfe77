// Package events publishes pipeline lifecycle events to Kafka. The event
// stream is optional; a nil Producer silently drops everything so the
// pipeline runs unchanged without a broker.
package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

const (
	EventArticleProcessed = "article.processed"
	EventBatchCompleted   = "batch.completed"
	EventUserActivity     = "user.activity"
)

// Event is the envelope every published message uses.
type Event struct {
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

type Producer struct {
	producer *kafka.Producer
	topic    string
}

func NewProducer(broker, topic string) (*Producer, error) {
	slog.Info("🔄 Connecting to Kafka", slog.String("broker", broker))

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":   broker,
		"security.protocol":   "PLAINTEXT",
		"api.version.request": "true",
	})
	if err != nil {
		return nil, err
	}

	prod := &Producer{producer: p, topic: topic}
	go prod.drainDeliveryReports()

	slog.Info("✅ Kafka Producer initialized", slog.String("topic", topic))
	return prod, nil
}

func (p *Producer) drainDeliveryReports() {
	for e := range p.producer.Events() {
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			slog.Warn("[Events] delivery failed",
				slog.String("error", m.TopicPartition.Error.Error()))
		}
	}
}

// Publish is fire and forget. Failures are logged, never propagated; a
// dead broker must not stall article processing.
func (p *Producer) Publish(eventType string, payload map[string]any) {
	if p == nil || p.producer == nil {
		return
	}

	data, err := json.Marshal(Event{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		slog.Warn("[Events] marshal failed", slog.String("type", eventType))
		return
	}

	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(eventType),
		Value:          data,
	}, nil)
	if err != nil {
		slog.Warn("[Events] publish failed",
			slog.String("type", eventType),
			slog.String("error", err.Error()))
		return
	}

	slog.Debug("📨 Published event", slog.String("type", eventType))
}

func (p *Producer) Close() {
	if p == nil || p.producer == nil {
		return
	}
	p.producer.Flush(3000)
	p.producer.Close()
	slog.Info("Kafka producer shut down")
}
