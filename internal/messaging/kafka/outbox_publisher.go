package kafka

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/verdora/storefront/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в Kafka. Topic выбирается
// по типу события в момент публикации; фиксированный topic отключает маршрутизацию.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
// События cart.* уходят в TopicCartEvents, payment.* — в TopicPaymentEvents.
func NewOutboxPublisher(producer *Producer) domain.OutboxPublisher {
	return &OutboxTopicPublisher{producer: producer}
}

// NewTopicPublisher создаёт паблишер с фиксированным topic. Используется
// для DLQ, где события любого типа складываются в одну очередь.
func NewTopicPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicPaymentEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
	}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	envelope := struct {
		ID            string          `json:"id"`
		AggregateType string          `json:"aggregate_type"`
		AggregateID   string          `json:"aggregate_id"`
		EventType     string          `json:"event_type"`
		Payload       json.RawMessage `json:"payload"`
		PublishedAt   time.Time       `json:"published_at"`
	}{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}

	topic := p.topic
	if topic == "" {
		topic = topicFor(event)
	}
	return p.producer.PublishEvent(topic, key, envelope)
}

func topicFor(event domain.OutboxMessage) string {
	switch {
	case strings.HasPrefix(event.EventType, "cart."), event.AggregateType == "cart":
		return TopicCartEvents
	default:
		return TopicPaymentEvents
	}
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
