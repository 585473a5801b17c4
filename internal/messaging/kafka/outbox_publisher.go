package kafka

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
)

// OutboxTopicPublisher раскладывает outbox-сообщения по топикам
// в зависимости от типа агрегата.
type OutboxTopicPublisher struct {
	producer *Producer
	topics   map[string]string
	fallback string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
// События заказов идут в TopicOrderEvents, бронирований — в
// TopicReservationEvents, остальное — в fallback-топик.
func NewOutboxPublisher(producer *Producer) domain.OutboxPublisher {
	return &OutboxTopicPublisher{
		producer: producer,
		topics: map[string]string{
			"order":       TopicOrderEvents,
			"reservation": TopicReservationEvents,
		},
		fallback: TopicOrderEvents,
	}
}

// NewDLQPublisher создаёт паблишер, который отправляет всё в
// dead letter queue независимо от типа агрегата.
func NewDLQPublisher(producer *Producer) domain.OutboxPublisher {
	return &OutboxTopicPublisher{
		producer: producer,
		topics:   map[string]string{},
		fallback: TopicDeadLetterQueue,
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

	topic, ok := p.topics[event.AggregateType]
	if !ok {
		topic = p.fallback
	}

	id := event.ID
	if id == "" {
		id = uuid.NewString()
	}

	return p.producer.PublishEvent(topic, key, Envelope{
		ID:            id,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       event.Payload,
		PublishedAt:   time.Now().UTC(),
	})
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
