package kafka

import (
	"encoding/json"
	"time"
)

// Топики, в которые публикуются доменные события.
const (
	TopicOrderEvents       = "cbs.order.events"
	TopicReservationEvents = "cbs.reservation.events"
	TopicDeadLetterQueue   = "cbs.dlq"
)

// Envelope — общий конверт для всех публикуемых событий.
// Payload намеренно json.RawMessage: тело события уже сериализовано
// на стороне сервиса и вкладывается в конверт как есть.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}
