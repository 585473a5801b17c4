package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/cbs/internal/messaging/kafka"
)

func TestParseBrokers(t *testing.T) {
	brokers := parseBrokers(" broker-1:9092, ,broker-2:9092 ")
	if len(brokers) != 2 {
		t.Fatalf("unexpected brokers count: got=%d want=2", len(brokers))
	}
	if brokers[0] != "broker-1:9092" || brokers[1] != "broker-2:9092" {
		t.Fatalf("unexpected brokers: %+v", brokers)
	}
}

func TestTargetTopicFor(t *testing.T) {
	if got := targetTopicFor("order", ""); got != kafka.TopicOrderEvents {
		t.Fatalf("unexpected order topic: %s", got)
	}
	if got := targetTopicFor("reservation", ""); got != kafka.TopicReservationEvents {
		t.Fatalf("unexpected reservation topic: %s", got)
	}
	if got := targetTopicFor("reservation", "custom.topic"); got != "custom.topic" {
		t.Fatalf("override must win: %s", got)
	}
}

func dlqMessage(t *testing.T, aggregateType string, withPayload bool) *sarama.ConsumerMessage {
	t.Helper()

	inner := map[string]any{
		"outbox_id":      "outbox-1",
		"aggregate_type": aggregateType,
		"aggregate_id":   "agg-1",
		"event_type":     "order.created",
		"publish_error":  "timeout",
	}
	if withPayload {
		inner["payload"] = map[string]any{"status": "OPEN"}
	}
	innerRaw, err := json.Marshal(inner)
	if err != nil {
		t.Fatalf("marshal dlq payload failed: %v", err)
	}

	raw, err := json.Marshal(kafka.Envelope{
		ID:            "outbox-1",
		AggregateType: aggregateType,
		AggregateID:   "agg-1",
		EventType:     "order.created",
		Payload:       innerRaw,
		PublishedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("marshal envelope failed: %v", err)
	}

	return &sarama.ConsumerMessage{Value: raw}
}

func TestExtractReplayMessage(t *testing.T) {
	got, ok, err := extractReplayMessage(dlqMessage(t, "order", true), "")
	if err != nil {
		t.Fatalf("extractReplayMessage failed: %v", err)
	}
	if !ok {
		t.Fatal("expected replay candidate")
	}
	if got.topic != kafka.TopicOrderEvents {
		t.Fatalf("unexpected topic: %s", got.topic)
	}
	if got.key != "agg-1" {
		t.Fatalf("unexpected key: %s", got.key)
	}

	var replay kafka.Envelope
	if err := json.Unmarshal(got.value, &replay); err != nil {
		t.Fatalf("replay value must be a valid envelope: %v", err)
	}
	if replay.EventType != "order.created" {
		t.Fatalf("unexpected event type: %s", replay.EventType)
	}
	if string(replay.Payload) != `{"status":"OPEN"}` {
		t.Fatalf("unexpected replay payload: %s", string(replay.Payload))
	}
}

func TestExtractReplayMessage_RoutesReservations(t *testing.T) {
	got, ok, err := extractReplayMessage(dlqMessage(t, "reservation", true), "")
	if err != nil {
		t.Fatalf("extractReplayMessage failed: %v", err)
	}
	if !ok {
		t.Fatal("expected replay candidate")
	}
	if got.topic != kafka.TopicReservationEvents {
		t.Fatalf("unexpected topic: %s", got.topic)
	}
}

func TestExtractReplayMessage_MissingOriginalPayload(t *testing.T) {
	_, ok, err := extractReplayMessage(dlqMessage(t, "order", false), "")
	if err == nil {
		t.Fatal("expected error for dlq message without original payload")
	}
	if ok {
		t.Fatal("message without payload must not be a replay candidate")
	}
}

func TestExtractReplayMessage_NotJSON(t *testing.T) {
	_, ok, err := extractReplayMessage(&sarama.ConsumerMessage{Value: []byte("not json")}, "")
	if err != nil {
		t.Fatalf("non-json message must be skipped silently: %v", err)
	}
	if ok {
		t.Fatal("non-json message must not be a replay candidate")
	}
}

type fakeOffsetClient struct {
	partitions []int32
	oldest     int64
	newest     int64
}

func (f *fakeOffsetClient) GetOffset(_ string, _ int32, at int64) (int64, error) {
	if at == sarama.OffsetOldest {
		return f.oldest, nil
	}
	return f.newest, nil
}

func (f *fakeOffsetClient) Partitions(string) ([]int32, error) { return f.partitions, nil }
func (f *fakeOffsetClient) Close() error                       { return nil }

type fakePartitionConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
}

func (f *fakePartitionConsumer) Messages() <-chan *sarama.ConsumerMessage { return f.messages }
func (f *fakePartitionConsumer) Errors() <-chan *sarama.ConsumerError     { return f.errors }
func (f *fakePartitionConsumer) Close() error                             { return nil }

type fakeConsumerSource struct {
	consumer *fakePartitionConsumer
}

func (f *fakeConsumerSource) ConsumePartition(string, int32, int64) (partitionConsumer, error) {
	return f.consumer, nil
}

func (f *fakeConsumerSource) Close() error { return nil }

type fakeProducer struct {
	sent []*sarama.ProducerMessage
}

func (f *fakeProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	f.sent = append(f.sent, msg)
	return 0, int64(len(f.sent)), nil
}

func (f *fakeProducer) Close() error { return nil }

func TestRunReplay_Execute(t *testing.T) {
	messages := make(chan *sarama.ConsumerMessage, 2)
	for i := 0; i < 2; i++ {
		msg := dlqMessage(t, "order", true)
		msg.Offset = int64(i)
		messages <- msg
	}

	client := &fakeOffsetClient{partitions: []int32{0}, oldest: 0, newest: 2}
	source := &fakeConsumerSource{consumer: &fakePartitionConsumer{
		messages: messages,
		errors:   make(chan *sarama.ConsumerError),
	}}
	producer := &fakeProducer{}

	cfg := config{
		sourceTopic: kafka.TopicDeadLetterQueue,
		limit:       10,
		execute:     true,
		idleTimeout: 100 * time.Millisecond,
	}

	if err := runReplay(context.Background(), cfg, client, source, producer); err != nil {
		t.Fatalf("runReplay failed: %v", err)
	}
	if len(producer.sent) != 2 {
		t.Fatalf("expected 2 replayed messages, got %d", len(producer.sent))
	}
	if producer.sent[0].Topic != kafka.TopicOrderEvents {
		t.Fatalf("unexpected replay topic: %s", producer.sent[0].Topic)
	}
}

func TestRunReplay_DryRunNeedsNoProducer(t *testing.T) {
	msg := dlqMessage(t, "order", true)
	msg.Offset = 0
	messages := make(chan *sarama.ConsumerMessage, 1)
	messages <- msg

	client := &fakeOffsetClient{partitions: []int32{0}, oldest: 0, newest: 1}
	source := &fakeConsumerSource{consumer: &fakePartitionConsumer{
		messages: messages,
		errors:   make(chan *sarama.ConsumerError),
	}}

	cfg := config{
		sourceTopic: kafka.TopicDeadLetterQueue,
		limit:       10,
		idleTimeout: 100 * time.Millisecond,
	}

	if err := runReplay(context.Background(), cfg, client, source, nil); err != nil {
		t.Fatalf("runReplay dry-run failed: %v", err)
	}
}
