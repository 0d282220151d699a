package indexmanager

import (
	"context"
	"encoding/json"

	kafka "github.com/segmentio/kafka-go"

	"castingai/internal/apierr"
)

// Op is the operation carried by an UpdateMessage.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// Priority controls whether an enqueued update waits for the next batch
// drain or forces one immediately (spec §4.6).
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// UpdateMessage is one queued index mutation.
type UpdateMessage struct {
	TalentID string         `json:"talent_id"`
	Op       Op             `json:"op"`
	Data     map[string]any `json:"data,omitempty"`
	Priority Priority       `json:"priority"`
	Attempt  int            `json:"attempt"`
}

// queue abstracts the update transport so the drain loop is identical
// whether backed by Kafka or an in-process channel.
type queue interface {
	Enqueue(ctx context.Context, msg UpdateMessage) error
	Dequeue(ctx context.Context) (UpdateMessage, func(context.Context) error, error)
	DeadLetter(ctx context.Context, msg UpdateMessage, cause error) error
	Depth() int
	Close() error
}

// memoryQueue is the in-process buffered-channel default used when no Kafka
// broker is configured (local dev / tests), per SPEC_FULL.md §4.6b.
type memoryQueue struct {
	updates     chan UpdateMessage
	deadLetters chan UpdateMessage
}

func newMemoryQueue(capacity int) *memoryQueue {
	if capacity <= 0 {
		capacity = 1000
	}
	return &memoryQueue{
		updates:     make(chan UpdateMessage, capacity),
		deadLetters: make(chan UpdateMessage, capacity),
	}
}

func (q *memoryQueue) Enqueue(ctx context.Context, msg UpdateMessage) error {
	select {
	case q.updates <- msg:
		return nil
	default:
		return apierr.New(apierr.CapacityExceeded, "index update queue full")
	}
}

func (q *memoryQueue) Dequeue(ctx context.Context) (UpdateMessage, func(context.Context) error, error) {
	select {
	case msg := <-q.updates:
		return msg, func(context.Context) error { return nil }, nil
	case <-ctx.Done():
		return UpdateMessage{}, nil, ctx.Err()
	}
}

func (q *memoryQueue) DeadLetter(ctx context.Context, msg UpdateMessage, cause error) error {
	select {
	case q.deadLetters <- msg:
		return nil
	default:
		return apierr.Wrap(apierr.CapacityExceeded, "dead-letter queue full", cause)
	}
}

// Depth reports the number of updates currently buffered, for the
// `GET /search/index/stats` endpoint (§6).
func (q *memoryQueue) Depth() int { return len(q.updates) }

func (q *memoryQueue) Close() error { return nil }

// kafkaQueue backs the update queue with segmentio/kafka-go, grounded on
// the teacher's internal/orchestrator/kafka.go producer/consumer pattern:
// a topic for live updates plus a ".dlq" topic for exhausted retries.
type kafkaQueue struct {
	writer    *kafka.Writer
	reader    *kafka.Reader
	dlqWriter *kafka.Writer
}

func newKafkaQueue(brokers []string, topic, groupID string) *kafkaQueue {
	return &kafkaQueue{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		dlqWriter: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic + ".dlq",
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (q *kafkaQueue) Enqueue(ctx context.Context, msg UpdateMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "marshal update message", err)
	}
	if err := q.writer.WriteMessages(ctx, kafka.Message{Key: []byte(msg.TalentID), Value: payload}); err != nil {
		return apierr.Wrap(apierr.ProviderUnavailable, "kafka write", err)
	}
	return nil
}

func (q *kafkaQueue) Dequeue(ctx context.Context) (UpdateMessage, func(context.Context) error, error) {
	km, err := q.reader.FetchMessage(ctx)
	if err != nil {
		return UpdateMessage{}, nil, apierr.Wrap(apierr.ProviderUnavailable, "kafka fetch", err)
	}
	var msg UpdateMessage
	if err := json.Unmarshal(km.Value, &msg); err != nil {
		return UpdateMessage{}, nil, apierr.Wrap(apierr.Internal, "unmarshal update message", err)
	}
	commit := func(ctx context.Context) error {
		return q.reader.CommitMessages(ctx, km)
	}
	return msg, commit, nil
}

func (q *kafkaQueue) DeadLetter(ctx context.Context, msg UpdateMessage, cause error) error {
	payload, err := json.Marshal(struct {
		UpdateMessage
		Error string `json:"error"`
	}{msg, cause.Error()})
	if err != nil {
		return err
	}
	return q.dlqWriter.WriteMessages(ctx, kafka.Message{Key: []byte(msg.TalentID), Value: payload})
}

// Depth reports the consumer group's current lag on the updates topic as a
// best-effort queue-depth proxy; kafka-go refreshes this lazily between
// fetches, so it may read stale immediately after a burst of writes.
func (q *kafkaQueue) Depth() int {
	return int(q.reader.Stats().Lag)
}

func (q *kafkaQueue) Close() error {
	_ = q.writer.Close()
	_ = q.dlqWriter.Close()
	return q.reader.Close()
}
