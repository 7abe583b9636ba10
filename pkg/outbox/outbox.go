package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
)

// Event is one row of the transactional outbox. Rows are written in the same
// transaction as the state change they describe and published asynchronously
// by the Processor.
type Event struct {
	ID            int64           `db:"id"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   string          `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	Payload       json.RawMessage `db:"payload"`
	CreatedAt     time.Time       `db:"created_at"`
	PublishedAt   *time.Time      `db:"published_at"`
	Attempts      int64           `db:"attempts"`
	LastError     *string         `db:"last_error"`
	Topic         string          `db:"topic"`
}

type Repository interface {
	Save(ctx context.Context, tx pgx.Tx, event *Event) error
	GetUnpublished(ctx context.Context, tx pgx.Tx, batchSize int) ([]*Event, error)
	MarkPublished(ctx context.Context, tx pgx.Tx, eventID int64) error
	MarkFailed(ctx context.Context, tx pgx.Tx, eventID int64, errMsg string) error
}

type Producer interface {
	ProduceMessage(ctx context.Context, topic string, message interface{}) error
}

// Envelope is the wire format used on Kafka topics: an event name plus its
// typed payload.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent wraps payload in an Envelope and builds an outbox row for it.
func NewEvent(aggregateType, aggregateID, eventType, topic string, payload any) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	envelope, err := json.Marshal(Envelope{
		Event:   eventType,
		Payload: payloadBytes,
	})
	if err != nil {
		return nil, err
	}

	return &Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       envelope,
		Topic:         topic,
	}, nil
}
