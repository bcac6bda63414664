package domain

import "context"

// EventBus carries engine notifications to dashboard subscribers. The
// community tier runs an in-process channel bus; the pro tier runs NATS.
type EventBus interface {
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic and returns a handle
	// that stops delivery when unsubscribed.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	Ping(ctx context.Context) error
	Close() error
}

// MessageHandler processes one delivered message. Returning an error does
// not stop the subscription; buses log and move on.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message is the envelope every bus implementation delivers.
type Message struct {
	ID          string `json:"id"`
	Topic       string `json:"topic"`
	Payload     []byte `json:"payload"`
	PublishedAt int64  `json:"published_at"` // unix nanoseconds
}

// Subscription is an active topic registration.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// EventBusConfig selects and tunes the bus implementation.
type EventBusConfig struct {
	// Type is "channel" or "nats". Empty defaults to channel.
	Type string

	ChannelBufferSize int

	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Topics published by the prediction pipeline.
const (
	TopicHistoryChanged = "fraudshield.history.changed"
	TopicAlertGenerated = "fraudshield.alert.generated"
	TopicRowsIngested   = "fraudshield.rows.ingested"
	TopicBatchUpdated   = "fraudshield.batch.updated"
)
