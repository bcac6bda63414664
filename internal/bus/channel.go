// Package bus provides the event bus implementations behind
// domain.EventBus: an in-process channel bus for the community tier and
// NATS for the pro tier.
package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("bus: closed")

const defaultBufferSize = 1000

// ChannelBus fans messages out to per-subscriber buffered channels.
// Delivery is best-effort: a subscriber whose buffer is full misses the
// message and the drop counter increments.
type ChannelBus struct {
	mu         sync.RWMutex
	bufferSize int
	subs       map[string]map[string]*chanSub // topic -> sub id -> sub
	closed     bool
	dropped    atomic.Int64
}

type chanSub struct {
	bus    *ChannelBus
	id     string
	topic  string
	ch     chan *domain.Message
	cancel context.CancelFunc
}

// NewChannelBus creates an in-process bus. Buffer size applies per
// subscriber; zero or negative selects the default.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &ChannelBus{
		bufferSize: bufferSize,
		subs:       make(map[string]map[string]*chanSub),
	}
}

// Publish delivers to every subscriber of the topic without blocking.
func (b *ChannelBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	msg := &domain.Message{
		ID:          uuid.New().String(),
		Topic:       topic,
		Payload:     payload,
		PublishedAt: time.Now().UnixNano(),
	}

	for _, sub := range b.subs[topic] {
		select {
		case sub.ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe starts a delivery goroutine for the handler.
func (b *ChannelBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &chanSub{
		bus:    b,
		id:     uuid.New().String(),
		topic:  topic,
		ch:     make(chan *domain.Message, b.bufferSize),
		cancel: cancel,
	}

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[string]*chanSub)
	}
	b.subs[topic][sub.id] = sub

	go func() {
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-sub.ch:
				if !ok {
					return
				}
				_ = handler(subCtx, msg)
			}
		}
	}()

	return sub, nil
}

// Dropped reports how many messages were skipped due to full subscriber
// buffers since the bus was created.
func (b *ChannelBus) Dropped() int64 {
	return b.dropped.Load()
}

func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close stops all subscriptions. Idempotent.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, topicSubs := range b.subs {
		for _, sub := range topicSubs {
			sub.cancel()
			close(sub.ch)
		}
	}
	b.subs = make(map[string]map[string]*chanSub)
	return nil
}

func (s *chanSub) Unsubscribe() error {
	s.cancel()

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if topicSubs, ok := s.bus.subs[s.topic]; ok {
		delete(topicSubs, s.id)
	}
	return nil
}

func (s *chanSub) Topic() string {
	return s.topic
}
