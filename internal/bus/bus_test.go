package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestChannelBusDelivery(t *testing.T) {
	b := NewChannelBus(100)
	defer b.Close()
	ctx := context.Background()

	var got atomic.Pointer[domain.Message]
	_, err := b.Subscribe(ctx, domain.TopicHistoryChanged, func(ctx context.Context, msg *domain.Message) error {
		got.Store(msg)
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.Publish(ctx, domain.TopicHistoryChanged, []byte("hello")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if !waitFor(t, time.Second, func() bool { return got.Load() != nil }) {
		t.Fatal("message never delivered")
	}

	msg := got.Load()
	if string(msg.Payload) != "hello" {
		t.Errorf("payload = %q, want hello", msg.Payload)
	}
	if msg.Topic != domain.TopicHistoryChanged {
		t.Errorf("topic = %q", msg.Topic)
	}
	if msg.ID == "" || msg.PublishedAt == 0 {
		t.Errorf("envelope incomplete: %+v", msg)
	}
}

func TestChannelBusTopicIsolation(t *testing.T) {
	b := NewChannelBus(100)
	defer b.Close()
	ctx := context.Background()

	var one, two atomic.Int32
	b.Subscribe(ctx, "iso.one", func(ctx context.Context, msg *domain.Message) error {
		one.Add(1)
		return nil
	})
	b.Subscribe(ctx, "iso.two", func(ctx context.Context, msg *domain.Message) error {
		two.Add(1)
		return nil
	})

	b.Publish(ctx, "iso.one", []byte("x"))

	if !waitFor(t, time.Second, func() bool { return one.Load() == 1 }) {
		t.Fatalf("first topic received %d messages, want 1", one.Load())
	}
	time.Sleep(20 * time.Millisecond)
	if two.Load() != 0 {
		t.Errorf("second topic received %d messages, want 0", two.Load())
	}
}

func TestChannelBusFanOut(t *testing.T) {
	b := NewChannelBus(100)
	defer b.Close()
	ctx := context.Background()

	var a, c atomic.Int32
	b.Subscribe(ctx, "fan.topic", func(ctx context.Context, msg *domain.Message) error {
		a.Add(1)
		return nil
	})
	b.Subscribe(ctx, "fan.topic", func(ctx context.Context, msg *domain.Message) error {
		c.Add(1)
		return nil
	})

	b.Publish(ctx, "fan.topic", []byte("broadcast"))

	if !waitFor(t, time.Second, func() bool { return a.Load() == 1 && c.Load() == 1 }) {
		t.Errorf("fan-out incomplete: %d and %d", a.Load(), c.Load())
	}
}

func TestChannelBusUnsubscribe(t *testing.T) {
	b := NewChannelBus(100)
	defer b.Close()
	ctx := context.Background()

	var count atomic.Int32
	sub, err := b.Subscribe(ctx, "unsub.topic", func(ctx context.Context, msg *domain.Message) error {
		count.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if sub.Topic() != "unsub.topic" {
		t.Errorf("sub topic = %q", sub.Topic())
	}

	b.Publish(ctx, "unsub.topic", []byte("first"))
	if !waitFor(t, time.Second, func() bool { return count.Load() == 1 }) {
		t.Fatalf("first message not delivered")
	}

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}

	b.Publish(ctx, "unsub.topic", []byte("second"))
	time.Sleep(30 * time.Millisecond)
	if count.Load() != 1 {
		t.Errorf("received %d messages after unsubscribe, want 1", count.Load())
	}
}

func TestChannelBusDropsWhenFull(t *testing.T) {
	b := NewChannelBus(1)
	defer b.Close()
	ctx := context.Background()

	block := make(chan struct{})
	b.Subscribe(ctx, "slow.topic", func(ctx context.Context, msg *domain.Message) error {
		<-block
		return nil
	})

	// First fills the handler, second fills the buffer, the rest drop.
	for i := 0; i < 5; i++ {
		b.Publish(ctx, "slow.topic", []byte("x"))
	}
	close(block)

	if !waitFor(t, time.Second, func() bool { return b.Dropped() >= 1 }) {
		t.Errorf("dropped = %d, want at least 1", b.Dropped())
	}
}

func TestChannelBusClosed(t *testing.T) {
	b := NewChannelBus(10)
	ctx := context.Background()

	b.Subscribe(ctx, "close.topic", func(ctx context.Context, msg *domain.Message) error {
		return nil
	})

	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}

	if err := b.Publish(ctx, "close.topic", []byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("publish after close = %v, want ErrClosed", err)
	}
	if err := b.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("ping after close = %v, want ErrClosed", err)
	}
	if _, err := b.Subscribe(ctx, "close.topic", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("subscribe after close = %v, want ErrClosed", err)
	}
}

func TestChannelBusHighLoad(t *testing.T) {
	b := NewChannelBus(1000)
	defer b.Close()
	ctx := context.Background()

	const messageCount = 200
	var received atomic.Int32
	b.Subscribe(ctx, "load.topic", func(ctx context.Context, msg *domain.Message) error {
		received.Add(1)
		return nil
	})

	for i := 0; i < messageCount; i++ {
		b.Publish(ctx, "load.topic", []byte("msg"))
	}

	if !waitFor(t, 5*time.Second, func() bool { return received.Load() == messageCount }) {
		t.Fatalf("received %d/%d messages", received.Load(), messageCount)
	}
	if b.Dropped() != 0 {
		t.Errorf("dropped %d messages under capacity", b.Dropped())
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		busType string
		wantErr bool
	}{
		{"Channel", "channel", false},
		{"EmptyDefaultsToChannel", "", false},
		{"Unsupported", "kafka", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(domain.EventBusConfig{Type: tt.busType, ChannelBufferSize: 10})
			if tt.wantErr {
				if err == nil {
					t.Errorf("New(%q) succeeded, want error", tt.busType)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%q): %v", tt.busType, err)
			}
			defer b.Close()
			if _, ok := b.(*ChannelBus); !ok {
				t.Errorf("New(%q) = %T, want *ChannelBus", tt.busType, b)
			}
		})
	}
}
