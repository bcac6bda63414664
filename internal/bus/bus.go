package bus

import (
	"fmt"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// New builds the bus selected by cfg.Type. An empty type means the
// in-process channel bus.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "", "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil
	case "nats":
		return NewNATSBus(cfg)
	default:
		return nil, fmt.Errorf("bus: unsupported type %q", cfg.Type)
	}
}
