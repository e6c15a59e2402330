package gateway

import (
	"github.com/rs/zerolog"

	"github.com/hyeon/webgate/pkg/protocol"
)

// Broadcaster pushes a notification to every Active connection. It works
// off a registry snapshot, so connections joining or leaving mid-broadcast
// are simply missed or skipped.
type Broadcaster struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewBroadcaster creates a broadcaster over the given registry.
func NewBroadcaster(registry *Registry, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		logger:   logger,
	}
}

// Broadcast sends one notification to every Active connection and returns
// how many sends succeeded. A per-connection failure is logged and does
// not stop the fan-out.
func (b *Broadcaster) Broadcast(method string, params map[string]interface{}) int {
	msg := protocol.NewNotification(method, params)

	sent := 0
	for _, conn := range b.registry.Snapshot() {
		if conn.State() != StateActive {
			continue
		}
		if err := conn.Transport.Send(msg); err != nil {
			b.logger.Warn().
				Err(err).
				Str("client_id", conn.ID).
				Str("method", method).
				Msg("broadcast send failed")
			continue
		}
		sent++
	}

	b.logger.Debug().
		Str("method", method).
		Int("sent", sent).
		Msg("broadcast complete")
	return sent
}
