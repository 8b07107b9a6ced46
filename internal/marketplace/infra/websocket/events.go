package websocket

import (
	"encoding/json"
	"time"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	"github.com/cristianortiz/marketplaceEngine/internal/shared/logger"
	sharedws "github.com/cristianortiz/marketplaceEngine/internal/shared/websocket"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// EventEnvelope is the wire format for marketplace events: type tag, the
// listing topic, emission time, and the event-specific payload.
type EventEnvelope struct {
	Type      domain.EventType `json:"type"`
	Topic     string           `json:"topic"`
	EmittedAt time.Time        `json:"emitted_at"`
	Payload   any              `json:"payload"`
}

// Broadcaster implements domain.EventPublisher on top of the shared hub.
// Every event goes to its listing topic and to the firehose topic so external
// indexers can reconstruct marketplace state from the stream alone.
type Broadcaster struct {
	hub *sharedws.Hub
}

func NewBroadcaster(hub *sharedws.Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

func (b *Broadcaster) Publish(event domain.Event) {
	topic := event.ListingKey().String()
	envelope := EventEnvelope{
		Type:      event.EventType(),
		Topic:     topic,
		EmittedAt: time.Now().UTC(),
		Payload:   event,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		log.Error("Failed to marshal marketplace event",
			zap.String("type", string(event.EventType())),
			zap.Error(err),
		)
		return
	}

	b.hub.BroadcastToTopic(topic, data)
	b.hub.BroadcastToTopic(sharedws.FirehoseTopic, data)
}

var _ domain.EventPublisher = (*Broadcaster)(nil)
