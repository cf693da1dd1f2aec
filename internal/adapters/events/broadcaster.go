package events

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"rental_kernel/internal/app"
)

// Message is the envelope every listener receives.
type Message struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Broadcaster publishes sync events onto a hub.
type Broadcaster struct {
	hub *Hub
}

func NewBroadcaster(h *Hub) *Broadcaster { return &Broadcaster{hub: h} }

func (b *Broadcaster) Publish(ev app.SyncEvent) {
	data, err := json.Marshal(Message{Type: ev.Type, Timestamp: time.Now().UTC(), Payload: ev})
	if err != nil {
		log.Error().Err(err).Msg("encode event")
		return
	}
	b.hub.Broadcast(data)
}
