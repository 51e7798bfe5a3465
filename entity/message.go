package entity

import (
	"time"
)

// Message types delivered by the WhatsApp Cloud API.
const (
	MessageText        = "text"
	MessageInteractive = "interactive"
	MessageImage       = "image"
	MessageAudio       = "audio"
	MessageDocument    = "document"
	MessageLocation    = "location"
)

// InboundMessage is a normalized incoming chat message.
type InboundMessage struct {
	ID        string    `json:"id" bson:"_id"`
	Phone     string    `json:"phone" bson:"phone"`
	Name      string    `json:"name" bson:"name"`
	Text      string    `json:"text" bson:"text"`
	Type      string    `json:"type" bson:"type"`
	MediaID   string    `json:"media_id,omitempty" bson:"media_id,omitempty"`
	Caption   string    `json:"caption,omitempty" bson:"caption,omitempty"`
	MessageID string    `json:"message_id" bson:"message_id"`
	Timestamp string    `json:"timestamp,omitempty" bson:"timestamp,omitempty"`
	Status    string    `json:"status" bson:"status"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// IsFreeText reports whether the message carries user-typed text or a button reply.
func (m *InboundMessage) IsFreeText() bool {
	return m.Type == MessageText || m.Type == MessageInteractive
}
