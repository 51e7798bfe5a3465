package whatsapp

import (
	"context"

	"FacilityBot/bot/chat"
	wabot "FacilityBot/bot/whatsapp"
)

// MessageSender delivers WhatsApp text and button messages.
type MessageSender interface {
	SendMessage(ctx context.Context, recipientPhone, text string) error
	SendButtons(ctx context.Context, recipientPhone, text string, buttons []wabot.ButtonSpec) error
}

// Messenger implements chat.Messenger for WhatsApp.
type Messenger struct {
	sender MessageSender
}

// NewMessenger creates a new WhatsApp Messenger.
func NewMessenger(sender MessageSender) *Messenger {
	return &Messenger{sender: sender}
}

func (m *Messenger) SendText(ctx context.Context, phone, text string) error {
	return m.sender.SendMessage(ctx, phone, text)
}

func (m *Messenger) SendButtons(ctx context.Context, phone, text string, buttons []chat.ReplyButton) error {
	specs := make([]wabot.ButtonSpec, 0, len(buttons))
	for _, b := range buttons {
		specs = append(specs, wabot.ButtonSpec{ID: b.ID, Title: b.Title})
	}
	return m.sender.SendButtons(ctx, phone, text, specs)
}
