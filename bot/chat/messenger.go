package chat

import "context"

// Messenger is the channel adapter that delivers replies to a phone.
type Messenger interface {
	SendText(ctx context.Context, phone, text string) error
	SendButtons(ctx context.Context, phone, text string, buttons []ReplyButton) error
}

// ReplyButton is a selectable option shown to the user.
type ReplyButton struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Reply is the outward message produced by the engine.
type Reply struct {
	Text    string        `json:"text"`
	Buttons []ReplyButton `json:"buttons,omitempty"`
}

// Send delivers the reply through m, choosing a button message when the
// reply carries options.
func (r *Reply) Send(ctx context.Context, m Messenger, phone string) error {
	if len(r.Buttons) > 0 {
		return m.SendButtons(ctx, phone, r.Text, r.Buttons)
	}
	return m.SendText(ctx, phone, r.Text)
}

// InputKind classifies an inbound message.
type InputKind string

const (
	InputText        InputKind = "text"
	InputInteractive InputKind = "interactive"
	InputImage       InputKind = "image"
	InputAudio       InputKind = "audio"
	InputDocument    InputKind = "document"
	InputLocation    InputKind = "location"
	InputOther       InputKind = "other"
)

// ParseInputKind maps a channel message type onto an InputKind.
func ParseInputKind(s string) InputKind {
	switch k := InputKind(s); k {
	case InputText, InputInteractive, InputImage, InputAudio, InputDocument, InputLocation:
		return k
	case "button":
		return InputInteractive
	case "voice":
		return InputAudio
	}
	return InputOther
}

// FreeText reports whether input of this kind may answer a text question.
func (k InputKind) FreeText() bool {
	return k == InputText || k == InputInteractive
}

// Input is one normalized inbound message.
type Input struct {
	Kind      InputKind
	Text      string
	Caption   string
	MediaID   string
	MessageID string
}
