package whatsapp

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"FacilityBot/entity"
	"FacilityBot/internal/lib/sl"
)

// graphAPIURL is a var so tests can point it at an httptest server.
var graphAPIURL = "https://graph.facebook.com/v21.0"

const (
	maxButtons     = 3
	maxButtonTitle = 20
	processTimeout = 2 * time.Minute
)

// Placeholder texts stored for messages without typed text.
const (
	placeholderImage    = "[תמונה]"
	placeholderDocument = "[מסמך]"
	placeholderAudio    = "[הודעה קולית]"
	placeholderLocation = "[מיקום]"
)

// Handler consumes normalized inbound messages.
type Handler interface {
	HandleInbound(ctx context.Context, msg *entity.InboundMessage)
}

// WhatsAppBot handles WhatsApp messaging via the Graph API
type WhatsAppBot struct {
	log           *slog.Logger
	accessToken   string
	verifyToken   string
	appSecret     string
	phoneNumberID string
	client        *http.Client
	handler       Handler
}

type media struct {
	ID       string `json:"id"`
	Caption  string `json:"caption,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

type reply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Message is a single inbound message of a webhook payload.
type Message struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Image       *media `json:"image,omitempty"`
	Document    *media `json:"document,omitempty"`
	Audio       *media `json:"audio,omitempty"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *reply `json:"button_reply,omitempty"`
		ListReply   *reply `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`
	Button *struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button,omitempty"`
}

// WebhookPayload represents the incoming webhook payload from WhatsApp
type WebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Value struct {
				MessagingProduct string `json:"messaging_product"`
				Metadata         struct {
					DisplayPhoneNumber string `json:"display_phone_number"`
					PhoneNumberID      string `json:"phone_number_id"`
				} `json:"metadata"`
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
					WaID string `json:"wa_id"`
				} `json:"contacts"`
				Messages []Message `json:"messages"`
			} `json:"value"`
			Field string `json:"field"`
		} `json:"changes"`
	} `json:"entry"`
}

// SendMessageRequest represents the request body for sending a message
type SendMessageRequest struct {
	MessagingProduct string          `json:"messaging_product"`
	RecipientType    string          `json:"recipient_type"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Text             *textBody       `json:"text,omitempty"`
	Interactive      *interactiveMsg `json:"interactive,omitempty"`
}

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type interactiveMsg struct {
	Type string `json:"type"`
	Body struct {
		Text string `json:"text"`
	} `json:"body"`
	Action struct {
		Buttons []replyButton `json:"buttons"`
	} `json:"action"`
}

type replyButton struct {
	Type  string `json:"type"`
	Reply reply  `json:"reply"`
}

// NewWhatsAppBot creates a new WhatsApp bot instance
func NewWhatsAppBot(accessToken, verifyToken, appSecret, phoneNumberID string, log *slog.Logger) *WhatsAppBot {
	return &WhatsAppBot{
		log:           log.With(sl.Module("whatsappbot")),
		accessToken:   accessToken,
		verifyToken:   verifyToken,
		appSecret:     appSecret,
		phoneNumberID: phoneNumberID,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

func (b *WhatsAppBot) SetHandler(h Handler) {
	b.handler = h
}

// HandleWebhookVerification handles the GET request for webhook verification
func (b *WhatsAppBot) HandleWebhookVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == b.verifyToken {
		b.log.Info("webhook verified")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
		return
	}

	b.log.Warn("webhook verification failed",
		slog.String("mode", mode),
		slog.Bool("token_match", token == b.verifyToken),
	)
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleWebhook handles incoming webhook POST requests
func (b *WhatsAppBot) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		b.log.Error("failed to read request body", sl.Err(err))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Verify signature if app secret is configured
	if b.appSecret != "" {
		signature := r.Header.Get("X-Hub-Signature-256")
		if !b.verifySignature(body, signature) {
			b.log.Warn("invalid webhook signature")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		b.log.Error("failed to parse webhook payload", sl.Err(err))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	// Always respond with 200 OK to acknowledge receipt
	w.WriteHeader(http.StatusOK)

	messages := ParsePayload(payload)
	if len(messages) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()
		b.dispatch(ctx, messages)
	}()
}

// dispatch hands messages to the handler. Messages of one phone are processed
// in arrival order, different phones in parallel.
func (b *WhatsAppBot) dispatch(ctx context.Context, messages []*entity.InboundMessage) {
	if b.handler == nil {
		b.log.Warn("no handler for inbound messages", slog.Int("count", len(messages)))
		return
	}

	byPhone := make(map[string][]*entity.InboundMessage)
	var order []string
	for _, m := range messages {
		if _, ok := byPhone[m.Phone]; !ok {
			order = append(order, m.Phone)
		}
		byPhone[m.Phone] = append(byPhone[m.Phone], m)
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, phone := range order {
		queue := byPhone[phone]
		g.Go(func() error {
			for _, m := range queue {
				b.markAsRead(gCtx, m.MessageID)
				b.handler.HandleInbound(gCtx, m)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// ParsePayload normalizes every message of a webhook payload.
func ParsePayload(payload WebhookPayload) []*entity.InboundMessage {
	if payload.Object != "whatsapp_business_account" {
		return nil
	}

	var messages []*entity.InboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}

			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}

			for _, message := range change.Value.Messages {
				msg := normalize(message)
				msg.Name = names[message.From]
				messages = append(messages, msg)
			}
		}
	}
	return messages
}

func normalize(m Message) *entity.InboundMessage {
	msg := &entity.InboundMessage{
		ID:        m.ID,
		Phone:     m.From,
		Type:      m.Type,
		MessageID: m.ID,
		Timestamp: m.Timestamp,
		Status:    "received",
		CreatedAt: time.Now(),
	}

	switch m.Type {
	case entity.MessageText:
		if m.Text != nil {
			msg.Text = m.Text.Body
		}
	case entity.MessageImage:
		msg.Text = placeholderImage
		if m.Image != nil {
			msg.MediaID = m.Image.ID
			msg.Caption = m.Image.Caption
		}
	case entity.MessageDocument:
		msg.Text = placeholderDocument
		if m.Document != nil {
			msg.MediaID = m.Document.ID
			msg.Caption = m.Document.Caption
		}
	case entity.MessageAudio:
		msg.Text = placeholderAudio
		if m.Audio != nil {
			msg.MediaID = m.Audio.ID
		}
	case entity.MessageInteractive:
		switch {
		case m.Interactive == nil:
			msg.Text = "[interactive]"
		case m.Interactive.ButtonReply != nil:
			msg.Text = m.Interactive.ButtonReply.ID
			msg.Caption = m.Interactive.ButtonReply.Title
		case m.Interactive.ListReply != nil:
			msg.Text = m.Interactive.ListReply.ID
			msg.Caption = m.Interactive.ListReply.Title
		default:
			msg.Text = "[interactive:" + m.Interactive.Type + "]"
		}
	case "button":
		// quick reply of a template message
		msg.Type = entity.MessageInteractive
		if m.Button != nil {
			msg.Text = m.Button.Payload
			msg.Caption = m.Button.Text
		}
	case entity.MessageLocation:
		msg.Text = placeholderLocation
	default:
		msg.Text = "[" + m.Type + "]"
	}
	return msg
}

// SendMessage sends a text message to the specified recipient
func (b *WhatsAppBot) SendMessage(ctx context.Context, recipientPhone, text string) error {
	reqBody := SendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               recipientPhone,
		Type:             "text",
		Text:             &textBody{Body: text},
	}
	if err := b.post(ctx, reqBody); err != nil {
		return err
	}

	b.log.Debug("message sent", sl.Phone(recipientPhone))
	return nil
}

// SendButtons sends an interactive reply-button message. Only the first
// three buttons are sent and titles are cut to twenty characters.
func (b *WhatsAppBot) SendButtons(ctx context.Context, recipientPhone, text string, buttons []ButtonSpec) error {
	im := &interactiveMsg{Type: "button"}
	im.Body.Text = text
	for i, btn := range buttons {
		if i == maxButtons {
			break
		}
		im.Action.Buttons = append(im.Action.Buttons, replyButton{
			Type:  "reply",
			Reply: reply{ID: btn.ID, Title: truncate(btn.Title, maxButtonTitle)},
		})
	}

	reqBody := SendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               recipientPhone,
		Type:             "interactive",
		Interactive:      im,
	}
	if err := b.post(ctx, reqBody); err != nil {
		return err
	}

	b.log.Debug("buttons sent", sl.Phone(recipientPhone), slog.Int("buttons", len(im.Action.Buttons)))
	return nil
}

// ButtonSpec is a reply button to send.
type ButtonSpec struct {
	ID    string
	Title string
}

// markAsRead shows the blue checkmarks for a received message.
func (b *WhatsAppBot) markAsRead(ctx context.Context, messageID string) {
	if messageID == "" {
		return
	}
	body := map[string]string{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}
	if err := b.post(ctx, body); err != nil {
		b.log.Debug("mark as read", slog.String("message_id", messageID), sl.Err(err))
	}
}

func (b *WhatsAppBot) post(ctx context.Context, body any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", graphAPIURL, b.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.accessToken)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// DownloadMedia fetches an inbound attachment in two steps: the media id
// resolves to a short-lived URL which is then downloaded with the same token.
func (b *WhatsAppBot) DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	var meta struct {
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	}

	data, _, err := b.get(ctx, fmt.Sprintf("%s/%s", graphAPIURL, mediaID))
	if err != nil {
		return nil, "", fmt.Errorf("media metadata: %w", err)
	}
	if err = json.Unmarshal(data, &meta); err != nil {
		return nil, "", fmt.Errorf("decode media metadata: %w", err)
	}
	if meta.URL == "" {
		return nil, "", fmt.Errorf("media %s has no url", mediaID)
	}

	content, contentType, err := b.get(ctx, meta.URL)
	if err != nil {
		return nil, "", fmt.Errorf("media download: %w", err)
	}
	if meta.MimeType != "" {
		contentType = meta.MimeType
	}
	return content, contentType, nil
}

func (b *WhatsAppBot) get(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+b.accessToken)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(data))
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// verifySignature verifies the X-Hub-Signature-256 header
func (b *WhatsAppBot) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}

	// Signature format: "sha256=<hex_signature>"
	if len(signature) < 8 || signature[:7] != "sha256=" {
		return false
	}

	expectedSig := signature[7:]
	mac := hmac.New(sha256.New, []byte(b.appSecret))
	mac.Write(body)
	actualSig := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expectedSig), []byte(actualSig))
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
