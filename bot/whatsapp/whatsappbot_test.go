package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"FacilityBot/entity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

type graphServer struct {
	mu       sync.Mutex
	requests []map[string]any
	srv      *httptest.Server
}

func newGraphServer(t *testing.T) *graphServer {
	t.Helper()
	g := &graphServer{}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/messages"):
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			g.mu.Lock()
			g.requests = append(g.requests, body)
			g.mu.Unlock()
			_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.out"}]}`))
		case r.URL.Path == "/media-1":
			_, _ = w.Write([]byte(`{"url":"` + g.srv.URL + `/files/media-1","mime_type":"image/jpeg"}`))
		case r.URL.Path == "/files/media-1":
			_, _ = w.Write([]byte("jpeg-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	old := graphAPIURL
	graphAPIURL = g.srv.URL
	t.Cleanup(func() {
		graphAPIURL = old
		g.srv.Close()
	})
	return g
}

func (g *graphServer) sent() []map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]map[string]any(nil), g.requests...)
}

const payload = `{
  "object": "whatsapp_business_account",
  "entry": [{"id": "1", "changes": [{"field": "messages", "value": {
    "contacts": [{"wa_id": "972500000001", "profile": {"name": "דנה"}}],
    "messages": [
      {"from": "972500000001", "id": "wamid.1", "timestamp": "1", "type": "text", "text": {"body": "יש נזילה"}},
      {"from": "972500000001", "id": "wamid.2", "timestamp": "2", "type": "interactive",
       "interactive": {"type": "button_reply", "button_reply": {"id": "intent_fault", "title": "לדווח על תקלה"}}},
      {"from": "972500000002", "id": "wamid.3", "timestamp": "3", "type": "image", "image": {"id": "media-1", "caption": "המזגן"}},
      {"from": "972500000002", "id": "wamid.4", "timestamp": "4", "type": "audio", "audio": {"id": "media-2"}},
      {"from": "972500000002", "id": "wamid.5", "timestamp": "5", "type": "location"},
      {"from": "972500000002", "id": "wamid.6", "timestamp": "6", "type": "sticker"}
    ]}}]}]
}`

func TestParsePayload(t *testing.T) {
	var p WebhookPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		t.Fatal(err)
	}
	msgs := ParsePayload(p)
	if len(msgs) != 6 {
		t.Fatalf("parsed %d messages", len(msgs))
	}

	tests := []struct {
		idx                       int
		typ, text, caption, media string
	}{
		{0, entity.MessageText, "יש נזילה", "", ""},
		{1, entity.MessageInteractive, "intent_fault", "לדווח על תקלה", ""},
		{2, entity.MessageImage, placeholderImage, "המזגן", "media-1"},
		{3, entity.MessageAudio, placeholderAudio, "", "media-2"},
		{4, entity.MessageLocation, placeholderLocation, "", ""},
		{5, "sticker", "[sticker]", "", ""},
	}
	for _, tt := range tests {
		m := msgs[tt.idx]
		if m.Type != tt.typ || m.Text != tt.text || m.Caption != tt.caption || m.MediaID != tt.media {
			t.Errorf("message %d = %+v", tt.idx, m)
		}
	}
	if msgs[0].Name != "דנה" || msgs[2].Name != "" {
		t.Errorf("names = %q, %q", msgs[0].Name, msgs[2].Name)
	}
}

func TestParsePayloadIgnoresOtherObjects(t *testing.T) {
	if msgs := ParsePayload(WebhookPayload{Object: "page"}); msgs != nil {
		t.Errorf("parsed %d messages", len(msgs))
	}
}

func TestWebhookVerification(t *testing.T) {
	b := NewWhatsAppBot("token", "verify", "", "123", testLogger())

	rec := httptest.NewRecorder()
	b.HandleWebhookVerification(rec, httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=verify&hub.challenge=42", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "42" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	b.HandleWebhookVerification(rec, httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=42", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("got %d, want 403", rec.Code)
	}
}

type recordingHandler struct {
	mu   sync.Mutex
	msgs []*entity.InboundMessage
	done chan struct{}
	want int
}

func (h *recordingHandler) HandleInbound(_ context.Context, m *entity.InboundMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, m)
	if len(h.msgs) == h.want {
		close(h.done)
	}
}

func TestHandleWebhookDispatches(t *testing.T) {
	graph := newGraphServer(t)
	b := NewWhatsAppBot("token", "verify", "secret", "123", testLogger())
	h := &recordingHandler{done: make(chan struct{}), want: 6}
	b.SetHandler(h)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set("X-Hub-Signature-256", sign("secret", payload))
	rec := httptest.NewRecorder()
	b.HandleWebhook(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler not called for every message")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	var first []string
	for _, m := range h.msgs {
		if m.Phone == "972500000001" {
			first = append(first, m.MessageID)
		}
	}
	if len(first) != 2 || first[0] != "wamid.1" || first[1] != "wamid.2" {
		t.Errorf("per-phone order = %v", first)
	}

	reads := 0
	for _, r := range graph.sent() {
		if r["status"] == "read" {
			reads++
		}
	}
	if reads != 6 {
		t.Errorf("marked %d messages read", reads)
	}
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	b := NewWhatsAppBot("token", "verify", "secret", "123", testLogger())
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set("X-Hub-Signature-256", sign("other", payload))
	rec := httptest.NewRecorder()
	b.HandleWebhook(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestHandleWebhookRejectsMalformedJSON(t *testing.T) {
	b := NewWhatsAppBot("token", "verify", "", "123", testLogger())
	rec := httptest.NewRecorder()
	b.HandleWebhook(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSendButtons(t *testing.T) {
	graph := newGraphServer(t)
	b := NewWhatsAppBot("token", "verify", "", "123", testLogger())

	err := b.SendButtons(context.Background(), "972500000001", "מה תרצה לעשות?", []ButtonSpec{
		{ID: "a", Title: "כותרת ארוכה מאוד מעבר לעשרים תווים"},
		{ID: "b", Title: "ב"},
		{ID: "c", Title: "ג"},
		{ID: "d", Title: "ד"},
	})
	if err != nil {
		t.Fatalf("SendButtons() error = %v", err)
	}

	req := graph.sent()[0]
	if req["type"] != "interactive" {
		t.Fatalf("type = %v", req["type"])
	}
	action := req["interactive"].(map[string]any)["action"].(map[string]any)
	buttons := action["buttons"].([]any)
	if len(buttons) != 3 {
		t.Errorf("sent %d buttons, want 3", len(buttons))
	}
	title := buttons[0].(map[string]any)["reply"].(map[string]any)["title"].(string)
	if len([]rune(title)) != 20 {
		t.Errorf("title %q has %d runes", title, len([]rune(title)))
	}
}

func TestSendMessage(t *testing.T) {
	graph := newGraphServer(t)
	b := NewWhatsAppBot("token", "verify", "", "123", testLogger())

	if err := b.SendMessage(context.Background(), "972500000001", "שלום"); err != nil {
		t.Fatal(err)
	}
	req := graph.sent()[0]
	if req["to"] != "972500000001" || req["text"].(map[string]any)["body"] != "שלום" {
		t.Errorf("request = %v", req)
	}

	bad := NewWhatsAppBot("wrong", "verify", "", "123", testLogger())
	if err := bad.SendMessage(context.Background(), "972500000001", "x"); err == nil {
		t.Error("expected API error")
	}
}

func TestDownloadMedia(t *testing.T) {
	newGraphServer(t)
	b := NewWhatsAppBot("token", "verify", "", "123", testLogger())

	data, mime, err := b.DownloadMedia(context.Background(), "media-1")
	if err != nil {
		t.Fatalf("DownloadMedia() error = %v", err)
	}
	if string(data) != "jpeg-bytes" || mime != "image/jpeg" {
		t.Errorf("got %q %q", data, mime)
	}

	if _, _, err = b.DownloadMedia(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown media")
	}
}
