package gpt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"FacilityBot/entity"
	"FacilityBot/internal/lib/sl"
)

const (
	DefaultModel   = openai.GPT4o
	requestTimeout = 30 * time.Second
	maxTokens      = 500
)

const systemPrompt = `אתה מנתח קריאות שירות של חברה לאחזקת מבנים ומתקני חניה.
תפקידך לנתח הודעות ותמונות שמגיעות מלקוחות דרך WhatsApp ולזהות קריאות שירות.

עליך להחזיר תמיד JSON בלבד (בלי טקסט נוסף) עם המבנה הבא:
{
  "is_service_call": true/false,
  "issue_type": "סוג התקלה (נזילה/שבר/תקלת חשמל/בעיית חניה/תחזוקה שוטפת/אחר)",
  "description": "תיאור קצר של הבעיה",
  "urgency": "low/medium/high/critical",
  "location": "מיקום אם ניתן לזהות מהתמונה או הטקסט",
  "device_number": "מספר מכשיר אם הלקוח ציין אותו",
  "is_system_down": true/false,
  "summary": "תמצית קצרה בעברית לשליחה חזרה ללקוח"
}

כללים:
- אם התמונה או ההודעה מתארת תקלה - סמן is_service_call=true
- אם זו שאלה כללית או הודעה שלא קשורה לתקלה - סמן is_service_call=false
- is_system_down=true רק אם הלקוח מציין שהמערכת מושבתת לחלוטין
- urgency: low=תחזוקה שוטפת, medium=תקלה לא דחופה, high=תקלה שמשפיעה על שימוש, critical=סכנה בטיחותית
- החזר JSON תקין בלבד, בלי markdown ובלי backticks`

const captionPrefix = "הודעה מהלקוח: "

// MediaSource downloads attachments referenced by inbound messages.
type MediaSource interface {
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error)
}

// Classifier asks the model what an inbound message is about.
type Classifier struct {
	client *openai.Client
	model  string
	media  MediaSource
	log    *slog.Logger
}

func NewClassifier(apiKey, model string, logger *slog.Logger) *Classifier {
	return NewClassifierWithConfig(openai.DefaultConfig(apiKey), model, logger)
}

func NewClassifierWithConfig(conf openai.ClientConfig, model string, logger *slog.Logger) *Classifier {
	if model == "" {
		model = DefaultModel
	}
	return &Classifier{
		client: openai.NewClientWithConfig(conf),
		model:  model,
		log:    logger.With(sl.Module("classifier")),
	}
}

func (c *Classifier) SetMediaSource(media MediaSource) {
	c.media = media
}

// Classify never fails: a message it cannot analyze yields nil.
func (c *Classifier) Classify(ctx context.Context, msg *entity.InboundMessage) *entity.Classification {
	if msg == nil {
		return nil
	}
	log := c.log.With(sl.Phone(msg.Phone), slog.String("type", msg.Type))

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var (
		result *entity.Classification
		err    error
	)
	switch {
	case msg.Type == entity.MessageImage && msg.MediaID != "":
		result, err = c.classifyImage(ctx, msg.MediaID, msg.Caption)
	case msg.Type == entity.MessageAudio && msg.MediaID != "":
		result, err = c.classifyAudio(ctx, msg.MediaID)
	case msg.IsFreeText() && strings.TrimSpace(msg.Text) != "":
		result, err = c.ClassifyText(ctx, msg.Text)
	case msg.Caption != "":
		result, err = c.ClassifyText(ctx, msg.Caption)
	default:
		log.Debug("nothing to classify")
		return nil
	}
	if err != nil {
		log.Error("classify message", sl.Err(err))
		return nil
	}

	log.With(
		slog.Bool("service_call", result.IsServiceCall),
		slog.String("issue_type", result.IssueType),
		slog.String("urgency", result.Urgency),
	).Info("message classified")
	return result
}

func (c *Classifier) ClassifyText(ctx context.Context, text string) (*entity.Classification, error) {
	return c.complete(ctx, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})
}

func (c *Classifier) classifyImage(ctx context.Context, mediaID, caption string) (*entity.Classification, error) {
	if c.media == nil {
		return nil, fmt.Errorf("no media source")
	}
	data, mime, err := c.media.DownloadMedia(ctx, mediaID)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	if mime == "" {
		mime = "image/jpeg"
	}

	var parts []openai.ChatMessagePart
	if caption != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: captionPrefix + caption,
		})
	}
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{
			URL:    fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)),
			Detail: openai.ImageURLDetailAuto,
		},
	})

	return c.complete(ctx, openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	})
}

func (c *Classifier) classifyAudio(ctx context.Context, mediaID string) (*entity.Classification, error) {
	if c.media == nil {
		return nil, fmt.Errorf("no media source")
	}
	data, mime, err := c.media.DownloadMedia(ctx, mediaID)
	if err != nil {
		return nil, fmt.Errorf("download audio: %w", err)
	}

	text, err := c.Transcribe(ctx, data, audioFileName(mime))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty transcription")
	}

	result, err := c.ClassifyText(ctx, text)
	if err != nil {
		return nil, err
	}
	result.Transcript = text
	return result, nil
}

func (c *Classifier) complete(ctx context.Context, user openai.ChatCompletionMessage) (*entity.Classification, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			user,
		},
		MaxTokens: maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: no choices")
	}
	return ParseClassification(resp.Choices[0].Message.Content)
}

// ParseClassification decodes a model reply, tolerating markdown fences.
func ParseClassification(raw string) (*entity.Classification, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		var kept []string
		for _, line := range strings.Split(text, "\n") {
			if !strings.HasPrefix(strings.TrimSpace(line), "```") {
				kept = append(kept, line)
			}
		}
		text = strings.TrimSpace(strings.Join(kept, "\n"))
	}

	var result entity.Classification
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}
	switch result.Urgency {
	case entity.UrgencyLow, entity.UrgencyMedium, entity.UrgencyHigh, entity.UrgencyCritical:
	default:
		result.Urgency = ""
	}
	return &result, nil
}
