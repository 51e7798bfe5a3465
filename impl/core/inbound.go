package core

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"FacilityBot/bot/chat"
	"FacilityBot/entity"
	"FacilityBot/internal/lib/sl"
)

const (
	textCancelled   = "הפנייה בוטלה. ניתן לפנות אלינו שוב בכל עת."
	textUnavailable = "אירעה תקלה זמנית, אנא נסה שוב בעוד מספר דקות."
)

const (
	routeSession = "session"
	routeCancel  = "cancel"
	routeIntake  = "intake"
	routeError   = "error"
)

var cancelKeywords = map[string]bool{
	"ביטול":  true,
	"בטל":    true,
	"cancel": true,
}

// HandleInbound routes one message from the messaging channel. A message
// for a phone with a live session advances it; a cancel keyword ends it;
// anything else is treated as a new request and starts a session.
// Messages of one phone are handled one at a time.
func (c *Core) HandleInbound(ctx context.Context, msg *entity.InboundMessage) {
	log := c.log.With(sl.Phone(msg.Phone), slog.String("type", msg.Type))

	if c.engine == nil {
		log.Error("engine not set, message dropped")
		return
	}

	c.locks.Lock(msg.Phone)
	defer c.locks.Unlock(msg.Phone)

	session, err := c.GetActiveSession(ctx, msg.Phone)
	if err != nil {
		log.Error("load active session", sl.Err(err))
		c.count(msg, routeError)
		c.reply(ctx, msg.Phone, chat.Reply{Text: textUnavailable})
		return
	}

	if session != nil {
		if isCancel(msg) {
			c.cancel(ctx, log, msg)
			return
		}
		if reply := c.ProcessMessage(ctx, msg.Phone, inputOf(msg)); reply != nil {
			c.count(msg, routeSession)
			c.reply(ctx, msg.Phone, *reply)
			return
		}
		// expired between the check and the update
		log.Debug("session ended before processing, starting a new one")
	}

	c.intake(ctx, log, msg)
}

func (c *Core) cancel(ctx context.Context, log *slog.Logger, msg *entity.InboundMessage) {
	c.count(msg, routeCancel)
	cancelled, err := c.engine.CancelSession(ctx, msg.Phone)
	if err != nil {
		log.Error("cancel session", sl.Err(err))
		c.reply(ctx, msg.Phone, chat.Reply{Text: textUnavailable})
		return
	}
	log.Info("session cancelled by user", slog.Bool("cancelled", cancelled))
	c.reply(ctx, msg.Phone, chat.Reply{Text: textCancelled})
}

func (c *Core) intake(ctx context.Context, log *slog.Logger, msg *entity.InboundMessage) {
	c.count(msg, routeIntake)

	if c.repo != nil {
		if err := c.repo.SaveInboundMessage(ctx, msg); err != nil {
			log.Warn("save inbound message", sl.Err(err))
		}
	}

	var cls *entity.Classification
	if c.classifier != nil {
		start := time.Now()
		cls = c.classifier.Classify(ctx, msg)
		if c.metrics != nil {
			c.metrics.ObserveClassify(time.Since(start))
		}
	}

	reply := c.StartSession(ctx, msg.Phone, msg.Name, Handoff(msg, cls))
	c.reply(ctx, msg.Phone, reply)
}

// Handoff builds the context a new session starts from. Classification
// guesses only fill fields the classifier actually produced.
func Handoff(msg *entity.InboundMessage, cls *entity.Classification) chat.Handoff {
	h := chat.Handoff{
		MessageID:    msg.MessageID,
		MediaID:      msg.MediaID,
		OriginalText: originalText(msg, cls),
		LLMResult:    cls.AsMap(),
		ParsedData:   make(map[string]string),
	}
	if cls == nil {
		return h
	}

	put := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			h.ParsedData[key] = value
		}
	}
	put(chat.FieldDescription, cls.Description)
	put(chat.FieldLocation, cls.Location)
	put(chat.FieldDeviceNumber, cls.DeviceNumber)
	if cls.IsSystemDown {
		put(chat.FieldIsSystemDown, "yes")
	}
	return h
}

func originalText(msg *entity.InboundMessage, cls *entity.Classification) string {
	switch {
	case cls != nil && cls.Transcript != "":
		return cls.Transcript
	case msg.Caption != "" && !msg.IsFreeText():
		return msg.Caption
	}
	return msg.Text
}

func inputOf(msg *entity.InboundMessage) chat.Input {
	return chat.Input{
		Kind:      chat.ParseInputKind(msg.Type),
		Text:      msg.Text,
		Caption:   msg.Caption,
		MediaID:   msg.MediaID,
		MessageID: msg.MessageID,
	}
}

func isCancel(msg *entity.InboundMessage) bool {
	if msg.Type != entity.MessageText {
		return false
	}
	return cancelKeywords[strings.ToLower(strings.TrimSpace(msg.Text))]
}

func (c *Core) reply(ctx context.Context, phone string, r chat.Reply) {
	if c.messenger == nil || r.Text == "" {
		return
	}
	if err := r.Send(ctx, c.messenger, phone); err != nil {
		c.log.Error("send reply", sl.Phone(phone), sl.Err(err))
	}
}

func (c *Core) count(msg *entity.InboundMessage, route string) {
	if c.metrics != nil {
		c.metrics.InboundMessage(msg.Type, route)
	}
}
