package core

import (
	"context"

	"FacilityBot/bot/chat"
)

// GetActiveSession returns the live session of phone, nil when there is none.
func (c *Core) GetActiveSession(ctx context.Context, phone string) (*chat.Session, error) {
	if c.engine == nil {
		return nil, errNoEngine
	}
	return c.engine.GetActiveSession(ctx, phone)
}

// StartSession opens a new conversation for phone and returns its first message.
func (c *Core) StartSession(ctx context.Context, phone, name string, h chat.Handoff) chat.Reply {
	if c.engine == nil {
		c.log.Error("engine not set, session not started")
		return chat.Reply{Text: textUnavailable}
	}
	return c.engine.StartSession(ctx, phone, name, h)
}

// ProcessMessage feeds one input to the live session of phone. A nil reply
// means there is no live session.
func (c *Core) ProcessMessage(ctx context.Context, phone string, in chat.Input) *chat.Reply {
	if c.engine == nil {
		return nil
	}
	return c.engine.ProcessMessage(ctx, phone, in)
}
