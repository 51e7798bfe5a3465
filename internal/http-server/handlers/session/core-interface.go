package session

import (
	"context"

	"FacilityBot/bot/chat"
)

type Core interface {
	ListSessions(ctx context.Context, limit int64) ([]*chat.Session, error)
	GetSession(ctx context.Context, phone string) (*chat.Session, error)
	CancelSession(ctx context.Context, phone string) (bool, error)
}
