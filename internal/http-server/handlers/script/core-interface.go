package script

import (
	"context"

	"FacilityBot/bot/chat"
)

type Core interface {
	ListScripts(ctx context.Context) ([]*chat.Script, error)
	GetScript(ctx context.Context, scriptID string) (*chat.Script, error)
	SaveScript(ctx context.Context, script *chat.Script) ([]string, error)
	DeleteScript(ctx context.Context, scriptID string) error
	InvalidateScript(scriptID string)
}
