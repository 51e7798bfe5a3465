package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"FacilityBot/bot/chat"
	"FacilityBot/entity"
)

const adminUser = "admin"

var (
	errNoRepository = errors.New("repository is not set")
	errNoScripts    = errors.New("script store is not set")
	errNoEngine     = errors.New("engine is not set")
)

// AuthenticateByToken resolves an operator API key: the configured master
// key first, then keys issued through GenerateApiKey.
func (c *Core) AuthenticateByToken(token string) (*entity.UserAuth, error) {
	if c.authKey != "" && token == c.authKey {
		return &entity.UserAuth{Username: adminUser, Token: token}, nil
	}

	c.mu.RLock()
	username, ok := c.keys[token]
	c.mu.RUnlock()
	if ok {
		return &entity.UserAuth{Username: username, Token: token}, nil
	}

	if c.keyStore == nil {
		return nil, fmt.Errorf("invalid api key")
	}
	username, err := c.keyStore.CheckApiKey(token)
	if err != nil {
		return nil, fmt.Errorf("check api key: %w", err)
	}

	c.mu.Lock()
	c.keys[token] = username
	c.mu.Unlock()
	return &entity.UserAuth{Username: username, Token: token}, nil
}

// ValidateToken authenticates dashboard sockets with the same keys.
func (c *Core) ValidateToken(token string) (string, error) {
	user, err := c.AuthenticateByToken(token)
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

func (c *Core) GenerateApiKey(username string) (string, error) {
	if c.keyStore == nil {
		return "", fmt.Errorf("api keys are not supported by the configured storage")
	}

	apiKey, err := c.keyStore.GenerateApiKey(username)
	if err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}

	c.mu.Lock()
	c.keys[apiKey] = username
	c.mu.Unlock()
	return apiKey, nil
}

func (c *Core) ListScripts(ctx context.Context) ([]*chat.Script, error) {
	if c.scripts == nil {
		return nil, errNoScripts
	}
	return c.scripts.ListScripts(ctx)
}

func (c *Core) GetScript(ctx context.Context, scriptID string) (*chat.Script, error) {
	if c.scripts == nil {
		return nil, errNoScripts
	}
	return c.scripts.GetScript(ctx, scriptID)
}

// SaveScript stores a script and returns the authoring defects the engine
// will tolerate at runtime.
func (c *Core) SaveScript(ctx context.Context, script *chat.Script) ([]string, error) {
	if c.scripts == nil {
		return nil, errNoScripts
	}
	if err := c.scripts.SaveScript(ctx, script); err != nil {
		return nil, err
	}
	defects := script.Defects()
	for _, d := range defects {
		c.log.Warn("script defect", slog.String("script_id", script.ScriptID), slog.String("defect", d))
	}
	return defects, nil
}

func (c *Core) DeleteScript(ctx context.Context, scriptID string) error {
	if c.scripts == nil {
		return errNoScripts
	}
	return c.scripts.DeleteScript(ctx, scriptID)
}

func (c *Core) InvalidateScript(scriptID string) {
	if c.scripts != nil {
		c.scripts.Invalidate(scriptID)
	}
}

func (c *Core) GetSession(ctx context.Context, phone string) (*chat.Session, error) {
	return c.GetActiveSession(ctx, phone)
}

func (c *Core) CancelSession(ctx context.Context, phone string) (bool, error) {
	if c.engine == nil {
		return false, errNoEngine
	}
	c.locks.Lock(phone)
	defer c.locks.Unlock(phone)
	return c.engine.CancelSession(ctx, phone)
}

func (c *Core) ListSessions(ctx context.Context, limit int64) ([]*chat.Session, error) {
	if c.repo == nil {
		return nil, errNoRepository
	}
	return c.repo.ListSessions(ctx, limit)
}

func (c *Core) ListServiceCalls(ctx context.Context, filter entity.ServiceCallFilter) ([]*entity.ServiceCall, error) {
	if c.repo == nil {
		return nil, errNoRepository
	}
	return c.repo.ListServiceCalls(ctx, filter)
}

func (c *Core) ListMessages(ctx context.Context, phone string, limit int64) ([]*entity.InboundMessage, error) {
	if c.repo == nil {
		return nil, errNoRepository
	}
	return c.repo.ListMessages(ctx, phone, limit)
}
