package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"FacilityBot/internal/lib/cache"
	"FacilityBot/internal/lib/sl"
)

const DefaultScriptCacheTTL = 5 * time.Minute

// ScriptRepository defines the database operations for scripts.
type ScriptRepository interface {
	GetScript(ctx context.Context, scriptID string) (*Script, error)
	SaveScript(ctx context.Context, script *Script) error
	DeleteScript(ctx context.Context, scriptID string) error
	ListScripts(ctx context.Context) ([]*Script, error)
}

// CachedScriptStore validates scripts loaded from the repository and keeps
// them in memory for a bounded time. Malformed documents are quarantined:
// they are logged and reported as not found.
type CachedScriptStore struct {
	repo  ScriptRepository
	cache *cache.InMemory[*Script]
	log   *slog.Logger
}

func NewCachedScriptStore(repo ScriptRepository, ttl time.Duration, log *slog.Logger) *CachedScriptStore {
	if ttl <= 0 {
		ttl = DefaultScriptCacheTTL
	}
	return &CachedScriptStore{
		repo:  repo,
		cache: cache.New[*Script](ttl),
		log:   log.With(sl.Module("scripts")),
	}
}

func (s *CachedScriptStore) GetScript(ctx context.Context, scriptID string) (*Script, error) {
	if script, ok := s.cache.Get(scriptID); ok {
		return script, nil
	}

	script, err := s.repo.GetScript(ctx, scriptID)
	if err != nil {
		return nil, fmt.Errorf("load script %s: %w", scriptID, err)
	}
	if script == nil {
		return nil, nil
	}

	if err = script.Validate(); err != nil {
		s.log.Error("script quarantined",
			slog.String("script_id", scriptID),
			sl.Err(err),
		)
		return nil, nil
	}
	for _, d := range script.Defects() {
		s.log.Warn("script defect",
			slog.String("script_id", scriptID),
			slog.String("defect", d),
		)
	}

	s.cache.Set(scriptID, script)
	return script, nil
}

// SaveScript validates and stores a script, dropping any cached copy.
func (s *CachedScriptStore) SaveScript(ctx context.Context, script *Script) error {
	if err := script.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if script.CreatedAt.IsZero() {
		script.CreatedAt = now
	}
	script.UpdatedAt = now

	if err := s.repo.SaveScript(ctx, script); err != nil {
		return fmt.Errorf("save script %s: %w", script.ScriptID, err)
	}
	s.Invalidate(script.ScriptID)
	return nil
}

func (s *CachedScriptStore) DeleteScript(ctx context.Context, scriptID string) error {
	if err := s.repo.DeleteScript(ctx, scriptID); err != nil {
		return fmt.Errorf("delete script %s: %w", scriptID, err)
	}
	s.Invalidate(scriptID)
	return nil
}

func (s *CachedScriptStore) ListScripts(ctx context.Context) ([]*Script, error) {
	return s.repo.ListScripts(ctx)
}

// Invalidate drops one cached script, or all of them when scriptID is empty.
func (s *CachedScriptStore) Invalidate(scriptID string) {
	if scriptID == "" {
		s.cache.Clear()
		return
	}
	s.cache.Delete(scriptID)
}
