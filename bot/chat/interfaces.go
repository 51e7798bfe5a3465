package chat

import (
	"context"
	"errors"

	"FacilityBot/entity"
)

var (
	ErrScriptNotFound  = errors.New("script not found")
	ErrSessionConflict = errors.New("session was modified concurrently")
)

// ScriptStore returns script definitions by identifier. A missing script is
// reported as nil, nil.
type ScriptStore interface {
	GetScript(ctx context.Context, scriptID string) (*Script, error)
}

// SessionStore persists one session per phone number. Save must reject a
// write whose Version does not match the stored one with ErrSessionConflict.
type SessionStore interface {
	LoadSession(ctx context.Context, phone string) (*Session, error)
	SaveSession(ctx context.Context, session *Session) error
	DeleteSession(ctx context.Context, phone string) error
}

// EquipmentLookup finds a device by serial number. Not found is nil, nil.
type EquipmentLookup interface {
	FetchBySerial(ctx context.Context, serial string) (*entity.Equipment, error)
}

// CustomerLookup resolves identity from earlier interactions of a phone.
type CustomerLookup interface {
	LookupByPhone(ctx context.Context, phone string) (entity.CustomerInfo, error)
}

// CompletionAction runs once when a session reaches a terminal step.
type CompletionAction interface {
	Complete(ctx context.Context, session *Session, step StepID) error
}

// CompletionFunc adapts a function to CompletionAction.
type CompletionFunc func(ctx context.Context, session *Session, step StepID) error

func (f CompletionFunc) Complete(ctx context.Context, session *Session, step StepID) error {
	return f(ctx, session, step)
}

// Metrics receives engine counters.
type Metrics interface {
	SessionStarted(scriptID string)
	StepAdvanced(scriptID string, step StepID)
	InvalidInput(scriptID string, step StepID)
	SessionCompleted(scriptID, action string)
	ActionFailed(action string)
}

type nopMetrics struct{}

func (nopMetrics) SessionStarted(string)           {}
func (nopMetrics) StepAdvanced(string, StepID)     {}
func (nopMetrics) InvalidInput(string, StepID)     {}
func (nopMetrics) SessionCompleted(string, string) {}
func (nopMetrics) ActionFailed(string)             {}
