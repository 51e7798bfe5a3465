package entity

import "time"

const (
	EventSessionStarted   = "session_started"
	EventSessionAdvanced  = "session_advanced"
	EventSessionCompleted = "session_completed"
	EventSessionCancelled = "session_cancelled"
	EventInvalidInput     = "invalid_input"
)

// SessionEvent describes a bot session transition for operator dashboards.
type SessionEvent struct {
	Type      string    `json:"type"`
	Phone     string    `json:"phone"`
	SessionID string    `json:"session_id"`
	ScriptID  string    `json:"script_id"`
	Step      string    `json:"step"`
	Action    string    `json:"action,omitempty"`
	Time      time.Time `json:"time"`
}
