package chat

import (
	"time"
)

// Well-known session field names written by scripts and completion actions.
const (
	FieldDeviceNumber    = "device_number"
	FieldDescription     = "description"
	FieldLocation        = "location"
	FieldIsSystemDown    = "is_system_down"
	FieldCustomerNumber  = "customer_number"
	FieldCustomerName    = "customer_name"
	FieldCustomerMessage = "customer_message"
)

// auditRetention keeps completed sessions readable after the conversation ends.
const auditRetention = 7 * 24 * time.Hour

// Session is the persisted conversation state for one phone number.
type Session struct {
	Phone             string            `json:"phone" bson:"phone"`
	SessionID         string            `json:"session_id" bson:"session_id"`
	ScriptID          string            `json:"script_id" bson:"script_id"`
	Name              string            `json:"name" bson:"name"`
	Step              StepID            `json:"step" bson:"step"`
	CreatedAt         time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at" bson:"updated_at"`
	ExpiresAt         int64             `json:"expires_at" bson:"expires_at"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	Fields            map[string]string `json:"fields" bson:"fields"`
	OriginalText      string            `json:"original_text" bson:"original_text"`
	OriginalMessageID string            `json:"original_message_id" bson:"original_message_id"`
	OriginalMediaID   string            `json:"original_media_id" bson:"original_media_id"`
	LLMResult         map[string]any    `json:"llm_result" bson:"llm_result"`
	ParsedData        map[string]string `json:"parsed_data" bson:"parsed_data"`
	Version           int64             `json:"version" bson:"version"`
}

// Get retrieves a collected field, empty when missing.
func (s *Session) Get(key string) string {
	if s.Fields == nil {
		return ""
	}
	return s.Fields[key]
}

// Set stores a collected field.
func (s *Session) Set(key, value string) {
	if s.Fields == nil {
		s.Fields = make(map[string]string)
	}
	s.Fields[key] = value
}

// Merge copies non-empty values into the collected fields.
func (s *Session) Merge(data map[string]string) {
	for k, v := range data {
		if v != "" {
			s.Set(k, v)
		}
	}
}

// CustomerName prefers the identified customer over the chat profile name.
func (s *Session) CustomerName() string {
	if name := s.Get(FieldCustomerName); name != "" {
		return name
	}
	return s.Name
}

// Expired reports whether expires_at has passed.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt <= now.Unix()
}

// Active reports whether the session can still accept input. A nil script
// means the definition is unavailable, in which case only expiry and the
// completion mark count.
func (s *Session) Active(script *Script, now time.Time) bool {
	if s.Step == "" || s.CompletedAt != nil || s.Expired(now) {
		return false
	}
	if script != nil && script.IsTerminal(s.Step) {
		return false
	}
	return true
}

func (s *Session) touch(now time.Time, ttl time.Duration) {
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(ttl).Unix()
}

func (s *Session) complete(step StepID, now time.Time) {
	s.Step = step
	s.CompletedAt = &now
	s.touch(now, auditRetention)
}
