package entity

// Classification is the LLM's structured guess about an inbound message.
// Every field may be empty or wrong.
type Classification struct {
	IsServiceCall bool   `json:"is_service_call"`
	IssueType     string `json:"issue_type"`
	Description   string `json:"description"`
	Urgency       string `json:"urgency"`
	Location      string `json:"location"`
	DeviceNumber  string `json:"device_number"`
	IsSystemDown  bool   `json:"is_system_down"`
	Summary       string `json:"summary"`
	// Transcript is set when the message was a voice note.
	Transcript string `json:"transcript,omitempty"`
}

// AsMap flattens the classification for storage on a session.
func (c *Classification) AsMap() map[string]any {
	if c == nil {
		return map[string]any{}
	}
	m := map[string]any{
		"is_service_call": c.IsServiceCall,
		"issue_type":      c.IssueType,
		"description":     c.Description,
		"urgency":         c.Urgency,
		"location":        c.Location,
		"device_number":   c.DeviceNumber,
		"is_system_down":  c.IsSystemDown,
		"summary":         c.Summary,
	}
	if c.Transcript != "" {
		m["transcript"] = c.Transcript
	}
	return m
}
