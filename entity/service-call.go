package entity

import "time"

const (
	UrgencyLow      = "low"
	UrgencyMedium   = "medium"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"

	IssueTypeMessage = "הודעה"
	IssueTypeFault   = "תקלה"

	// DefaultCustomer is the ERP catch-all customer for unidentified callers.
	DefaultCustomer = "99999"
	DefaultBranch   = "001"
	DemoBranch      = "000"

	ServiceCallNew    = "new"
	ServiceCallPushed = "pushed"
)

// ServiceCall is a locally persisted fault report or customer note.
type ServiceCall struct {
	ID              string    `json:"id" bson:"_id"`
	SessionID       string    `json:"session_id,omitempty" bson:"session_id,omitempty"`
	Phone           string    `json:"phone" bson:"phone" validate:"required"`
	Name            string    `json:"name" bson:"name"`
	IssueType       string    `json:"issue_type" bson:"issue_type" validate:"required"`
	Description     string    `json:"description" bson:"description"`
	Urgency         string    `json:"urgency" bson:"urgency" validate:"oneof=low medium high critical"`
	Location        string    `json:"location" bson:"location"`
	Summary         string    `json:"summary" bson:"summary"`
	MessageID       string    `json:"message_id,omitempty" bson:"message_id,omitempty"`
	MediaID         string    `json:"media_id,omitempty" bson:"media_id,omitempty"`
	SourceType      string    `json:"source_type" bson:"source_type"`
	CustomerNumber  string    `json:"custname" bson:"custname"`
	CustomerName    string    `json:"cdes" bson:"cdes"`
	SerialNumber    string    `json:"sernum,omitempty" bson:"sernum,omitempty"`
	Branch          string    `json:"branchname,omitempty" bson:"branchname,omitempty"`
	TechnicianLogin string    `json:"technicianlogin,omitempty" bson:"technicianlogin,omitempty"`
	FaultText       string    `json:"fault_text,omitempty" bson:"fault_text,omitempty"`
	Status          string    `json:"status" bson:"status"`
	Pushed          bool      `json:"pushed" bson:"pushed"`
	ErpDocNo        string    `json:"erp_docno,omitempty" bson:"erp_docno,omitempty"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at"`
}

// ServiceCallFilter narrows service call listings. Zero values match all.
type ServiceCallFilter struct {
	Phone  string `json:"phone,omitempty"`
	Status string `json:"status,omitempty"`
	Limit  int64  `json:"limit,omitempty"`
}
