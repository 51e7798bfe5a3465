package entity

import "testing"

func TestInboundMessage_IsFreeText(t *testing.T) {
	tests := []struct {
		typ  string
		want bool
	}{
		{MessageText, true},
		{MessageInteractive, true},
		{MessageImage, false},
		{MessageAudio, false},
		{MessageLocation, false},
	}
	for _, tt := range tests {
		m := InboundMessage{Type: tt.typ}
		if got := m.IsFreeText(); got != tt.want {
			t.Errorf("IsFreeText(%s) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestCustomerInfo_IsEmpty(t *testing.T) {
	var nilInfo *CustomerInfo
	if !nilInfo.IsEmpty() {
		t.Error("nil info should be empty")
	}
	if (&CustomerInfo{}).IsEmpty() != true {
		t.Error("zero info should be empty")
	}
	if (&CustomerInfo{CustomerID: "100"}).IsEmpty() {
		t.Error("info with customer id should not be empty")
	}
}

func TestClassification_AsMap(t *testing.T) {
	c := &Classification{IssueType: "נזילה", Urgency: UrgencyHigh}
	m := c.AsMap()
	if m["issue_type"] != "נזילה" || m["urgency"] != UrgencyHigh {
		t.Errorf("unexpected map %v", m)
	}
	var nilC *Classification
	if len(nilC.AsMap()) != 0 {
		t.Error("nil classification should flatten to an empty map")
	}
}
