package sl

import (
	"errors"
	"testing"
)

func TestErr(t *testing.T) {
	if got := Err(errors.New("boom")).Value.String(); got != "boom" {
		t.Errorf("expected 'boom', got %q", got)
	}
	if got := Err(nil).Value.String(); got != "nil" {
		t.Errorf("expected 'nil', got %q", got)
	}
}

func TestSecret(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"short", "***"},
		{"sk-1234567890", "sk-***90"},
	}
	for _, tt := range tests {
		if got := Secret("k", tt.value).Value.String(); got != tt.want {
			t.Errorf("Secret(%q) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestPhone(t *testing.T) {
	if got := Phone("972545446259").Value.String(); got != "***6259" {
		t.Errorf("unexpected masked phone %q", got)
	}
}
