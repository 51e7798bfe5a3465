package tracing

import (
	"context"
	"testing"
)

func TestInitTracer_NoEndpoint(t *testing.T) {
	shutdown, err := InitTracer("", "facilitybot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("no-op shutdown returned %v", err)
	}
}
