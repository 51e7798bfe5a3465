package chat

import (
	"context"
	"strings"
	"testing"

	"FacilityBot/entity"
)

func sessionWith(fields map[string]string) *Session {
	s := &Session{Phone: "972500000001"}
	for k, v := range fields {
		s.Set(k, v)
	}
	return s
}

func TestCheckSkip(t *testing.T) {
	tests := []struct {
		name   string
		cond   *Condition
		fields map[string]string
		want   bool
	}{
		{"not_empty on empty", &Condition{Field: "f", NotEmpty: boolPtr(true), Goto: "X"}, map[string]string{"f": ""}, false},
		{"not_empty on value", &Condition{Field: "f", NotEmpty: boolPtr(true), Goto: "X"}, map[string]string{"f": "x"}, true},
		{"not_empty on missing", &Condition{Field: "f", NotEmpty: boolPtr(true), Goto: "X"}, nil, false},
		{"empty on missing", &Condition{Field: "f", Empty: boolPtr(true), Goto: "X"}, nil, true},
		{"empty on value", &Condition{Field: "f", Empty: boolPtr(true), Goto: "X"}, map[string]string{"f": "x"}, false},
		{"equals match", &Condition{Field: "f", Equals: strPtr("yes"), Goto: "X"}, map[string]string{"f": "yes"}, true},
		{"equals mismatch", &Condition{Field: "f", Equals: strPtr("yes"), Goto: "X"}, map[string]string{"f": "no"}, false},
		{"no predicate", &Condition{Field: "f", Goto: "X"}, map[string]string{"f": "x"}, false},
		{"not_empty false", &Condition{Field: "f", NotEmpty: boolPtr(false), Goto: "X"}, map[string]string{"f": "x"}, false},
		{"two predicates", &Condition{Field: "f", NotEmpty: boolPtr(true), Equals: strPtr("x"), Goto: "X"}, map[string]string{"f": "x"}, false},
		{"no field", &Condition{NotEmpty: boolPtr(true), Goto: "X"}, map[string]string{"": "x"}, false},
		{"nil condition", nil, map[string]string{"f": "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckSkip(tt.cond, sessionWith(tt.fields)); got != tt.want {
				t.Errorf("CheckSkip() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildMessage(t *testing.T) {
	script := testScript()

	t.Run("first step greets unknown customer", func(t *testing.T) {
		r := BuildMessage(script, "GREETING", sessionWith(nil))
		if !strings.HasPrefix(r.Text, "שלום!\n") {
			t.Errorf("text = %q, want unknown greeting prefix", r.Text)
		}
		if len(r.Buttons) != 2 || r.Buttons[0].ID != "intent_fault" || r.Buttons[1].Title != "להשאיר הודעה" {
			t.Errorf("buttons = %+v", r.Buttons)
		}
	})

	t.Run("first step greets known customer with device note", func(t *testing.T) {
		s := sessionWith(map[string]string{FieldCustomerName: "דנה", FieldDeviceNumber: "00008"})
		r := BuildMessage(script, "GREETING", s)
		if !strings.HasPrefix(r.Text, "שלום דנה!") {
			t.Errorf("text = %q, want known greeting", r.Text)
		}
		if !strings.Contains(r.Text, textDeviceNote+"00008") {
			t.Errorf("text = %q, want device note", r.Text)
		}
	})

	t.Run("text input has no buttons or greeting", func(t *testing.T) {
		r := BuildMessage(script, "DESCRIBE_FAULT", sessionWith(nil))
		if r.Text != "תאר בקצרה את התקלה:" || r.Buttons != nil {
			t.Errorf("reply = %+v", r)
		}
	})

	t.Run("action step renders placeholder", func(t *testing.T) {
		r := BuildMessage(script, "CHECK_DEVICE", sessionWith(nil))
		if r.Text != textProcessing {
			t.Errorf("text = %q", r.Text)
		}
	})

	t.Run("unknown step renders internal error", func(t *testing.T) {
		r := BuildMessage(script, "NOPE", sessionWith(nil))
		if r.Text != textInternalError || r.Buttons != nil {
			t.Errorf("reply = %+v", r)
		}
	})
}

func TestProcessInputButtons(t *testing.T) {
	r := NewResolver(nil, discardLogger())
	ctx := context.Background()

	script := testScript()
	script.Steps = append(script.Steps, Step{
		ID:   "ASK_DOWN",
		Kind: KindButtons,
		Buttons: []Button{
			{ID: "down_yes", Title: "כן", NextStep: "DESCRIBE_FAULT", SaveTo: FieldIsSystemDown, SaveValue: strPtr("yes")},
			{ID: "down_raw", Title: "אולי", NextStep: "DESCRIBE_FAULT", SaveTo: FieldIsSystemDown},
		},
	})

	s := sessionWith(nil)
	next, ok := r.ProcessInput(ctx, script, "ASK_DOWN", s, Input{Kind: InputInteractive, Text: "down_yes"})
	if !ok || next != "DESCRIBE_FAULT" {
		t.Fatalf("next = %q, ok = %v", next, ok)
	}
	if got := s.Get(FieldIsSystemDown); got != "yes" {
		t.Errorf("is_system_down = %q, want yes", got)
	}

	s = sessionWith(nil)
	if _, ok = r.ProcessInput(ctx, script, "ASK_DOWN", s, Input{Kind: InputInteractive, Text: "down_raw"}); !ok {
		t.Fatal("expected match")
	}
	if got := s.Get(FieldIsSystemDown); got != "down_raw" {
		t.Errorf("is_system_down = %q, want button id", got)
	}

	s = sessionWith(nil)
	if next, ok = r.ProcessInput(ctx, script, "ASK_DOWN", s, Input{Kind: InputText, Text: "1"}); ok {
		t.Errorf("numeric input matched %q", next)
	}
	if len(s.Fields) != 0 {
		t.Errorf("fields changed on invalid input: %v", s.Fields)
	}
}

func TestProcessInputButtonSkip(t *testing.T) {
	r := NewResolver(nil, discardLogger())
	script := testScript()

	s := sessionWith(map[string]string{FieldDeviceNumber: "00008"})
	next, ok := r.ProcessInput(context.Background(), script, "GREETING", s, Input{Kind: InputInteractive, Text: "intent_fault"})
	if !ok || next != "DESCRIBE_FAULT" {
		t.Errorf("next = %q, ok = %v, want DESCRIBE_FAULT", next, ok)
	}

	s = sessionWith(nil)
	next, ok = r.ProcessInput(context.Background(), script, "GREETING", s, Input{Kind: InputInteractive, Text: "intent_fault"})
	if !ok || next != "ASK_DEVICE" {
		t.Errorf("next = %q, ok = %v, want ASK_DEVICE", next, ok)
	}
}

func TestProcessInputText(t *testing.T) {
	r := NewResolver(nil, discardLogger())
	script := testScript()

	tests := []struct {
		name   string
		in     Input
		wantOK bool
	}{
		{"text", Input{Kind: InputText, Text: "רחוב הרצל 1"}, true},
		{"interactive", Input{Kind: InputInteractive, Text: "device_yes"}, true},
		{"blank", Input{Kind: InputText, Text: "   "}, false},
		{"image with caption", Input{Kind: InputImage, Text: "[תמונה]", Caption: "נזילה"}, false},
		{"audio", Input{Kind: InputAudio, Text: "[הודעה קולית]"}, false},
		{"location", Input{Kind: InputLocation, Text: "32.1,34.8"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sessionWith(nil)
			next, ok := r.ProcessInput(context.Background(), script, "ASK_ADDRESS", s, tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				if s.Get(FieldLocation) != "" {
					t.Errorf("location written on rejected input")
				}
				return
			}
			if next != "DESCRIBE_FAULT" {
				t.Errorf("next = %q", next)
			}
			if s.Get(FieldLocation) != tt.in.Text {
				t.Errorf("location = %q, want raw text", s.Get(FieldLocation))
			}
		})
	}
}

func TestProcessInputUnknownStep(t *testing.T) {
	r := NewResolver(nil, discardLogger())
	if next, ok := r.ProcessInput(context.Background(), testScript(), "MISSING", sessionWith(nil), Input{Kind: InputText, Text: "x"}); ok {
		t.Errorf("unknown step advanced to %q", next)
	}
}

func TestCheckEquipment(t *testing.T) {
	script := testScript()
	ctx := context.Background()

	t.Run("found copies customer", func(t *testing.T) {
		eq := &fakeEquipment{items: map[string]*entity.Equipment{
			"00008": {SerialNumber: "00008", CustomerID: "C100", CustomerName: "מגדל השלום"},
		}}
		r := NewResolver(eq, discardLogger())
		s := sessionWith(map[string]string{FieldDeviceNumber: "00008"})

		next, ok := r.ProcessInput(ctx, script, "CHECK_DEVICE", s, Input{Kind: InputText, Text: "ignored"})
		if !ok || next != "DESCRIBE_FAULT" {
			t.Fatalf("next = %q, ok = %v", next, ok)
		}
		if s.Get(FieldCustomerNumber) != "C100" || s.Get(FieldCustomerName) != "מגדל השלום" {
			t.Errorf("fields = %v", s.Fields)
		}
	})

	t.Run("not found", func(t *testing.T) {
		r := NewResolver(&fakeEquipment{}, discardLogger())
		s := sessionWith(map[string]string{FieldDeviceNumber: "123"})
		if next, _ := r.ProcessInput(ctx, script, "CHECK_DEVICE", s, Input{}); next != "ASK_ADDRESS" {
			t.Errorf("next = %q, want failure branch", next)
		}
	})

	t.Run("lookup error degrades to failure", func(t *testing.T) {
		r := NewResolver(&fakeEquipment{err: errBoom}, discardLogger())
		s := sessionWith(map[string]string{FieldDeviceNumber: "123"})
		if next, _ := r.ProcessInput(ctx, script, "CHECK_DEVICE", s, Input{}); next != "ASK_ADDRESS" {
			t.Errorf("next = %q, want failure branch", next)
		}
	})

	t.Run("empty field skips lookup", func(t *testing.T) {
		eq := &fakeEquipment{}
		r := NewResolver(eq, discardLogger())
		if next, _ := r.ProcessInput(ctx, script, "CHECK_DEVICE", sessionWith(nil), Input{}); next != "ASK_ADDRESS" {
			t.Errorf("next = %q, want failure branch", next)
		}
		if len(eq.calls) != 0 {
			t.Errorf("lookup called %d times", len(eq.calls))
		}
	})
}

func TestResolveAutoSteps(t *testing.T) {
	ctx := context.Background()

	t.Run("skips known answers", func(t *testing.T) {
		r := NewResolver(nil, discardLogger())
		s := sessionWith(map[string]string{FieldDeviceNumber: "00008"})
		if got := r.ResolveAutoSteps(ctx, testScript(), "GREETING", s, 10); got != "DESCRIBE_FAULT" {
			t.Errorf("got %q, want DESCRIBE_FAULT", got)
		}
	})

	t.Run("stops on interactive step", func(t *testing.T) {
		r := NewResolver(nil, discardLogger())
		if got := r.ResolveAutoSteps(ctx, testScript(), "GREETING", sessionWith(nil), 10); got != "GREETING" {
			t.Errorf("got %q, want GREETING", got)
		}
	})

	t.Run("runs action steps", func(t *testing.T) {
		eq := &fakeEquipment{items: map[string]*entity.Equipment{"7": {CustomerID: "C7"}}}
		r := NewResolver(eq, discardLogger())
		s := sessionWith(map[string]string{FieldDeviceNumber: "7"})
		if got := r.ResolveAutoSteps(ctx, testScript(), "CHECK_DEVICE", s, 10); got != "DESCRIBE_FAULT" {
			t.Errorf("got %q, want DESCRIBE_FAULT", got)
		}
	})

	t.Run("stops at terminal", func(t *testing.T) {
		script := testScript()
		script.Steps = append(script.Steps, Step{
			ID: "AUTO_DONE", Kind: KindTextInput, Text: "x", NextStep: "DONE_FAULT",
			SkipIf: notEmpty(FieldDescription, "DONE_FAULT"),
		})
		r := NewResolver(nil, discardLogger())
		s := sessionWith(map[string]string{FieldDescription: "תקוע"})
		if got := r.ResolveAutoSteps(ctx, script, "AUTO_DONE", s, 10); got != "DONE_FAULT" {
			t.Errorf("got %q, want DONE_FAULT", got)
		}
	})

	t.Run("action without forward target stops", func(t *testing.T) {
		script := testScript()
		script.Steps = append(script.Steps, Step{ID: "STUCK", Kind: KindAction, ActionType: ActionCheckEquipment, OnFailure: "STUCK"})
		r := NewResolver(nil, discardLogger())
		if got := r.ResolveAutoSteps(ctx, script, "STUCK", sessionWith(nil), 10); got != "STUCK" {
			t.Errorf("got %q, want STUCK", got)
		}
	})

	t.Run("cycle is bounded", func(t *testing.T) {
		script := testScript()
		script.Steps = append(script.Steps,
			Step{ID: "A", Kind: KindTextInput, NextStep: "B", SkipIf: notEmpty("f", "B")},
			Step{ID: "B", Kind: KindTextInput, NextStep: "A", SkipIf: notEmpty("f", "A")},
		)
		r := NewResolver(nil, discardLogger())
		s := sessionWith(map[string]string{"f": "1"})
		got := r.ResolveAutoSteps(ctx, script, "A", s, 3)
		if got != "B" {
			t.Errorf("got %q, want B after three hops", got)
		}
	})

	t.Run("dangling goto stops", func(t *testing.T) {
		script := testScript()
		script.Steps = append(script.Steps, Step{ID: "BROKEN", Kind: KindTextInput, SkipIf: notEmpty("f", "NOWHERE")})
		r := NewResolver(nil, discardLogger())
		s := sessionWith(map[string]string{"f": "1"})
		if got := r.ResolveAutoSteps(ctx, script, "BROKEN", s, 10); got != "NOWHERE" {
			t.Errorf("got %q, want NOWHERE", got)
		}
	})
}
