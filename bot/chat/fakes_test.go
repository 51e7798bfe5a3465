package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"FacilityBot/entity"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func boolPtr(b bool) *bool { return &b }
func strPtr(s string) *string { return &s }
func notEmpty(field string, to StepID) *Condition {
	return &Condition{Field: field, NotEmpty: boolPtr(true), Goto: to}
}

// testScript mirrors the production flow in a compact form.
func testScript() *Script {
	return &Script{
		ScriptID:        "test-script",
		Active:          true,
		GreetingKnown:   "שלום {customer_name}!",
		GreetingUnknown: "שלום!",
		FirstStep:       "GREETING",
		Steps: []Step{
			{
				ID:     "GREETING",
				Kind:   KindButtons,
				Text:   "מה תרצה לעשות?",
				SkipIf: notEmpty(FieldDeviceNumber, "DESCRIBE_FAULT"),
				Buttons: []Button{
					{ID: "intent_fault", Title: "לדווח על תקלה", NextStep: "ASK_DEVICE",
						SkipIf: notEmpty(FieldDeviceNumber, "DESCRIBE_FAULT")},
					{ID: "intent_message", Title: "להשאיר הודעה", NextStep: "GET_MESSAGE"},
				},
			},
			{ID: "GET_MESSAGE", Kind: KindTextInput, Text: "שלח את ההודעה שלך:", SaveTo: FieldCustomerMessage, NextStep: "DONE_MESSAGE"},
			{
				ID:   "ASK_DEVICE",
				Kind: KindButtons,
				Text: "האם יש לך את מספר המכשיר?",
				Buttons: []Button{
					{ID: "device_yes", Title: "כן", NextStep: "DEVICE_INPUT"},
					{ID: "device_no", Title: "לא", NextStep: "ASK_ADDRESS"},
				},
			},
			{ID: "DEVICE_INPUT", Kind: KindTextInput, Text: "שלח את מספר המכשיר:", SaveTo: FieldDeviceNumber, NextStep: "CHECK_DEVICE"},
			{ID: "CHECK_DEVICE", Kind: KindAction, ActionType: ActionCheckEquipment, OnSuccess: "DESCRIBE_FAULT", OnFailure: "ASK_ADDRESS"},
			{ID: "ASK_ADDRESS", Kind: KindTextInput, Text: "באיזו כתובת?", SaveTo: FieldLocation, NextStep: "DESCRIBE_FAULT"},
			{ID: "DESCRIBE_FAULT", Kind: KindTextInput, Text: "תאר בקצרה את התקלה:", SaveTo: FieldDescription, NextStep: "DONE_FAULT"},
		},
		DoneActions: map[StepID]DoneAction{
			"DONE_MESSAGE": {Text: "ההודעה התקבלה, תודה!", Action: "save_message"},
			"DONE_FAULT":   {Text: "נפתחה קריאת שירות!", Action: "save_service_call"},
		},
	}
}

type memScripts struct {
	scripts map[string]*Script
	err     error
	gets    int
}

func newMemScripts(scripts ...*Script) *memScripts {
	m := &memScripts{scripts: make(map[string]*Script)}
	for _, s := range scripts {
		m.scripts[s.ScriptID] = s
	}
	return m
}

func (m *memScripts) GetScript(_ context.Context, id string) (*Script, error) {
	m.gets++
	if m.err != nil {
		return nil, m.err
	}
	return m.scripts[id], nil
}

func (m *memScripts) SaveScript(_ context.Context, s *Script) error {
	m.scripts[s.ScriptID] = s
	return nil
}

func (m *memScripts) DeleteScript(_ context.Context, id string) error {
	delete(m.scripts, id)
	return nil
}

func (m *memScripts) ListScripts(_ context.Context) ([]*Script, error) {
	out := make([]*Script, 0, len(m.scripts))
	for _, s := range m.scripts {
		out = append(out, s)
	}
	return out, nil
}

// memSessions stores copies and enforces optimistic concurrency like the
// database stores do.
type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
	saveErr  error
	saves    int
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]*Session)}
}

func cloneSession(s *Session) *Session {
	c := *s
	c.Fields = make(map[string]string, len(s.Fields))
	for k, v := range s.Fields {
		c.Fields[k] = v
	}
	return &c
}

func (m *memSessions) LoadSession(_ context.Context, phone string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[phone]
	if !ok {
		return nil, nil
	}
	return cloneSession(s), nil
}

func (m *memSessions) SaveSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if s.Version != 0 {
		stored, ok := m.sessions[s.Phone]
		if !ok || stored.Version != s.Version {
			return ErrSessionConflict
		}
	}
	s.Version++
	m.saves++
	m.sessions[s.Phone] = cloneSession(s)
	return nil
}

func (m *memSessions) DeleteSession(_ context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, phone)
	return nil
}

func (m *memSessions) stored(phone string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[phone]
}

type fakeEquipment struct {
	items map[string]*entity.Equipment
	err   error
	calls []string
}

func (f *fakeEquipment) FetchBySerial(_ context.Context, serial string) (*entity.Equipment, error) {
	f.calls = append(f.calls, serial)
	if f.err != nil {
		return nil, f.err
	}
	return f.items[serial], nil
}

type fakeCustomers struct {
	info  entity.CustomerInfo
	err   error
	calls int
}

func (f *fakeCustomers) LookupByPhone(_ context.Context, _ string) (entity.CustomerInfo, error) {
	f.calls++
	return f.info, f.err
}

type recordingAction struct {
	mu       sync.Mutex
	sessions []*Session
	err      error
}

func (a *recordingAction) Complete(_ context.Context, s *Session, _ StepID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions = append(a.sessions, cloneSession(s))
	return a.err
}

func (a *recordingAction) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

type recordingListener struct {
	mu     sync.Mutex
	events []entity.SessionEvent
}

func (l *recordingListener) SessionEvent(e entity.SessionEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *recordingListener) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

var errBoom = errors.New("boom")
