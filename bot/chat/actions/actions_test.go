package actions_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"FacilityBot/bot/chat"
	"FacilityBot/bot/chat/actions"
	"FacilityBot/entity"
)

type fakeRecords struct {
	calls  []*entity.ServiceCall
	pushed map[string]string
	err    error
}

func (f *fakeRecords) SaveServiceCall(_ context.Context, call *entity.ServiceCall) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeRecords) MarkServiceCallPushed(_ context.Context, id, docNo string) error {
	if f.pushed == nil {
		f.pushed = make(map[string]string)
	}
	f.pushed[id] = docNo
	return nil
}

type fakeERP struct {
	docNo string
	err   error
	got   []*entity.ServiceCall
}

func (f *fakeERP) CreateServiceCall(_ context.Context, call *entity.ServiceCall) (string, error) {
	f.got = append(f.got, call)
	return f.docNo, f.err
}

type fakeMirror struct {
	rows int
	err  error
}

func (f *fakeMirror) AppendServiceCall(context.Context, *entity.ServiceCall) error {
	f.rows++
	return f.err
}

type registry map[string]chat.CompletionAction

func (r registry) RegisterAction(name string, a chat.CompletionAction) { r[name] = a }

func logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func faultSession() *chat.Session {
	s := &chat.Session{
		Phone:             "972545446259",
		SessionID:         "sess-1",
		Name:              "wa name",
		OriginalMessageID: "wamid.1",
		OriginalMediaID:   "media-1",
	}
	s.Set(chat.FieldDescription, "מכשיר תקוע")
	s.Set(chat.FieldLocation, "הרצל 5")
	s.Set(chat.FieldDeviceNumber, "00008")
	s.Set(chat.FieldCustomerName, "ועד הבית")
	return s
}

func TestRegister(t *testing.T) {
	r := registry{}
	actions.New(&fakeRecords{}, actions.Config{}, logger()).Register(r)
	for _, name := range []string{actions.SaveMessage, actions.SaveServiceCall} {
		if r[name] == nil {
			t.Errorf("%s not registered", name)
		}
	}
}

func TestSaveServiceCall(t *testing.T) {
	records := &fakeRecords{}
	svc := actions.New(records, actions.Config{Technician: "יוסי"}, logger())

	if err := svc.SaveServiceCall(context.Background(), faultSession(), "DONE_FAULT"); err != nil {
		t.Fatalf("SaveServiceCall() error = %v", err)
	}
	if len(records.calls) != 1 {
		t.Fatalf("saved %d records", len(records.calls))
	}

	c := records.calls[0]
	if c.IssueType != entity.IssueTypeFault || c.Urgency != entity.UrgencyMedium {
		t.Errorf("issue/urgency = %s/%s", c.IssueType, c.Urgency)
	}
	if c.CustomerNumber != entity.DefaultCustomer {
		t.Errorf("custname = %q, want fallback", c.CustomerNumber)
	}
	if c.Name != "ועד הבית" || c.SerialNumber != "00008" || c.Branch != entity.DefaultBranch {
		t.Errorf("record = %+v", c)
	}
	if c.TechnicianLogin != "יוסי" || c.Status != entity.ServiceCallNew || c.MediaID != "media-1" {
		t.Errorf("record = %+v", c)
	}
	want := "מכשיר תקוע\nטלפון: 972545446259\nמיקום: הרצל 5\nמכשיר: 00008"
	if c.FaultText != want {
		t.Errorf("fault text = %q, want %q", c.FaultText, want)
	}
}

func TestUrgency(t *testing.T) {
	tests := map[string]string{
		"yes":  entity.UrgencyHigh,
		"true": entity.UrgencyHigh,
		"1":    entity.UrgencyHigh,
		"no":   entity.UrgencyMedium,
		"":     entity.UrgencyMedium,
	}
	for value, want := range tests {
		s := &chat.Session{}
		s.Set(chat.FieldIsSystemDown, value)
		if got := actions.Urgency(s); got != want {
			t.Errorf("Urgency(%q) = %s, want %s", value, got, want)
		}
	}
}

func TestFaultTextMinimal(t *testing.T) {
	s := &chat.Session{Phone: "0501234567"}
	s.Set(chat.FieldDescription, "נזילה")
	if got := actions.FaultText(s); got != "נזילה\nטלפון: 0501234567" {
		t.Errorf("FaultText() = %q", got)
	}
}

func TestSaveMessage(t *testing.T) {
	records := &fakeRecords{}
	svc := actions.New(records, actions.Config{}, logger())

	s := &chat.Session{Phone: "972500000000", Name: "דני"}
	s.Set(chat.FieldCustomerMessage, "תתקשרו אליי")
	s.Set(chat.FieldCustomerNumber, "C77")

	if err := svc.SaveMessage(context.Background(), s, "DONE_MESSAGE"); err != nil {
		t.Fatalf("SaveMessage() error = %v", err)
	}
	c := records.calls[0]
	if c.IssueType != entity.IssueTypeMessage || c.Urgency != entity.UrgencyLow {
		t.Errorf("issue/urgency = %s/%s", c.IssueType, c.Urgency)
	}
	if c.Description != "תתקשרו אליי" || c.CustomerNumber != "C77" || c.Name != "דני" {
		t.Errorf("record = %+v", c)
	}
}

func TestPushOnComplete(t *testing.T) {
	records := &fakeRecords{}
	erp := &fakeERP{docNo: "SC2500123"}
	svc := actions.New(records, actions.Config{PushOnComplete: true}, logger())
	svc.SetERP(erp)

	if err := svc.SaveServiceCall(context.Background(), faultSession(), "DONE_FAULT"); err != nil {
		t.Fatal(err)
	}
	if len(erp.got) != 1 {
		t.Fatalf("erp received %d calls", len(erp.got))
	}
	id := records.calls[0].ID
	if records.pushed[id] != "SC2500123" {
		t.Errorf("pushed = %v", records.pushed)
	}
}

func TestPushFailureIsSoft(t *testing.T) {
	records := &fakeRecords{}
	svc := actions.New(records, actions.Config{PushOnComplete: true}, logger())
	svc.SetERP(&fakeERP{err: errors.New("erp down")})

	if err := svc.SaveServiceCall(context.Background(), faultSession(), "DONE_FAULT"); err != nil {
		t.Fatalf("push failure surfaced: %v", err)
	}
	if len(records.pushed) != 0 {
		t.Error("record marked pushed after failure")
	}
}

func TestNoPushWhenDisabled(t *testing.T) {
	erp := &fakeERP{}
	svc := actions.New(&fakeRecords{}, actions.Config{}, logger())
	svc.SetERP(erp)

	_ = svc.SaveServiceCall(context.Background(), faultSession(), "DONE_FAULT")
	if len(erp.got) != 0 {
		t.Error("pushed although disabled")
	}
}

func TestSaveFailureSurfaces(t *testing.T) {
	svc := actions.New(&fakeRecords{err: errors.New("db down")}, actions.Config{}, logger())
	if err := svc.SaveServiceCall(context.Background(), faultSession(), "DONE_FAULT"); err == nil {
		t.Error("expected error")
	}
}

func TestMirrorFailureIsSoft(t *testing.T) {
	records := &fakeRecords{}
	mirror := &fakeMirror{err: errors.New("quota")}
	svc := actions.New(records, actions.Config{}, logger())
	svc.SetMirror(mirror)

	if err := svc.SaveServiceCall(context.Background(), faultSession(), "DONE_FAULT"); err != nil {
		t.Fatal(err)
	}
	if mirror.rows != 1 || len(records.calls) != 1 {
		t.Errorf("mirror rows = %d, records = %d", mirror.rows, len(records.calls))
	}
}

type fakeNotifier struct {
	msgs []string
}

func (f *fakeNotifier) SendMessage(msg string) { f.msgs = append(f.msgs, msg) }

func TestUrgentCallAlertsOperators(t *testing.T) {
	n := &fakeNotifier{}
	svc := actions.New(&fakeRecords{}, actions.Config{}, logger())
	svc.SetNotifier(n)

	s := faultSession()
	_ = svc.SaveServiceCall(context.Background(), s, "DONE_FAULT")
	if len(n.msgs) != 0 {
		t.Fatalf("alert sent for medium urgency: %v", n.msgs)
	}

	s.Set(chat.FieldIsSystemDown, "yes")
	_ = svc.SaveServiceCall(context.Background(), s, "DONE_FAULT")
	if len(n.msgs) != 1 {
		t.Fatalf("alerts = %v", n.msgs)
	}
}
