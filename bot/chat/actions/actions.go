package actions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"FacilityBot/bot/chat"
	"FacilityBot/entity"
	"FacilityBot/internal/lib/sl"
	"FacilityBot/internal/lib/validate"
)

const (
	SaveMessage     = "save_message"
	SaveServiceCall = "save_service_call"

	sourceWhatsApp = "whatsapp"
)

// Records persists service calls locally.
type Records interface {
	SaveServiceCall(ctx context.Context, call *entity.ServiceCall) error
	MarkServiceCallPushed(ctx context.Context, id, docNo string) error
}

// ERP receives fault reports.
type ERP interface {
	CreateServiceCall(ctx context.Context, call *entity.ServiceCall) (string, error)
}

// Mirror keeps an external copy of every saved record.
type Mirror interface {
	AppendServiceCall(ctx context.Context, call *entity.ServiceCall) error
}

// Notifier alerts operators about urgent reports.
type Notifier interface {
	SendMessage(msg string)
}

// Registrar binds completion actions by name.
type Registrar interface {
	RegisterAction(name string, action chat.CompletionAction)
}

type Config struct {
	// PushOnComplete sends fault reports to the ERP as soon as they are saved.
	PushOnComplete bool
	Technician     string
	Branch         string
}

// Service implements the completion actions of maintenance scripts.
type Service struct {
	records Records
	erp     ERP
	mirror  Mirror
	alerts  Notifier
	conf    Config
	now     func() time.Time
	log     *slog.Logger
}

func New(records Records, conf Config, log *slog.Logger) *Service {
	if conf.Branch == "" {
		conf.Branch = entity.DefaultBranch
	}
	return &Service{
		records: records,
		conf:    conf,
		now:     time.Now,
		log:     log.With(sl.Module("actions")),
	}
}

func (s *Service) SetERP(erp ERP) {
	s.erp = erp
}

func (s *Service) SetMirror(mirror Mirror) {
	s.mirror = mirror
}

func (s *Service) SetNotifier(n Notifier) {
	s.alerts = n
}

// Register binds every action this service provides.
func (s *Service) Register(r Registrar) {
	r.RegisterAction(SaveMessage, chat.CompletionFunc(s.SaveMessage))
	r.RegisterAction(SaveServiceCall, chat.CompletionFunc(s.SaveServiceCall))
}

// SaveMessage stores a free-text customer note as a low urgency record.
func (s *Service) SaveMessage(ctx context.Context, session *chat.Session, _ chat.StepID) error {
	message := session.Get(chat.FieldCustomerMessage)
	call := s.newCall(session)
	call.IssueType = entity.IssueTypeMessage
	call.Description = message
	call.Summary = message
	call.Urgency = entity.UrgencyLow

	return s.save(ctx, call)
}

// SaveServiceCall stores a fault report and, when configured, pushes it to
// the ERP. Push failures leave the local record unpushed.
func (s *Service) SaveServiceCall(ctx context.Context, session *chat.Session, _ chat.StepID) error {
	description := session.Get(chat.FieldDescription)
	call := s.newCall(session)
	call.IssueType = entity.IssueTypeFault
	call.Description = description
	call.Summary = description
	call.Urgency = Urgency(session)
	call.Location = session.Get(chat.FieldLocation)
	call.MediaID = session.OriginalMediaID
	call.SerialNumber = session.Get(chat.FieldDeviceNumber)
	call.Branch = s.conf.Branch
	call.FaultText = FaultText(session)

	if err := s.save(ctx, call); err != nil {
		return err
	}

	if call.Urgency == entity.UrgencyHigh && s.alerts != nil {
		s.alerts.SendMessage(fmt.Sprintf("קריאה דחופה: %s\n%s", call.CustomerName, call.FaultText))
	}

	if s.conf.PushOnComplete && s.erp != nil {
		s.push(ctx, call)
	}
	return nil
}

func (s *Service) newCall(session *chat.Session) *entity.ServiceCall {
	now := s.now()
	name := session.CustomerName()
	customer := session.Get(chat.FieldCustomerNumber)
	if customer == "" {
		customer = entity.DefaultCustomer
	}
	return &entity.ServiceCall{
		ID:              uuid.NewString(),
		SessionID:       session.SessionID,
		Phone:           session.Phone,
		Name:            name,
		MessageID:       session.OriginalMessageID,
		SourceType:      sourceWhatsApp,
		CustomerNumber:  customer,
		CustomerName:    name,
		TechnicianLogin: s.conf.Technician,
		Status:          entity.ServiceCallNew,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (s *Service) save(ctx context.Context, call *entity.ServiceCall) error {
	if err := validate.Struct(call); err != nil {
		return fmt.Errorf("invalid service call: %w", err)
	}
	if err := s.records.SaveServiceCall(ctx, call); err != nil {
		return fmt.Errorf("save service call: %w", err)
	}

	s.log.Info("service call saved",
		slog.String("id", call.ID),
		slog.String("issue_type", call.IssueType),
		slog.String("urgency", call.Urgency),
		sl.Phone(call.Phone),
	)

	if s.mirror != nil {
		if err := s.mirror.AppendServiceCall(ctx, call); err != nil {
			s.log.Warn("mirror service call", slog.String("id", call.ID), sl.Err(err))
		}
	}
	return nil
}

func (s *Service) push(ctx context.Context, call *entity.ServiceCall) {
	docNo, err := s.erp.CreateServiceCall(ctx, call)
	if err != nil {
		s.log.Error("push service call to erp", slog.String("id", call.ID), sl.Err(err))
		return
	}
	if err = s.records.MarkServiceCallPushed(ctx, call.ID, docNo); err != nil {
		s.log.Error("mark service call pushed", slog.String("id", call.ID), sl.Err(err))
		return
	}
	call.Pushed = true
	call.ErpDocNo = docNo
	s.log.Info("service call pushed", slog.String("id", call.ID), slog.String("docno", docNo))
}

// Urgency is high when the customer reported the system as down.
func Urgency(session *chat.Session) string {
	if chat.IsTruthy(session.Get(chat.FieldIsSystemDown)) {
		return entity.UrgencyHigh
	}
	return entity.UrgencyMedium
}

// FaultText is the free-text body sent to the ERP.
func FaultText(session *chat.Session) string {
	var b strings.Builder
	b.WriteString(session.Get(chat.FieldDescription))
	b.WriteString("\nטלפון: ")
	b.WriteString(session.Phone)
	if location := session.Get(chat.FieldLocation); location != "" {
		b.WriteString("\nמיקום: ")
		b.WriteString(location)
	}
	if device := session.Get(chat.FieldDeviceNumber); device != "" {
		b.WriteString("\nמכשיר: ")
		b.WriteString(device)
	}
	return b.String()
}
