package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"FacilityBot/entity"
	"FacilityBot/internal/lib/sl"
)

const (
	DefaultScriptID   = "maintenance-troubleshoot"
	DefaultSessionTTL = 30 * time.Minute
)

const textCompletionFailed = "הפנייה התקבלה אך אירעה תקלה בשמירתה. נציג יחזור אליך בהקדם."

var tracer = otel.Tracer("bot/chat")

// handoffFields are the parsed keys copied into collected session fields.
var handoffFields = []string{
	FieldDeviceNumber,
	FieldDescription,
	FieldLocation,
	FieldIsSystemDown,
	FieldCustomerNumber,
	FieldCustomerName,
}

// Options tune the engine.
type Options struct {
	ScriptID     string
	SessionTTL   time.Duration
	MaxAutoSteps int
}

// Handoff is the context an intake step passes into a new session.
type Handoff struct {
	ScriptID     string
	MessageID    string
	MediaID      string
	OriginalText string
	LLMResult    map[string]any
	ParsedData   map[string]string
	// Fields are written into the collected fields as-is.
	Fields map[string]string
}

// Engine owns the session lifecycle for every phone number.
type Engine struct {
	scripts   ScriptStore
	sessions  SessionStore
	resolver  *Resolver
	customers CustomerLookup
	actions   map[string]CompletionAction
	listener  EventListener
	metrics   Metrics
	locks     *PhoneLocks
	opts      Options
	now       func() time.Time
	log       *slog.Logger
}

func NewEngine(scripts ScriptStore, sessions SessionStore, opts Options, log *slog.Logger) *Engine {
	if opts.ScriptID == "" {
		opts.ScriptID = DefaultScriptID
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.MaxAutoSteps <= 0 {
		opts.MaxAutoSteps = DefaultMaxAutoSteps
	}
	return &Engine{
		scripts:  scripts,
		sessions: sessions,
		resolver: NewResolver(nil, log),
		actions:  make(map[string]CompletionAction),
		metrics:  nopMetrics{},
		locks:    NewPhoneLocks(),
		opts:     opts,
		now:      time.Now,
		log:      log.With(sl.Module("chat-engine")),
	}
}

func (e *Engine) SetEquipmentLookup(equipment EquipmentLookup) {
	e.resolver.equipment = equipment
}

func (e *Engine) SetCustomerLookup(customers CustomerLookup) {
	e.customers = customers
}

func (e *Engine) SetEventListener(l EventListener) {
	e.listener = l
}

func (e *Engine) SetMetrics(m Metrics) {
	if m == nil {
		m = nopMetrics{}
	}
	e.metrics = m
}

// RegisterAction binds a completion action name used in done_actions.
func (e *Engine) RegisterAction(name string, action CompletionAction) {
	e.actions[name] = action
	e.log.Info("registered completion action", slog.String("action", name))
}

// GetActiveSession returns the live session of a phone, or nil when there is
// none, it has expired or it already reached a terminal step.
func (e *Engine) GetActiveSession(ctx context.Context, phone string) (*Session, error) {
	session, err := e.sessions.LoadSession(ctx, phone)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	script, err := e.scripts.GetScript(ctx, session.ScriptID)
	if err != nil {
		e.log.Warn("load script for session",
			slog.String("script_id", session.ScriptID),
			sl.Err(err),
		)
		script = nil
	}
	if !session.Active(script, e.now()) {
		return nil, nil
	}
	return session, nil
}

// StartSession creates a fresh session for phone, replacing any previous
// record, and returns the first message to show.
func (e *Engine) StartSession(ctx context.Context, phone, name string, h Handoff) Reply {
	ctx, span := tracer.Start(ctx, "StartSession")
	defer span.End()

	e.locks.Lock(phone)
	defer e.locks.Unlock(phone)

	scriptID := h.ScriptID
	if scriptID == "" {
		scriptID = e.opts.ScriptID
	}
	span.SetAttributes(attribute.String("script_id", scriptID))

	log := e.log.With(slog.String("phone", phone), slog.String("script_id", scriptID))

	script, err := e.scripts.GetScript(ctx, scriptID)
	if err != nil {
		log.Error("load script", sl.Err(err))
		return Reply{Text: textScriptNotFound}
	}
	if script == nil {
		log.Error("script not found")
		return Reply{Text: textScriptNotFound}
	}

	now := e.now()
	session := &Session{
		Phone:             phone,
		SessionID:         uuid.NewString(),
		ScriptID:          scriptID,
		Name:              name,
		Step:              script.FirstStep,
		CreatedAt:         now,
		Fields:            make(map[string]string),
		OriginalText:      h.OriginalText,
		OriginalMessageID: h.MessageID,
		OriginalMediaID:   h.MediaID,
		LLMResult:         h.LLMResult,
		ParsedData:        h.ParsedData,
	}
	session.touch(now, e.opts.SessionTTL)

	for _, key := range handoffFields {
		if v := h.ParsedData[key]; v != "" {
			session.Set(key, v)
		}
	}
	session.Merge(h.Fields)
	e.identify(ctx, session)

	span.SetAttributes(attribute.String("session_id", session.SessionID))

	step := e.resolver.ResolveAutoSteps(ctx, script, script.FirstStep, session, e.opts.MaxAutoSteps)
	session.Step = step
	e.metrics.SessionStarted(scriptID)
	e.emit(entity.EventSessionStarted, session, "")

	if script.IsTerminal(step) {
		return e.finish(ctx, span, script, session, step)
	}

	if err = e.sessions.SaveSession(ctx, session); err != nil {
		log.Error("save new session", sl.Err(err))
		span.RecordError(err)
		return Reply{Text: textInternalError}
	}

	log.Info("session started",
		slog.String("session_id", session.SessionID),
		slog.String("step", string(step)),
		slog.String("customer", session.CustomerName()),
	)
	return BuildMessage(script, step, session)
}

// identify fills customer identity from earlier interactions when the
// handoff did not provide it.
func (e *Engine) identify(ctx context.Context, session *Session) {
	if session.Get(FieldCustomerNumber) == "" && e.customers != nil {
		info, err := e.customers.LookupByPhone(ctx, session.Phone)
		if err != nil {
			e.log.Warn("customer lookup failed", slog.String("phone", session.Phone), sl.Err(err))
		} else {
			if session.Get(FieldCustomerName) == "" && info.Name != "" {
				session.Set(FieldCustomerName, info.Name)
			}
			if info.CustomerID != "" {
				session.Set(FieldCustomerNumber, info.CustomerID)
			}
			if session.Get(FieldDeviceNumber) == "" && info.DeviceNumber != "" {
				session.Set(FieldDeviceNumber, info.DeviceNumber)
			}
		}
	}
	if session.Get(FieldCustomerName) == "" && session.Name != "" {
		session.Set(FieldCustomerName, session.Name)
	}
}

// ProcessMessage advances the active session of phone with one inbound
// message. A nil reply means there is no active session.
func (e *Engine) ProcessMessage(ctx context.Context, phone string, in Input) *Reply {
	ctx, span := tracer.Start(ctx, "ProcessMessage")
	defer span.End()

	e.locks.Lock(phone)
	defer e.locks.Unlock(phone)

	log := e.log.With(slog.String("phone", phone))

	session, err := e.sessions.LoadSession(ctx, phone)
	if err != nil {
		log.Error("load session", sl.Err(err))
		span.RecordError(err)
		return &Reply{Text: textInternalError}
	}
	if session == nil || session.CompletedAt != nil || session.Expired(e.now()) {
		return nil
	}

	script, err := e.scripts.GetScript(ctx, session.ScriptID)
	if err != nil {
		log.Error("load script", slog.String("script_id", session.ScriptID), sl.Err(err))
	}
	if script == nil {
		return &Reply{Text: textScriptNotFound}
	}
	if !session.Active(script, e.now()) {
		return nil
	}

	span.SetAttributes(
		attribute.String("session_id", session.SessionID),
		attribute.String("step", string(session.Step)),
	)

	current := session.Step
	next, ok := e.resolver.ProcessInput(ctx, script, current, session, in)
	if !ok {
		e.metrics.InvalidInput(script.ScriptID, current)
		e.emit(entity.EventInvalidInput, session, "")
		reply := BuildMessage(script, current, session)
		if len(reply.Buttons) > 0 {
			reply.Text = textChooseOption + reply.Text
		}
		return &reply
	}

	if !script.IsTerminal(next) {
		next = e.resolver.ResolveAutoSteps(ctx, script, next, session, e.opts.MaxAutoSteps)
	}
	if script.IsTerminal(next) {
		reply := e.finish(ctx, span, script, session, next)
		return &reply
	}

	session.Step = next
	session.touch(e.now(), e.opts.SessionTTL)
	if err = e.sessions.SaveSession(ctx, session); err != nil {
		log.Error("save session", sl.Err(err))
		span.RecordError(err)
		return &Reply{Text: textInternalError}
	}

	e.metrics.StepAdvanced(script.ScriptID, next)
	e.emit(entity.EventSessionAdvanced, session, "")
	log.Debug("session advanced",
		slog.String("from", string(current)),
		slog.String("to", string(next)),
	)

	reply := BuildMessage(script, next, session)
	return &reply
}

// finish persists the terminal transition and runs its completion action.
// A session that fails to persist never runs the action, so a concurrent
// writer cannot cause a second invocation.
func (e *Engine) finish(ctx context.Context, span trace.Span, script *Script, session *Session, step StepID) Reply {
	log := e.log.With(slog.String("phone", session.Phone), slog.String("step", string(step)))

	session.complete(step, e.now())
	if err := e.sessions.SaveSession(ctx, session); err != nil {
		log.Error("save completed session", sl.Err(err))
		span.RecordError(err)
		return Reply{Text: textInternalError}
	}

	done := script.DoneActions[step]
	text := done.Text
	if text == "" {
		text = textDefaultDone
	}

	if done.Action != "" {
		action, ok := e.actions[done.Action]
		if !ok {
			log.Warn("completion action not registered", slog.String("action", done.Action))
		} else if err := action.Complete(ctx, session, step); err != nil {
			log.Error("completion action failed", slog.String("action", done.Action), sl.Err(err))
			span.RecordError(err)
			e.metrics.ActionFailed(done.Action)
			text = textCompletionFailed
		}
	}

	e.metrics.SessionCompleted(script.ScriptID, done.Action)
	e.emit(entity.EventSessionCompleted, session, done.Action)
	log.Info("session completed",
		slog.String("session_id", session.SessionID),
		slog.String("action", done.Action),
	)
	return Reply{Text: text}
}

// CancelSession deletes the active session of phone. It reports whether a
// session was cancelled.
func (e *Engine) CancelSession(ctx context.Context, phone string) (bool, error) {
	e.locks.Lock(phone)
	defer e.locks.Unlock(phone)

	session, err := e.GetActiveSession(ctx, phone)
	if err != nil {
		return false, err
	}
	if session == nil {
		return false, nil
	}
	if err = e.sessions.DeleteSession(ctx, phone); err != nil {
		return false, err
	}

	e.emit(entity.EventSessionCancelled, session, "")
	e.log.Info("session cancelled", slog.String("phone", phone), slog.String("session_id", session.SessionID))
	return true, nil
}

func (e *Engine) emit(eventType string, session *Session, action string) {
	if e.listener == nil {
		return
	}
	e.listener.SessionEvent(entity.SessionEvent{
		Type:      eventType,
		Phone:     session.Phone,
		SessionID: session.SessionID,
		ScriptID:  session.ScriptID,
		Step:      string(session.Step),
		Action:    action,
		Time:      e.now(),
	})
}
