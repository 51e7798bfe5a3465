package chat

import (
	"context"
	"log/slog"
	"strings"

	"FacilityBot/internal/lib/sl"
)

const DefaultMaxAutoSteps = 10

const (
	textInternalError  = "שגיאה פנימית"
	textScriptNotFound = "שגיאה: תסריט לא נמצא"
	textProcessing     = "מעבד..."
	textChooseOption   = "אנא בחר אחת מהאפשרויות:\n\n"
	textDefaultDone    = "תודה!"
	textDefaultKnown   = "שלום {customer_name}!"
	textDefaultUnknown = "שלום!"
	textDeviceNote     = "מספר מכשיר שזוהה: "
)

// Resolver interprets script steps against a session.
type Resolver struct {
	equipment EquipmentLookup
	log       *slog.Logger
}

func NewResolver(equipment EquipmentLookup, log *slog.Logger) *Resolver {
	return &Resolver{
		equipment: equipment,
		log:       log.With(sl.Module("resolver")),
	}
}

// BuildMessage renders the outward message of a step. The first step of a
// script is prefixed with a greeting.
func BuildMessage(script *Script, id StepID, session *Session) Reply {
	step, ok := script.FindStep(id)
	if !ok {
		return Reply{Text: textInternalError}
	}

	text := step.Text
	if id == script.FirstStep {
		text = greeting(script, session) + "\n" + text
	}

	switch step.EffectiveKind() {
	case KindButtons:
		buttons := make([]ReplyButton, 0, len(step.Buttons))
		for _, b := range step.Buttons {
			buttons = append(buttons, ReplyButton{ID: b.ID, Title: b.Title})
		}
		return Reply{Text: text, Buttons: buttons}
	case KindAction:
		return Reply{Text: textProcessing}
	}
	return Reply{Text: text}
}

func greeting(script *Script, session *Session) string {
	var g string
	if name := session.Get(FieldCustomerName); name != "" {
		g = script.GreetingKnown
		if g == "" {
			g = textDefaultKnown
		}
		g = strings.ReplaceAll(g, "{customer_name}", name)
	} else {
		g = script.GreetingUnknown
		if g == "" {
			g = textDefaultUnknown
		}
	}
	if device := session.Get(FieldDeviceNumber); device != "" {
		g += "\n" + textDeviceNote + device
	}
	return g
}

// ProcessInput interprets input against the step and returns the next step.
// Session fields are updated in place. ok is false for invalid input.
func (r *Resolver) ProcessInput(ctx context.Context, script *Script, id StepID, session *Session, in Input) (next StepID, ok bool) {
	step, found := script.FindStep(id)
	if !found {
		return "", false
	}

	switch step.EffectiveKind() {
	case KindButtons:
		for _, b := range step.Buttons {
			if b.ID != in.Text {
				continue
			}
			if b.SaveTo != "" {
				value := b.ID
				if b.SaveValue != nil {
					value = *b.SaveValue
				}
				session.Set(b.SaveTo, value)
			}
			if b.SkipIf != nil && CheckSkip(b.SkipIf, session) {
				return b.SkipIf.Goto, true
			}
			return b.NextStep, true
		}
		return "", false

	case KindAction:
		next := r.executeAction(ctx, step, session)
		return next, next != ""

	default:
		if !in.Kind.FreeText() || strings.TrimSpace(in.Text) == "" {
			return "", false
		}
		if step.SaveTo != "" {
			session.Set(step.SaveTo, in.Text)
		}
		return step.NextStep, step.NextStep != ""
	}
}

// executeAction runs a non-interactive step and returns its branch target.
// Collaborator failures select the failure branch.
func (r *Resolver) executeAction(ctx context.Context, step *Step, session *Session) StepID {
	switch step.ActionType {
	case ActionCheckEquipment:
		field := step.Field
		if field == "" {
			field = FieldDeviceNumber
		}
		serial := strings.TrimSpace(session.Get(field))
		if serial == "" || r.equipment == nil {
			return step.OnFailure
		}

		eq, err := r.equipment.FetchBySerial(ctx, serial)
		if err != nil {
			r.log.Warn("equipment lookup failed",
				slog.String("serial", serial),
				sl.Err(err),
			)
			return step.OnFailure
		}
		if eq == nil {
			return step.OnFailure
		}
		if eq.CustomerID != "" {
			session.Set(FieldCustomerNumber, eq.CustomerID)
		}
		if eq.CustomerName != "" {
			session.Set(FieldCustomerName, eq.CustomerName)
		}
		return step.OnSuccess
	}

	r.log.Warn("unknown action type",
		slog.String("step", string(step.ID)),
		slog.String("action_type", step.ActionType),
	)
	return step.OnFailure
}

// ResolveAutoSteps advances through action steps and satisfied skip_if
// conditions until a step needs user input, a terminal id is reached or
// maxDepth iterations have run.
func (r *Resolver) ResolveAutoSteps(ctx context.Context, script *Script, start StepID, session *Session, maxDepth int) StepID {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxAutoSteps
	}

	current := start
	for i := 0; i < maxDepth; i++ {
		if script.IsTerminal(current) {
			return current
		}
		step, ok := script.FindStep(current)
		if !ok {
			return current
		}

		if step.EffectiveKind() == KindAction {
			next := r.executeAction(ctx, step, session)
			if next == "" || next == current {
				return current
			}
			current = next
			continue
		}

		if step.SkipIf != nil && CheckSkip(step.SkipIf, session) {
			current = step.SkipIf.Goto
			continue
		}
		return current
	}

	r.log.Debug("auto step depth reached",
		slog.String("script_id", script.ScriptID),
		slog.String("step", string(current)),
	)
	return current
}

// CheckSkip evaluates a condition. Conditions without exactly one predicate
// never match.
func CheckSkip(c *Condition, session *Session) bool {
	if c == nil || !c.wellFormed() {
		return false
	}
	value := session.Get(c.Field)
	switch {
	case c.NotEmpty != nil && *c.NotEmpty:
		return value != ""
	case c.Empty != nil && *c.Empty:
		return value == ""
	default:
		return value == *c.Equals
	}
}
