package chat

import (
	"errors"
	"fmt"
	"time"

	"FacilityBot/internal/lib/validate"
)

// StepID is a unique identifier for a step within a script.
type StepID string

// StepKind tags the variant of a Step.
type StepKind string

const (
	KindTextInput StepKind = "text_input"
	KindButtons   StepKind = "buttons"
	KindAction    StepKind = "action"
)

// Action step types.
const (
	ActionCheckEquipment = "check_equipment"
)

const (
	minButtons = 2
	maxButtons = 3
)

var ErrInvalidScript = errors.New("invalid script")

// Condition is a skip_if predicate evaluated against session fields.
// Exactly one of NotEmpty, Empty or Equals must be set.
type Condition struct {
	Field    string  `json:"field" bson:"field" yaml:"field" validate:"required"`
	NotEmpty *bool   `json:"not_empty,omitempty" bson:"not_empty,omitempty" yaml:"not_empty,omitempty"`
	Empty    *bool   `json:"empty,omitempty" bson:"empty,omitempty" yaml:"empty,omitempty"`
	Equals   *string `json:"equals,omitempty" bson:"equals,omitempty" yaml:"equals,omitempty"`
	Goto     StepID  `json:"goto" bson:"goto" yaml:"goto" validate:"required"`
}

// Button is one selectable option of a buttons step.
type Button struct {
	ID        string     `json:"id" bson:"id" yaml:"id" validate:"required"`
	Title     string     `json:"title" bson:"title" yaml:"title" validate:"required,max=20"`
	NextStep  StepID     `json:"next_step" bson:"next_step" yaml:"next_step" validate:"required"`
	SaveTo    string     `json:"save_to,omitempty" bson:"save_to,omitempty" yaml:"save_to,omitempty"`
	SaveValue *string    `json:"save_value,omitempty" bson:"save_value,omitempty" yaml:"save_value,omitempty"`
	SkipIf    *Condition `json:"skip_if,omitempty" bson:"skip_if,omitempty" yaml:"skip_if,omitempty"`
}

// Step is one node of the conversation graph.
type Step struct {
	ID         StepID     `json:"id" bson:"id" yaml:"id" validate:"required"`
	Kind       StepKind   `json:"type" bson:"type" yaml:"type" validate:"omitempty,oneof=text_input buttons action"`
	Text       string     `json:"text,omitempty" bson:"text,omitempty" yaml:"text,omitempty"`
	SaveTo     string     `json:"save_to,omitempty" bson:"save_to,omitempty" yaml:"save_to,omitempty"`
	NextStep   StepID     `json:"next_step,omitempty" bson:"next_step,omitempty" yaml:"next_step,omitempty"`
	Buttons    []Button   `json:"buttons,omitempty" bson:"buttons,omitempty" yaml:"buttons,omitempty" validate:"omitempty,dive"`
	ActionType string     `json:"action_type,omitempty" bson:"action_type,omitempty" yaml:"action_type,omitempty"`
	Field      string     `json:"field,omitempty" bson:"field,omitempty" yaml:"field,omitempty"`
	OnSuccess  StepID     `json:"on_success,omitempty" bson:"on_success,omitempty" yaml:"on_success,omitempty"`
	OnFailure  StepID     `json:"on_failure,omitempty" bson:"on_failure,omitempty" yaml:"on_failure,omitempty"`
	SkipIf     *Condition `json:"skip_if,omitempty" bson:"skip_if,omitempty" yaml:"skip_if,omitempty"`
}

// EffectiveKind returns the step kind, defaulting to text_input.
func (s *Step) EffectiveKind() StepKind {
	if s.Kind == "" {
		return KindTextInput
	}
	return s.Kind
}

// DoneAction describes what happens when a terminal step is reached.
type DoneAction struct {
	Text   string `json:"text" bson:"text" yaml:"text"`
	Action string `json:"action" bson:"action" yaml:"action"`
}

// Script is a versioned conversation definition.
type Script struct {
	ScriptID        string                `json:"script_id" bson:"script_id" yaml:"script_id" validate:"required"`
	Name            string                `json:"name" bson:"name" yaml:"name"`
	Active          bool                  `json:"active" bson:"active" yaml:"active"`
	GreetingKnown   string                `json:"greeting_known" bson:"greeting_known" yaml:"greeting_known"`
	GreetingUnknown string                `json:"greeting_unknown" bson:"greeting_unknown" yaml:"greeting_unknown"`
	FirstStep       StepID                `json:"first_step" bson:"first_step" yaml:"first_step" validate:"required"`
	Steps           []Step                `json:"steps" bson:"steps" yaml:"steps" validate:"required,min=1,dive"`
	DoneActions     map[StepID]DoneAction `json:"done_actions" bson:"done_actions" yaml:"done_actions" validate:"required,min=1,dive"`
	CreatedAt       time.Time             `json:"created_at" bson:"created_at" yaml:"-"`
	UpdatedAt       time.Time             `json:"updated_at" bson:"updated_at" yaml:"-"`
}

// FindStep is a linear lookup by id.
func (s *Script) FindStep(id StepID) (*Step, bool) {
	for i := range s.Steps {
		if s.Steps[i].ID == id {
			return &s.Steps[i], true
		}
	}
	return nil, false
}

// IsTerminal reports whether id is a key of done_actions.
func (s *Script) IsTerminal(id StepID) bool {
	_, ok := s.DoneActions[id]
	return ok
}

// Validate rejects structurally malformed scripts. Dangling references are
// not errors here; see Defects.
func (s *Script) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}

	seen := make(map[StepID]bool, len(s.Steps))
	for _, step := range s.Steps {
		if seen[step.ID] {
			return fmt.Errorf("%w: duplicate step id %q", ErrInvalidScript, step.ID)
		}
		seen[step.ID] = true
		if s.IsTerminal(step.ID) {
			return fmt.Errorf("%w: step %q is also a done action", ErrInvalidScript, step.ID)
		}

		switch step.EffectiveKind() {
		case KindButtons:
			if len(step.Buttons) < minButtons || len(step.Buttons) > maxButtons {
				return fmt.Errorf("%w: step %q has %d buttons, want %d-%d",
					ErrInvalidScript, step.ID, len(step.Buttons), minButtons, maxButtons)
			}
			ids := make(map[string]bool, len(step.Buttons))
			for _, b := range step.Buttons {
				if ids[b.ID] {
					return fmt.Errorf("%w: step %q has duplicate button %q", ErrInvalidScript, step.ID, b.ID)
				}
				ids[b.ID] = true
			}
		case KindAction:
			if step.ActionType == "" {
				return fmt.Errorf("%w: action step %q has no action_type", ErrInvalidScript, step.ID)
			}
		}
	}
	return nil
}

// Defects lists authoring problems the engine tolerates at runtime:
// references that resolve to neither a step nor a done action, unknown
// action types and conditions that can never match.
func (s *Script) Defects() []string {
	var defects []string

	resolves := func(id StepID) bool {
		if s.IsTerminal(id) {
			return true
		}
		_, ok := s.FindStep(id)
		return ok
	}
	check := func(where string, id StepID) {
		if id != "" && !resolves(id) {
			defects = append(defects, fmt.Sprintf("%s: dangling reference %q", where, id))
		}
	}
	checkCond := func(where string, c *Condition) {
		if c == nil {
			return
		}
		if !c.wellFormed() {
			defects = append(defects, fmt.Sprintf("%s: skip_if needs exactly one predicate", where))
		}
		check(where+".skip_if", c.Goto)
	}

	check("first_step", s.FirstStep)
	for _, step := range s.Steps {
		where := string(step.ID)
		checkCond(where, step.SkipIf)
		switch step.EffectiveKind() {
		case KindTextInput:
			if step.NextStep == "" {
				defects = append(defects, where+": text_input without next_step")
			}
			check(where+".next_step", step.NextStep)
		case KindButtons:
			for _, b := range step.Buttons {
				bw := where + "." + b.ID
				check(bw+".next_step", b.NextStep)
				checkCond(bw, b.SkipIf)
			}
		case KindAction:
			if step.ActionType != ActionCheckEquipment {
				defects = append(defects, fmt.Sprintf("%s: unknown action_type %q", where, step.ActionType))
			}
			check(where+".on_success", step.OnSuccess)
			check(where+".on_failure", step.OnFailure)
		}
	}
	return defects
}

func (c *Condition) wellFormed() bool {
	if c.Field == "" {
		return false
	}
	n := 0
	if c.NotEmpty != nil && *c.NotEmpty {
		n++
	}
	if c.Empty != nil && *c.Empty {
		n++
	}
	if c.Equals != nil {
		n++
	}
	return n == 1
}
