package domain

import "strings"

// Built-in message actions. A step using one of these sends structured
// content to the platform and (unless nowait) waits for the matching reply.
const (
	ActionText   = "daab:message:text"
	ActionSelect = "daab:message:select"
	ActionYesNo  = "daab:message:yesno"
	ActionTask   = "daab:message:task"
	ActionNote   = "daab:message:note"

	// CustomActionPrefix marks a reference to a host-registered action.
	CustomActionPrefix = "custom:"
)

// Workflow is an immutable, validated workflow document.
type Workflow struct {
	Version  string     `json:"version" yaml:"version" mapstructure:"version"`
	Name     string     `json:"name" yaml:"name" mapstructure:"name"`
	On       TriggerMap `json:"on" yaml:"on" mapstructure:"-"`
	Defaults Defaults   `json:"defaults,omitempty" yaml:"defaults,omitempty" mapstructure:"defaults"`
	Steps    []Step     `json:"steps" yaml:"steps" mapstructure:"steps"`

	// Source is the file the workflow was loaded from, if any.
	Source string `json:"-" yaml:"-" mapstructure:"-"`
}

// Defaults holds workflow-level fallbacks applied to every step.
type Defaults struct {
	NoWait *bool `json:"nowait,omitempty" yaml:"nowait,omitempty" mapstructure:"nowait"`
}

// Step is one unit of a workflow: an optional guard, an action and its
// templated payload, plus advance-control flags.
type Step struct {
	ID       string `json:"id,omitempty" yaml:"id,omitempty" mapstructure:"id"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	If       any    `json:"if,omitempty" yaml:"if,omitempty" mapstructure:"if"`
	Action   string `json:"action,omitempty" yaml:"action,omitempty" mapstructure:"action"`
	With     any    `json:"with,omitempty" yaml:"with,omitempty" mapstructure:"with"`
	NoWait   *bool  `json:"nowait,omitempty" yaml:"nowait,omitempty" mapstructure:"nowait"`
	ExitFlow bool   `json:"exitFlow,omitempty" yaml:"exitFlow,omitempty" mapstructure:"exitFlow"`
}

// Label returns a human readable identifier for logs.
func (s Step) Label() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.ID != "":
		return s.ID
	default:
		return s.Action
	}
}

// Selectable reports whether the workflow can be started from the /list menu.
func (w *Workflow) Selectable() bool {
	_, ok := w.On[EventWorkflowDispatch]
	return ok
}

// IsMessageAction reports whether s names one of the built-in message actions.
func IsMessageAction(s string) bool {
	switch s {
	case ActionText, ActionSelect, ActionYesNo, ActionTask, ActionNote:
		return true
	}
	return false
}

// IsCustomAction reports whether s references a registered custom action.
func IsCustomAction(s string) bool {
	return strings.HasPrefix(s, CustomActionPrefix) && len(s) > len(CustomActionPrefix)
}

// CustomActionName strips the custom action prefix.
func CustomActionName(s string) string {
	return strings.TrimPrefix(s, CustomActionPrefix)
}

// ReplyAction returns the step action that consumes replies of the given
// event type. Membership events are consumed by steps without an action.
func ReplyAction(t EventType) (string, bool) {
	switch t {
	case EventText:
		return ActionText, true
	case EventSelect:
		return ActionSelect, true
	case EventYesNo:
		return ActionYesNo, true
	case EventTask:
		return ActionTask, true
	case EventNoteCreated, EventNoteUpdated, EventNoteDeleted:
		return ActionNote, true
	case EventJoin, EventLeave:
		return "", true
	}
	return "", false
}
