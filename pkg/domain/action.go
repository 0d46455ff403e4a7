package domain

import "context"

// MessageKind identifies the shape of content sent to the platform.
type MessageKind string

const (
	KindText   MessageKind = "text"
	KindSelect MessageKind = "select"
	KindYesNo  MessageKind = "yesno"
	KindTask   MessageKind = "task"
	KindNote   MessageKind = "note"
)

// Content is a structured payload the platform knows how to send.
type Content interface {
	Kind() MessageKind
}

// TextContent is a plain message.
type TextContent struct {
	Text string `json:"text"`
}

// SelectContent is a multiple-choice stamp.
type SelectContent struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// YesNoContent is a yes/no stamp.
type YesNoContent struct {
	Question string `json:"question"`
}

// TaskContent is a task stamp. ClosingType 0 lets any recipient close it.
type TaskContent struct {
	Title       string `json:"title"`
	ClosingType int    `json:"closing_type"`
}

// NoteContent is passed through to the platform unchanged.
type NoteContent map[string]any

func (TextContent) Kind() MessageKind   { return KindText }
func (SelectContent) Kind() MessageKind { return KindSelect }
func (YesNoContent) Kind() MessageKind  { return KindYesNo }
func (TaskContent) Kind() MessageKind   { return KindTask }
func (NoteContent) Kind() MessageKind   { return KindNote }

// Action is the resolved side-effect of an evaluated step. The set of
// implementations is closed: MessageAction, CustomAction and NoopAction.
type Action interface {
	action()
}

// MessageAction sends Content to the originating room, or to the pair
// room of the user whose display name is To.
type MessageAction struct {
	Content Content
	To      string
}

// CustomAction invokes a host-registered action by name.
type CustomAction struct {
	Name string
	Args any
}

// NoopAction performs nothing and echoes Args as its result.
type NoopAction struct {
	Args any
}

func (MessageAction) action() {}
func (CustomAction) action()  {}
func (NoopAction) action()    {}

// ActionResult is the outcome of a dispatched action. A nil result
// records nothing for the step.
type ActionResult struct {
	Data any
}

// Replier sends content into a room. Custom actions receive one so they can
// talk back without depending on the platform adapter.
type Replier interface {
	Reply(ctx context.Context, roomID string, content Content) error
}

// ActionContext is handed to custom actions alongside their arguments.
type ActionContext struct {
	RunID    string
	Workflow string
	StepID   string
	Data     map[string]any
	Event    Event
	Replier  Replier
}
