package domain

import (
	"context"
	"time"
)

// EventType names a kind of inbound conversational event.
type EventType string

const (
	EventWorkflowDispatch EventType = "workflow_dispatch"
	EventText             EventType = "text"
	EventSelect           EventType = "select"
	EventYesNo            EventType = "yesno"
	EventTask             EventType = "task"
	EventJoin             EventType = "join"
	EventLeave            EventType = "leave"
	EventNoteCreated      EventType = "note_created"
	EventNoteUpdated      EventType = "note_updated"
	EventNoteDeleted      EventType = "note_deleted"
	EventFile             EventType = "file"
	EventFiles            EventType = "files"
)

// InboundEvents lists every event type a platform delivers to the bot.
var InboundEvents = []EventType{
	EventText, EventSelect, EventYesNo, EventTask,
	EventNoteCreated, EventNoteUpdated, EventNoteDeleted,
	EventFile, EventFiles, EventJoin, EventLeave,
}

// Predicate is the condition declared for one event type in a workflow's
// "on" section. An empty predicate always fires.
type Predicate map[string]any

// TriggerMap is the canonical form of a workflow's entry conditions.
type TriggerMap map[EventType]Predicate

// User is a platform account.
type User struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
}

// RoomType distinguishes one-to-one talks from group talks.
type RoomType int

const (
	RoomUnknown RoomType = iota
	RoomPair
	RoomGroup
)

// Room is a platform channel ("talk").
type Room struct {
	ID    string   `json:"id" yaml:"id"`
	Type  RoomType `json:"type" yaml:"type"`
	Users []User   `json:"users,omitempty" yaml:"users,omitempty"`
}

// HasDisplayName reports whether a member with the display name is present.
func (r Room) HasDisplayName(name string) (User, bool) {
	for _, u := range r.Users {
		if u.DisplayName == name {
			return u, true
		}
	}
	return User{}, false
}

// SelectReply is the answer to a select stamp.
type SelectReply struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Response *int     `json:"response,omitempty"`
}

// Chosen returns the option text at the response index.
func (s *SelectReply) Chosen() (string, bool) {
	if s == nil || s.Response == nil {
		return "", false
	}
	i := *s.Response
	if i < 0 || i >= len(s.Options) {
		return "", false
	}
	return s.Options[i], true
}

// YesNoReply is the answer to a yes/no stamp.
type YesNoReply struct {
	Question string `json:"question"`
	Response *bool  `json:"response,omitempty"`
}

// TaskReply is the completion of a task stamp.
type TaskReply struct {
	Title string `json:"title"`
	Done  *bool  `json:"done,omitempty"`
}

// Note is a shared note notification.
type Note struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	HasAttachments bool   `json:"has_attachments"`
}

// RemoteFile describes an uploaded file.
type RemoteFile struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
}

// Event is one inbound conversational event as delivered by the platform.
// Exactly the payload matching Type is expected to be set.
type Event struct {
	Type   EventType    `json:"type"`
	RoomID string       `json:"room_id"`
	User   User         `json:"user"`
	Text   string       `json:"text,omitempty"`
	Select *SelectReply `json:"select,omitempty"`
	YesNo  *YesNoReply  `json:"yesno,omitempty"`
	Task   *TaskReply   `json:"task,omitempty"`
	Note   *Note        `json:"note,omitempty"`
	File   *RemoteFile  `json:"file,omitempty"`
	Files  []RemoteFile `json:"files,omitempty"`
	Users  []User       `json:"users,omitempty"`
}

// Payload returns the type-specific part of the event as a plain map.
// It is the value templates see for a reply or for the entry trigger.
func (e Event) Payload() map[string]any {
	p := map[string]any{}
	switch e.Type {
	case EventText:
		p["text"] = e.Text
	case EventSelect:
		if e.Select != nil {
			p["question"] = e.Select.Question
			p["options"] = e.Select.Options
			if e.Select.Response != nil {
				p["response"] = *e.Select.Response
			}
		}
	case EventYesNo:
		if e.YesNo != nil {
			p["question"] = e.YesNo.Question
			if e.YesNo.Response != nil {
				p["response"] = *e.YesNo.Response
			}
		}
	case EventTask:
		if e.Task != nil {
			p["title"] = e.Task.Title
			if e.Task.Done != nil {
				p["done"] = *e.Task.Done
			}
		}
	case EventNoteCreated, EventNoteUpdated, EventNoteDeleted:
		if e.Note != nil {
			p["id"] = e.Note.ID
			p["title"] = e.Note.Title
			p["has_attachments"] = e.Note.HasAttachments
		}
	case EventFile:
		if e.File != nil {
			p["name"] = e.File.Name
			p["content_type"] = e.File.ContentType
		}
	case EventFiles:
		files := make([]map[string]any, 0, len(e.Files))
		for _, f := range e.Files {
			files = append(files, map[string]any{"name": f.Name, "content_type": f.ContentType})
		}
		p["files"] = files
	case EventJoin, EventLeave:
		p["users"] = e.Users
	}
	return p
}

// RunEvent describes a run lifecycle transition.
type RunEvent struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Workflow  string    `json:"workflow"`
	Trigger   EventType `json:"trigger"`
	Reason    string    `json:"reason,omitempty"`
	// Data is the run data as it stood when the run exited. Unset on start.
	Data RunData `json:"data,omitempty"`
}

// Exit reasons reported in RunEvent.Reason.
const (
	ExitCompleted = "completed"
	ExitFlow      = "exit_flow"
	ExitError     = "error"
	ExitCancelled = "cancelled"
)

// StepEvent describes a step evaluation.
type StepEvent struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Workflow  string    `json:"workflow"`
	StepIndex int       `json:"step_index"`
	StepID    string    `json:"step_id,omitempty"`
	Action    string    `json:"action,omitempty"`
	Skipped   bool      `json:"skipped,omitempty"`
	Err       error     `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnRunStart func(context.Context, *RunEvent)
	OnStep     func(context.Context, *StepEvent)
	OnDispatch func(context.Context, *StepEvent)
	OnRunExit  func(context.Context, *RunEvent)
}
