package domain

import (
	"fmt"
	"slices"
)

// SchemaVersion is the version stamped on every persisted record.
const SchemaVersion = 1

// EntryStepIndex is the cursor of the synthetic step derived from the
// event that started a run.
const EntryStepIndex = -1

// EntryStepID is the data key under which the entry event is recorded.
const EntryStepID = "trigger"

// RunData maps step ids to their recorded outcomes.
type RunData map[string]any

// RunState is the persisted snapshot of one in-progress dialog.
type RunState struct {
	Schema          int       `json:"schema"`
	ID              string    `json:"id"`
	Workflow        string    `json:"workflow"`
	WorkflowVersion string    `json:"workflow_version,omitempty"`
	Trigger         EventType `json:"trigger,omitempty"`
	Active          bool      `json:"active"`
	StepIndex       int       `json:"step_index"`
	Data            RunData   `json:"data"`
	Participants    []string  `json:"participants"`
}

// NewRunState returns an inactive run bound to the workflow.
func NewRunState(id string, w *Workflow) *RunState {
	return &RunState{
		Schema:          SchemaVersion,
		ID:              id,
		Workflow:        w.Name,
		WorkflowVersion: w.Version,
		Data:            RunData{},
		Participants:    []string{},
	}
}

// AddParticipant records a participant once.
func (s *RunState) AddParticipant(id string) {
	if !slices.Contains(s.Participants, id) {
		s.Participants = append(s.Participants, id)
	}
}

// Reset clears the cursor, data and participants.
func (s *RunState) Reset() {
	s.StepIndex = 0
	s.Data = RunData{}
	s.Participants = []string{}
}

// Validate checks a restored record against the invariants of its workflow.
func (s *RunState) Validate(w *Workflow) error {
	if s.Schema != SchemaVersion {
		return fmt.Errorf("%w: run schema %d", ErrInvalidRecord, s.Schema)
	}
	if s.ID == "" {
		return fmt.Errorf("%w: run without id", ErrInvalidRecord)
	}
	if w == nil || w.Name != s.Workflow {
		return fmt.Errorf("%w: run %s references unknown workflow %q", ErrInvalidRecord, s.ID, s.Workflow)
	}
	if s.WorkflowVersion != w.Version {
		return fmt.Errorf("%w: run %s was started on %s version %q, loaded version is %q",
			ErrInvalidRecord, s.ID, s.Workflow, s.WorkflowVersion, w.Version)
	}
	if s.Data == nil {
		return fmt.Errorf("%w: run %s has no data", ErrInvalidRecord, s.ID)
	}
	if !s.Active {
		if s.StepIndex != 0 || len(s.Data) != 0 || len(s.Participants) != 0 {
			return fmt.Errorf("%w: inactive run %s carries state", ErrInvalidRecord, s.ID)
		}
		return nil
	}
	if s.StepIndex < EntryStepIndex || s.StepIndex >= len(w.Steps) {
		return fmt.Errorf("%w: run %s step index %d out of range", ErrInvalidRecord, s.ID, s.StepIndex)
	}
	return nil
}

// Participant binds a platform user to at most one run.
type Participant struct {
	Schema       int    `json:"schema"`
	ID           string `json:"id"`
	CurrentRunID string `json:"current_run_id,omitempty"`
}

// NewParticipant returns an unbound participant.
func NewParticipant(userID string) *Participant {
	return &Participant{Schema: SchemaVersion, ID: userID}
}

// Validate checks a restored participant record.
func (p *Participant) Validate() error {
	if p.Schema != SchemaVersion {
		return fmt.Errorf("%w: participant schema %d", ErrInvalidRecord, p.Schema)
	}
	if p.ID == "" {
		return fmt.Errorf("%w: participant without id", ErrInvalidRecord)
	}
	return nil
}

// ChannelSession holds transient per-channel UI state for one user.
type ChannelSession struct {
	Schema    int    `json:"schema"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Selecting bool   `json:"selecting"`
}

// NewChannelSession returns an idle session.
func NewChannelSession(channelID, userID string) *ChannelSession {
	return &ChannelSession{Schema: SchemaVersion, ChannelID: channelID, UserID: userID}
}

// Validate checks a restored session record.
func (c *ChannelSession) Validate() error {
	if c.Schema != SchemaVersion {
		return fmt.Errorf("%w: session schema %d", ErrInvalidRecord, c.Schema)
	}
	if c.ChannelID == "" || c.UserID == "" {
		return fmt.Errorf("%w: session without channel or user", ErrInvalidRecord)
	}
	return nil
}
