// Package repository persists runs, participants and channel sessions
// through a ports.KVStore.
//
// Records are versioned JSON. Restoring re-validates every record; a record
// that fails validation is reported as not found and never partially used.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
)

// Key prefixes. Each record kind lives in its own namespace.
const (
	RunPrefix         = "run:"
	ParticipantPrefix = "participant:"
	SessionPrefix     = "session:"
)

// RunKey returns the store key of a run.
func RunKey(id string) string { return RunPrefix + id }

// ParticipantKey returns the store key of a participant binding.
func ParticipantKey(userID string) string { return ParticipantPrefix + userID }

// SessionKey returns the store key of a channel session.
func SessionKey(channelID, userID string) string {
	return SessionPrefix + channelID + "/" + userID
}

// WorkflowResolver finds the definition a persisted run refers to.
type WorkflowResolver interface {
	FindByName(name string) (*domain.Workflow, bool)
}

// Repository is the engine's view of the persistence gateway.
type Repository struct {
	store     ports.KVStore
	workflows WorkflowResolver
	logger    *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger used for restore rejections.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

// New creates a repository over store.
func New(store ports.KVStore, workflows WorkflowResolver, opts ...Option) *Repository {
	r := &Repository{
		store:     store,
		workflows: workflows,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the underlying key/value store.
func (r *Repository) Store() ports.KVStore { return r.store }

// SaveRun persists the full run state.
func (r *Repository) SaveRun(ctx context.Context, s *domain.RunState) error {
	return r.put(ctx, RunKey(s.ID), s)
}

// DeleteRun removes the run record.
func (r *Repository) DeleteRun(ctx context.Context, id string) error {
	key := RunKey(id)
	if err := r.store.Delete(ctx, key); err != nil {
		return &domain.PersistenceError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// FindRun restores a run and resolves its workflow.
// Absent or invalid records yield domain.ErrNotFound.
func (r *Repository) FindRun(ctx context.Context, id string) (*domain.RunState, *domain.Workflow, error) {
	var s domain.RunState
	key := RunKey(id)
	if err := r.get(ctx, key, &s); err != nil {
		return nil, nil, err
	}
	w, _ := r.workflows.FindByName(s.Workflow)
	if err := s.Validate(w); err != nil {
		return nil, nil, r.reject(key, err)
	}
	if s.ID != id {
		return nil, nil, r.reject(key, fmt.Errorf("%w: record id %q", domain.ErrInvalidRecord, s.ID))
	}
	return &s, w, nil
}

// SaveParticipant persists a participant binding.
func (r *Repository) SaveParticipant(ctx context.Context, p *domain.Participant) error {
	return r.put(ctx, ParticipantKey(p.ID), p)
}

// FindParticipant restores a participant binding.
func (r *Repository) FindParticipant(ctx context.Context, userID string) (*domain.Participant, error) {
	var p domain.Participant
	key := ParticipantKey(userID)
	if err := r.get(ctx, key, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, r.reject(key, err)
	}
	return &p, nil
}

// FindOrCreateParticipant restores the participant or returns a new unbound one.
// The new participant is not persisted.
func (r *Repository) FindOrCreateParticipant(ctx context.Context, userID string) (*domain.Participant, error) {
	p, err := r.FindParticipant(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewParticipant(userID), nil
	}
	return p, err
}

// SaveSession persists a channel session.
func (r *Repository) SaveSession(ctx context.Context, s *domain.ChannelSession) error {
	return r.put(ctx, SessionKey(s.ChannelID, s.UserID), s)
}

// FindSession restores a channel session.
func (r *Repository) FindSession(ctx context.Context, channelID, userID string) (*domain.ChannelSession, error) {
	var s domain.ChannelSession
	key := SessionKey(channelID, userID)
	if err := r.get(ctx, key, &s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, r.reject(key, err)
	}
	return &s, nil
}

// FindOrCreateSession restores the channel session or creates and persists
// an idle one.
func (r *Repository) FindOrCreateSession(ctx context.Context, channelID, userID string) (*domain.ChannelSession, error) {
	s, err := r.FindSession(ctx, channelID, userID)
	if !errors.Is(err, domain.ErrNotFound) {
		return s, err
	}
	s = domain.NewChannelSession(channelID, userID)
	if err := r.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Repository) put(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return &domain.PersistenceError{Op: "encode", Key: key, Err: err}
	}
	if err := r.store.Set(ctx, key, string(raw)); err != nil {
		return &domain.PersistenceError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (r *Repository) get(ctx context.Context, key string, v any) error {
	raw, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return &domain.PersistenceError{Op: "get", Key: key, Err: err}
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return r.reject(key, fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err))
	}
	return nil
}

// reject logs a record that failed validation and reports it as absent.
func (r *Repository) reject(key string, err error) error {
	r.logger.Warn("Rejected persisted record", "key", key, "err", err)
	return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
}

// Normalize converts v to the JSON-native form it takes after a
// persist/restore round trip.
func Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
