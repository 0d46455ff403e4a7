package ports

import (
	"context"

	"github.com/aretw0/chatflow/pkg/domain"
)

// Sender delivers structured content into a room.
type Sender interface {
	Send(ctx context.Context, roomID string, content domain.Content) error
}

// Directory answers identity lookups against the platform.
type Directory interface {
	// Room returns the room with its current members.
	// Returns domain.ErrNotFound for unknown rooms.
	Room(ctx context.Context, roomID string) (domain.Room, error)

	// FindPairRoom returns the one-to-one room shared with the user whose
	// display name matches, together with that user.
	// Returns domain.ErrNotFound when no such room exists.
	FindPairRoom(ctx context.Context, displayName string) (domain.Room, domain.User, error)

	// BotUserID is the platform identity the bot itself posts as.
	BotUserID() string
}

// Platform is everything the engine needs from a chat adapter.
type Platform interface {
	Sender
	Directory
}

// EventHandler consumes one inbound event.
type EventHandler func(ctx context.Context, ev domain.Event) error

// Subscriber is implemented by adapters that produce inbound events.
// Subscribe blocks, feeding events to h until ctx is cancelled or the
// source is exhausted.
type Subscriber interface {
	Subscribe(ctx context.Context, h EventHandler) error
}

// Renderer substitutes run data into a template.
type Renderer interface {
	Render(template string, data map[string]any) (string, error)
}
