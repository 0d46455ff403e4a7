package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/aretw0/chatflow/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Message is one piece of content recorded by Platform.Send.
type Message struct {
	RoomID  string
	Content domain.Content
}

// Platform implements ports.Platform with a static room directory and an
// outbox. It backs tests and the console adapter.
type Platform struct {
	mu     sync.RWMutex
	botID  string
	rooms  map[string]domain.Room
	outbox []Message
}

// NewPlatform creates a platform whose bot posts as botID.
func NewPlatform(botID string, rooms ...domain.Room) *Platform {
	p := &Platform{botID: botID, rooms: make(map[string]domain.Room)}
	for _, r := range rooms {
		p.rooms[r.ID] = r
	}
	return p
}

// directoryFile is the on-disk shape read by LoadPlatform.
type directoryFile struct {
	Bot struct {
		ID string `yaml:"id"`
	} `yaml:"bot"`
	Rooms []domain.Room `yaml:"rooms"`
}

// LoadPlatform reads a YAML directory of rooms and their members.
//
//	bot: {id: bot}
//	rooms:
//	  - id: r1
//	    type: 1
//	    users: [{id: u1, display_name: Ann}, {id: bot}]
func LoadPlatform(path string) (*Platform, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
	}
	var f directoryFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse directory %s: %w", path, err)
	}
	return NewPlatform(f.Bot.ID, f.Rooms...), nil
}

// AddRoom registers or replaces a room.
func (p *Platform) AddRoom(r domain.Room) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rooms[r.ID] = r
}

// Send records the message in the outbox.
func (p *Platform) Send(ctx context.Context, roomID string, content domain.Content) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outbox = append(p.outbox, Message{RoomID: roomID, Content: content})
	return nil
}

// Sent returns a copy of every message sent so far.
func (p *Platform) Sent() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Message(nil), p.outbox...)
}

// Drain returns and clears the outbox.
func (p *Platform) Drain() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.outbox
	p.outbox = nil
	return out
}

func (p *Platform) Room(ctx context.Context, roomID string) (domain.Room, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.rooms[roomID]
	if !ok {
		return domain.Room{}, fmt.Errorf("room %s: %w", roomID, domain.ErrNotFound)
	}
	return r, nil
}

func (p *Platform) FindPairRoom(ctx context.Context, displayName string) (domain.Room, domain.User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.rooms))
	for id := range p.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		r := p.rooms[id]
		if r.Type != domain.RoomPair {
			continue
		}
		if u, ok := r.HasDisplayName(displayName); ok {
			return r, u, nil
		}
	}
	return domain.Room{}, domain.User{}, fmt.Errorf("pair room for %q: %w", displayName, domain.ErrNotFound)
}

func (p *Platform) BotUserID() string { return p.botID }
