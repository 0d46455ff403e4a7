package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
)

// Outbound is the JSON body posted to the callback URL and pushed to SSE
// subscribers for every message the bot sends.
type Outbound struct {
	RoomID  string             `json:"room_id"`
	Kind    domain.MessageKind `json:"kind"`
	Content domain.Content     `json:"content"`
}

// Platform sends messages over HTTP. Identity lookups are delegated to a
// Directory, typically loaded from a YAML file.
type Platform struct {
	ports.Directory

	callbackURL string
	client      *http.Client
	streams     *StreamManager
	logger      *slog.Logger
}

// PlatformOption configures the Platform.
type PlatformOption func(*Platform)

// WithCallbackURL posts every outbound message to url.
func WithCallbackURL(url string) PlatformOption {
	return func(p *Platform) {
		p.callbackURL = url
	}
}

// WithHTTPClient replaces the client used for callbacks.
func WithHTTPClient(c *http.Client) PlatformOption {
	return func(p *Platform) {
		if c != nil {
			p.client = c
		}
	}
}

// WithPlatformLogger sets the structured logger.
func WithPlatformLogger(l *slog.Logger) PlatformOption {
	return func(p *Platform) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPlatform creates a Platform. Outbound messages are always broadcast on
// streams; they are also posted when a callback URL is configured.
func NewPlatform(dir ports.Directory, streams *StreamManager, opts ...PlatformOption) *Platform {
	p := &Platform{
		Directory: dir,
		client:    &http.Client{Timeout: 10 * time.Second},
		streams:   streams,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Send implements ports.Sender.
func (p *Platform) Send(ctx context.Context, roomID string, content domain.Content) error {
	body, err := json.Marshal(Outbound{RoomID: roomID, Kind: content.Kind(), Content: content})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if p.streams != nil {
		p.streams.Broadcast(roomID, string(body))
	}
	if p.callbackURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.callbackURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("callback failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned %s", resp.Status)
	}
	p.logger.Debug("Message delivered", "room_id", roomID, "kind", content.Kind())
	return nil
}

// StreamManager fans outbound messages out to SSE subscribers per room.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // roomID -> channels
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logging.NewNop(),
	}
}

func (sm *StreamManager) Subscribe(roomID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[roomID]; !ok {
		sm.subscribers[roomID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[roomID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[roomID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, roomID)
			}
		}
	}
}

func (sm *StreamManager) Broadcast(roomID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[roomID] {
		select {
		case ch <- msg:
		default:
			// Slow client.
			sm.logger.Warn("SSE: client buffer full, dropping message", "room_id", roomID)
		}
	}
}
