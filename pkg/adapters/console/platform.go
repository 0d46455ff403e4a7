// Package console runs a bot against the local terminal: every line read
// from the input becomes an event in a single pair room, and everything the
// bot sends is printed.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
)

// RoomID is the room console events are delivered to.
const RoomID = "console"

// MaxInputSize bounds a single input line.
const MaxInputSize = 4096

// DefaultUser is the participant typing at the console.
var DefaultUser = domain.User{ID: "console-user", Name: "you", DisplayName: "You"}

// Platform implements ports.Platform and ports.Subscriber on a reader and
// writer pair.
type Platform struct {
	ports.Directory

	in       io.Reader
	out      io.Writer
	user     domain.User
	renderer func(string) (string, error)
	prompt   string

	mu      sync.Mutex
	pending domain.Content // last stamp sent to the console room
}

// Option configures the Platform.
type Option func(*Platform)

// WithRenderer renders text messages (markdown) before printing.
func WithRenderer(r func(string) (string, error)) Option {
	return func(p *Platform) {
		p.renderer = r
	}
}

// WithUser sets who the console user is.
func WithUser(u domain.User) Option {
	return func(p *Platform) {
		p.user = u
	}
}

// WithDirectory replaces the default one-room directory. The directory
// should contain a room with id RoomID.
func WithDirectory(d ports.Directory) Option {
	return func(p *Platform) {
		if d != nil {
			p.Directory = d
		}
	}
}

// WithPrompt sets the string printed before each read.
func WithPrompt(s string) Option {
	return func(p *Platform) {
		p.prompt = s
	}
}

// NewPlatform creates a console platform reading lines from in and writing
// to out.
func NewPlatform(in io.Reader, out io.Writer, opts ...Option) *Platform {
	p := &Platform{
		in:     in,
		out:    out,
		user:   DefaultUser,
		prompt: "> ",
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.Directory == nil {
		p.Directory = memory.NewPlatform("bot", domain.Room{
			ID:    RoomID,
			Type:  domain.RoomPair,
			Users: []domain.User{p.user, {ID: "bot", DisplayName: "bot"}},
		})
	}
	return p
}

// Send prints content. Messages addressed to other rooms are prefixed with
// the room id.
func (p *Platform) Send(ctx context.Context, roomID string, content domain.Content) error {
	var b strings.Builder
	if roomID != RoomID {
		fmt.Fprintf(&b, "[%s] ", roomID)
	}

	switch c := content.(type) {
	case domain.TextContent:
		b.WriteString(p.render(c.Text))
	case domain.SelectContent:
		b.WriteString(c.Question)
		for i, o := range c.Options {
			fmt.Fprintf(&b, "\n  %d) %s", i+1, o)
		}
	case domain.YesNoContent:
		fmt.Fprintf(&b, "%s (y/n)", c.Question)
	case domain.TaskContent:
		fmt.Fprintf(&b, "[ ] %s (type \"done\" to close)", c.Title)
	case domain.NoteContent:
		fmt.Fprintf(&b, "Note: %v", c["title"])
	default:
		return fmt.Errorf("unsupported content kind %q", content.Kind())
	}

	if roomID == RoomID {
		p.mu.Lock()
		switch content.(type) {
		case domain.SelectContent, domain.YesNoContent, domain.TaskContent:
			p.pending = content
		}
		p.mu.Unlock()
	}
	_, err := fmt.Fprintln(p.out, b.String())
	return err
}

func (p *Platform) render(text string) string {
	if p.renderer == nil {
		return text
	}
	out, err := p.renderer(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(out)
}

type line struct {
	text string
	err  error
}

// Subscribe reads lines until the input ends or ctx is cancelled. Handler
// errors are printed and do not stop the loop.
func (p *Platform) Subscribe(ctx context.Context, h ports.EventHandler) error {
	lines := make(chan line)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(p.in)
		for scanner.Scan() {
			select {
			case lines <- line{text: scanner.Text()}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case lines <- line{err: err}:
			case <-ctx.Done():
			}
		}
	}()

	for {
		fmt.Fprint(p.out, p.prompt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			if l.err != nil {
				return fmt.Errorf("failed to read input: %w", l.err)
			}
			text := strings.TrimSpace(l.text)
			if text == "" {
				continue
			}
			if err := validateInput(text); err != nil {
				fmt.Fprintf(p.out, "Error: %v. Please try again.\n", err)
				continue
			}
			if err := h(ctx, p.Event(text)); err != nil {
				fmt.Fprintf(p.out, "Error: %v\n", err)
			}
		}
	}
}

func validateInput(s string) error {
	if len(s) > MaxInputSize {
		return fmt.Errorf("input exceeds %d bytes", MaxInputSize)
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("input contains invalid UTF-8")
	}
	return nil
}

// Event turns one input line into an event. While a stamp is pending, a
// matching answer (an option number, y/n, or "done") replies to it.
// ":join" and ":leave" simulate membership changes of the console user.
func (p *Platform) Event(text string) domain.Event {
	ev := domain.Event{Type: domain.EventText, RoomID: RoomID, User: p.user, Text: text}

	switch text {
	case ":join", ":leave":
		ev.Type = domain.EventJoin
		if text == ":leave" {
			ev.Type = domain.EventLeave
		}
		ev.Text = ""
		ev.Users = []domain.User{p.user}
		return ev
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	switch c := p.pending.(type) {
	case domain.SelectContent:
		n, err := strconv.Atoi(text)
		if err != nil || n < 1 || n > len(c.Options) {
			return ev
		}
		i := n - 1
		ev.Type, ev.Text = domain.EventSelect, ""
		ev.Select = &domain.SelectReply{Question: c.Question, Options: c.Options, Response: &i}
	case domain.YesNoContent:
		var yes bool
		switch strings.ToLower(text) {
		case "y", "yes":
			yes = true
		case "n", "no":
		default:
			return ev
		}
		ev.Type, ev.Text = domain.EventYesNo, ""
		ev.YesNo = &domain.YesNoReply{Question: c.Question, Response: &yes}
	case domain.TaskContent:
		if !strings.EqualFold(text, "done") {
			return ev
		}
		done := true
		ev.Type, ev.Text = domain.EventTask, ""
		ev.Task = &domain.TaskReply{Title: c.Title, Done: &done}
	default:
		return ev
	}
	p.pending = nil
	return ev
}
