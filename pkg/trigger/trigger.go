// Package trigger normalizes workflow entry declarations and decides whether
// an inbound event satisfies them.
package trigger

import (
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/dlclark/regexp2"
)

// MatchTimeout bounds a single regex evaluation against event text.
var MatchTimeout = 100 * time.Millisecond

// Normalize turns a raw "on" declaration into its canonical form.
//
// An array merges its elements (later keys win), a bare string becomes a
// wildcard for that event type, null and true values become wildcards and
// any other non-object value is dropped. A missing declaration makes the
// workflow selectable only.
func Normalize(on any) domain.TriggerMap {
	if on == nil {
		return domain.TriggerMap{domain.EventWorkflowDispatch: {}}
	}
	return normalize(on)
}

func normalize(on any) domain.TriggerMap {
	out := domain.TriggerMap{}
	switch v := on.(type) {
	case []any:
		for _, item := range v {
			if item == nil {
				continue
			}
			maps.Copy(out, normalize(item))
		}
	case []string:
		for _, item := range v {
			out[domain.EventType(item)] = domain.Predicate{}
		}
	case string:
		out[domain.EventType(v)] = domain.Predicate{}
	case domain.EventType:
		out[v] = domain.Predicate{}
	case domain.TriggerMap:
		for k, p := range v {
			if p == nil {
				out[k] = domain.Predicate{}
				continue
			}
			out[k] = maps.Clone(p)
		}
	case map[string]any:
		for k, raw := range v {
			if p, ok := predicate(raw); ok {
				out[domain.EventType(k)] = p
			}
		}
	case map[domain.EventType]any:
		for k, raw := range v {
			if p, ok := predicate(raw); ok {
				out[k] = p
			}
		}
	}
	return out
}

func predicate(raw any) (domain.Predicate, bool) {
	switch p := raw.(type) {
	case nil:
		return domain.Predicate{}, true
	case bool:
		if p {
			return domain.Predicate{}, true
		}
	case domain.Predicate:
		return maps.Clone(p), true
	case map[string]any:
		return domain.Predicate(maps.Clone(p)), true
	}
	return nil, false
}

// IsFired reports whether ev satisfies the predicate declared for type t.
// A nil predicate never fires and an empty one always does. Otherwise the
// declared fields are tried in order and the first match fires.
func IsFired(t domain.EventType, p domain.Predicate, ev domain.Event) bool {
	if p == nil {
		return false
	}
	if len(p) == 0 {
		return true
	}
	switch t {
	case domain.EventText:
		if pattern, ok := p["match"].(string); ok && match(pattern, ev.Text) {
			return true
		}
	case domain.EventFile:
		if ev.File == nil {
			return false
		}
		if pattern, ok := p["name"].(string); ok && match(pattern, ev.File.Name) {
			return true
		}
		if pattern, ok := p["type"].(string); ok && match(pattern, ev.File.ContentType) {
			return true
		}
	case domain.EventFiles:
		if pattern, ok := p["name"].(string); ok && every(ev.Files, pattern, func(f domain.RemoteFile) string { return f.Name }) {
			return true
		}
		if pattern, ok := p["type"].(string); ok && every(ev.Files, pattern, func(f domain.RemoteFile) string { return f.ContentType }) {
			return true
		}
	case domain.EventSelect:
		return selectFired(p, ev.Select)
	case domain.EventNoteCreated, domain.EventNoteUpdated, domain.EventNoteDeleted:
		if ev.Note == nil {
			return false
		}
		if pattern, ok := p["title"].(string); ok && match(pattern, ev.Note.Title) {
			return true
		}
		if want, ok := p["has_attachments"].(bool); ok && want == ev.Note.HasAttachments {
			return true
		}
	}
	return false
}

func selectFired(p domain.Predicate, s *domain.SelectReply) bool {
	if s == nil {
		return false
	}
	if pattern, ok := nestedMatch(p["question"]); ok && match(pattern, s.Question) {
		return true
	}
	if want, ok := toInt(p["response"]); ok && s.Response != nil && *s.Response == want {
		return true
	}
	if pattern, ok := nestedMatch(p["response"]); ok {
		if chosen, ok := s.Chosen(); ok && match(pattern, chosen) {
			return true
		}
	}
	return false
}

func every(files []domain.RemoteFile, pattern string, field func(domain.RemoteFile) string) bool {
	for _, f := range files {
		if !match(pattern, field(f)) {
			return false
		}
	}
	return true
}

func nestedMatch(v any) (string, bool) {
	switch m := v.(type) {
	case map[string]any:
		s, ok := m["match"].(string)
		return s, ok
	case domain.Predicate:
		s, ok := m["match"].(string)
		return s, ok
	}
	return "", false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

var cache sync.Map // pattern -> *regexp2.Regexp

func compile(pattern string) (*regexp2.Regexp, error) {
	if re, ok := cache.Load(pattern); ok {
		return re.(*regexp2.Regexp), nil
	}
	re, err := regexp2.Compile(pattern, regexp2.ECMAScript)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = MatchTimeout
	cache.Store(pattern, re)
	return re, nil
}

// match reports an unanchored search hit. Invalid patterns and timeouts
// count as misses; Validate rejects the former at load time.
func match(pattern, s string) bool {
	re, err := compile(pattern)
	if err != nil {
		return false
	}
	ok, err := re.MatchString(s)
	return err == nil && ok
}

// Validate compiles every regex field of a normalized trigger map.
func Validate(m domain.TriggerMap) error {
	for t, p := range m {
		for _, field := range []string{"match", "name", "type", "title"} {
			if pattern, ok := p[field].(string); ok {
				if _, err := compile(pattern); err != nil {
					return fmt.Errorf("trigger %s.%s: %w", t, field, err)
				}
			}
		}
		for _, field := range []string{"question", "response"} {
			if pattern, ok := nestedMatch(p[field]); ok {
				if _, err := compile(pattern); err != nil {
					return fmt.Errorf("trigger %s.%s.match: %w", t, field, err)
				}
			}
		}
	}
	return nil
}
