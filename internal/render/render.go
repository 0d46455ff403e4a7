// Package render implements the Handlebars template capability used to
// substitute run data into step definitions.
package render

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/aymerick/raymond"
)

// Engine renders Handlebars templates with a fixed helper set.
// Parsed templates are cached by source. Safe for concurrent use.
type Engine struct {
	cache   sync.Map // source -> *raymond.Template
	helpers map[string]any
}

// New creates an Engine with the default helpers plus extra ones.
func New(extra map[string]any) *Engine {
	helpers := map[string]any{
		"eq":       eq,
		"ne":       ne,
		"and":      and,
		"or":       or,
		"not":      not,
		"contains": contains,
		"default":  fallback,
	}
	for k, v := range extra {
		helpers[k] = v
	}
	return &Engine{helpers: helpers}
}

// Render evaluates source against data. Strings without a mustache are
// returned as-is.
func (e *Engine) Render(source string, data map[string]any) (string, error) {
	if !strings.Contains(source, "{{") {
		return source, nil
	}
	tpl, err := e.parse(source)
	if err != nil {
		return "", err
	}
	out, err := tpl.Exec(data)
	if err != nil {
		return "", fmt.Errorf("template %q: %w", source, err)
	}
	return out, nil
}

func (e *Engine) parse(source string) (*raymond.Template, error) {
	if tpl, ok := e.cache.Load(source); ok {
		return tpl.(*raymond.Template), nil
	}
	tpl, err := raymond.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", source, err)
	}
	tpl.RegisterHelpers(e.helpers)
	actual, _ := e.cache.LoadOrStore(source, tpl)
	return actual.(*raymond.Template), nil
}

func eq(a, b any) bool { return raymond.Str(a) == raymond.Str(b) }

func ne(a, b any) bool { return !eq(a, b) }

func and(a, b any) bool { return raymond.IsTrue(a) && raymond.IsTrue(b) }

func or(a, b any) bool { return raymond.IsTrue(a) || raymond.IsTrue(b) }

func not(a any) bool { return !raymond.IsTrue(a) }

func contains(haystack, needle any) bool {
	if s, ok := haystack.(string); ok {
		return strings.Contains(s, raymond.Str(needle))
	}
	v := reflect.ValueOf(haystack)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		want := raymond.Str(needle)
		for i := 0; i < v.Len(); i++ {
			if raymond.Str(v.Index(i).Interface()) == want {
				return true
			}
		}
	case reflect.Map:
		return v.MapIndex(reflect.ValueOf(raymond.Str(needle))).IsValid()
	}
	return false
}

func fallback(v, def any) any {
	if raymond.IsTrue(v) {
		return v
	}
	return def
}
