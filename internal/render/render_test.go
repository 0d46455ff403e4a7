package render_test

import (
	"testing"

	"github.com/aretw0/chatflow/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	e := render.New(nil)
	data := map[string]any{
		"q1": map[string]any{"response": "Ann", "responder": map[string]any{"id": "u1"}},
		"q2": map[string]any{"response": float64(1), "options": []any{"A", "B"}},
		"q3": map[string]any{"response": true},
	}

	tests := []struct {
		name string
		tpl  string
		want string
	}{
		{"plain", "Name?", "Name?"},
		{"path", "Hello {{q1.response}}", "Hello Ann"},
		{"missing renders empty", "[{{nope.response}}]", "[]"},
		{"eq", "{{eq q1.response 'Ann'}}", "true"},
		{"eq number", "{{eq q2.response 1}}", "true"},
		{"ne", "{{ne q1.response 'Ann'}}", "false"},
		{"not", "{{not q3.response}}", "false"},
		{"and", "{{and q3.response q1.response}}", "true"},
		{"or", "{{or nope.response q3.response}}", "true"},
		{"contains list", "{{contains q2.options 'B'}}", "true"},
		{"contains string", "{{contains q1.response 'nn'}}", "true"},
		{"default", "{{default nope.response 'anon'}}", "anon"},
		{"if block", "{{#if (eq q1.response 'Ann')}}hi{{else}}bye{{/if}}", "hi"},
		{"each", "{{#each q2.options}}{{this}};{{/each}}", "A;B;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Render(tt.tpl, data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_ParseError(t *testing.T) {
	e := render.New(nil)
	_, err := e.Render("{{#if x}}unterminated", nil)
	assert.Error(t, err)
}

func TestRender_ExtraHelpers(t *testing.T) {
	e := render.New(map[string]any{
		"shout": func(s string) string { return s + "!" },
	})
	got, err := e.Render("{{shout q}}", map[string]any{"q": "hey"})
	require.NoError(t, err)
	assert.Equal(t, "hey!", got)
}
