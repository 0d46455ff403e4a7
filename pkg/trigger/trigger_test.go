package trigger_test

import (
	"testing"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func decode(t *testing.T, doc string) any {
	t.Helper()
	var v struct {
		On any `yaml:"on"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(doc), &v))
	return v.On
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want domain.TriggerMap
	}{
		{
			name: "omitted defaults to dispatch",
			doc:  "name: x",
			want: domain.TriggerMap{domain.EventWorkflowDispatch: {}},
		},
		{
			name: "bare string",
			doc:  "on: select",
			want: domain.TriggerMap{domain.EventSelect: {}},
		},
		{
			name: "array merges later wins",
			doc: `on:
  - text
  - workflow_dispatch
  - text: {match: "^hi"}`,
			want: domain.TriggerMap{
				domain.EventText:             {"match": "^hi"},
				domain.EventWorkflowDispatch: {},
			},
		},
		{
			name: "null and true become wildcards",
			doc: `on:
  text:
  join: true`,
			want: domain.TriggerMap{domain.EventText: {}, domain.EventJoin: {}},
		},
		{
			name: "invalid values dropped",
			doc: `on:
  text: 3
  join: false
  leave: "x"
  select: {response: 1}`,
			want: domain.TriggerMap{domain.EventSelect: {"response": 1}},
		},
		{
			name: "unknown scalar yields empty map",
			doc:  "on: 42",
			want: domain.TriggerMap{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := trigger.Normalize(decode(t, tt.doc))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	docs := []string{
		"name: x",
		"on: text",
		"on: [text, {select: {question: {match: dept}}}]",
		"on: {note_created: {title: report, has_attachments: true}, file: null}",
	}
	for _, doc := range docs {
		once := trigger.Normalize(decode(t, doc))
		twice := trigger.Normalize(once)
		assert.Equal(t, once, twice, doc)
	}
}

func TestIsFired_Wildcard(t *testing.T) {
	events := []domain.Event{
		{Type: domain.EventText, Text: "anything"},
		{Type: domain.EventSelect, Select: &domain.SelectReply{Question: "q"}},
		{Type: domain.EventFiles},
		{Type: domain.EventJoin},
	}
	for _, ev := range events {
		assert.True(t, trigger.IsFired(ev.Type, domain.Predicate{}, ev), ev.Type)
	}
	assert.False(t, trigger.IsFired(domain.EventText, nil, events[0]))
}

func TestIsFired_Text(t *testing.T) {
	p := domain.Predicate{"match": `^onboard(ing)?\b`}
	assert.True(t, trigger.IsFired(domain.EventText, p, domain.Event{Type: domain.EventText, Text: "onboarding please"}))
	assert.False(t, trigger.IsFired(domain.EventText, p, domain.Event{Type: domain.EventText, Text: "start onboarding"}))
	assert.False(t, trigger.IsFired(domain.EventText, domain.Predicate{"other": "x"}, domain.Event{Type: domain.EventText, Text: "x"}))
}

func TestIsFired_Select(t *testing.T) {
	one := 1
	ev := domain.Event{
		Type: domain.EventSelect,
		Select: &domain.SelectReply{
			Question: "Which department?",
			Options:  []string{"Sales", "Engineering"},
			Response: &one,
		},
	}

	t.Run("question regex", func(t *testing.T) {
		p := domain.Predicate{"question": map[string]any{"match": "department"}}
		assert.True(t, trigger.IsFired(domain.EventSelect, p, ev))
	})
	t.Run("exact index", func(t *testing.T) {
		assert.True(t, trigger.IsFired(domain.EventSelect, domain.Predicate{"response": 1}, ev))
		assert.False(t, trigger.IsFired(domain.EventSelect, domain.Predicate{"response": 0}, ev))
	})
	t.Run("option text regex", func(t *testing.T) {
		p := domain.Predicate{"response": map[string]any{"match": "^Eng"}}
		assert.True(t, trigger.IsFired(domain.EventSelect, p, ev))
	})
	t.Run("fields are ORed", func(t *testing.T) {
		p := domain.Predicate{
			"question": map[string]any{"match": "nope"},
			"response": 1,
		}
		assert.True(t, trigger.IsFired(domain.EventSelect, p, ev))
	})
	t.Run("nothing matches", func(t *testing.T) {
		p := domain.Predicate{
			"question": map[string]any{"match": "nope"},
			"response": map[string]any{"match": "^Sales$"},
		}
		assert.False(t, trigger.IsFired(domain.EventSelect, p, ev))
	})
}

func TestIsFired_Files(t *testing.T) {
	ev := domain.Event{Type: domain.EventFiles, Files: []domain.RemoteFile{
		{Name: "a.pdf", ContentType: "application/pdf"},
		{Name: "b.png", ContentType: "image/png"},
	}}
	assert.False(t, trigger.IsFired(domain.EventFiles, domain.Predicate{"name": `\.pdf$`}, ev))
	assert.True(t, trigger.IsFired(domain.EventFiles, domain.Predicate{"name": `\.(pdf|png)$`}, ev))
	assert.True(t, trigger.IsFired(domain.EventFiles, domain.Predicate{"name": `\.pdf$`, "type": `^(application|image)/`}, ev))

	single := domain.Event{Type: domain.EventFile, File: &domain.RemoteFile{Name: "c.txt", ContentType: "text/plain"}}
	assert.True(t, trigger.IsFired(domain.EventFile, domain.Predicate{"type": "^text/"}, single))
}

func TestIsFired_Note(t *testing.T) {
	ev := domain.Event{Type: domain.EventNoteUpdated, Note: &domain.Note{ID: "n1", Title: "Weekly report", HasAttachments: false}}
	assert.True(t, trigger.IsFired(ev.Type, domain.Predicate{"title": "report"}, ev))
	assert.True(t, trigger.IsFired(ev.Type, domain.Predicate{"has_attachments": false}, ev))
	assert.False(t, trigger.IsFired(ev.Type, domain.Predicate{"has_attachments": true, "title": "^minutes"}, ev))
}

func TestValidate(t *testing.T) {
	require.NoError(t, trigger.Validate(domain.TriggerMap{domain.EventText: {"match": "^ok"}}))

	err := trigger.Validate(domain.TriggerMap{domain.EventSelect: {"question": map[string]any{"match": "("}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "select.question.match")
}
