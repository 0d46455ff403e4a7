// Package catalog loads workflow documents and indexes them by name.
//
// A catalog is read-only once built. Lookups preserve load order, which is
// the lexical order of file names for directory loads.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/trigger"
)

// Catalog owns every workflow definition known to the bot.
type Catalog struct {
	workflows []*domain.Workflow
	byName    map[string]*domain.Workflow
}

// Load reads every *.yml and *.yaml file in dir. A single invalid document
// aborts the whole load.
func Load(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yml", ".yaml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	workflows := make([]*domain.Workflow, 0, len(files))
	for _, fn := range files {
		data, err := os.ReadFile(fn)
		if err != nil {
			return nil, &domain.DefinitionError{File: fn, Err: err}
		}
		w, err := Parse(fn, data)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, w)
	}
	return New(workflows...)
}

// New builds a catalog from already decoded workflows, in the given order.
func New(workflows ...*domain.Workflow) (*Catalog, error) {
	c := &Catalog{
		workflows: make([]*domain.Workflow, 0, len(workflows)),
		byName:    make(map[string]*domain.Workflow, len(workflows)),
	}
	for i, w := range workflows {
		source := w.Source
		if source == "" {
			source = fmt.Sprintf("workflow #%d", i)
		}
		if err := check(w); err != nil {
			return nil, &domain.DefinitionError{File: source, Err: err}
		}
		if prev, dup := c.byName[w.Name]; dup {
			return nil, &domain.DefinitionError{
				File: source,
				Err:  fmt.Errorf("name %q already defined by %s", w.Name, prev.Source),
			}
		}
		c.byName[w.Name] = w
		c.workflows = append(c.workflows, w)
	}
	return c, nil
}

// FindByName returns the workflow with the given name.
func (c *Catalog) FindByName(name string) (*domain.Workflow, bool) {
	w, ok := c.byName[name]
	return w, ok
}

// All returns the workflows in catalog order.
func (c *Catalog) All() []*domain.Workflow {
	return append([]*domain.Workflow(nil), c.workflows...)
}

// Names returns every workflow name, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.byName))
	for n := range c.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SelectableNames returns the sorted names of workflows that declare a
// workflow_dispatch trigger.
func (c *Catalog) SelectableNames() []string {
	var names []string
	for _, w := range c.workflows {
		if w.Selectable() {
			names = append(names, w.Name)
		}
	}
	sort.Strings(names)
	return names
}

// DefinitionsFiring returns the workflows whose predicate for t is
// satisfied by ev, in catalog order.
func (c *Catalog) DefinitionsFiring(t domain.EventType, ev domain.Event) []*domain.Workflow {
	var out []*domain.Workflow
	for _, w := range c.workflows {
		if trigger.IsFired(t, w.On[t], ev) {
			out = append(out, w)
		}
	}
	return out
}

// FirstFiring returns the first workflow fired by ev, if any.
func (c *Catalog) FirstFiring(t domain.EventType, ev domain.Event) (*domain.Workflow, bool) {
	for _, w := range c.workflows {
		if trigger.IsFired(t, w.On[t], ev) {
			return w, true
		}
	}
	return nil, false
}

// Len returns the number of workflows.
func (c *Catalog) Len() int { return len(c.workflows) }
