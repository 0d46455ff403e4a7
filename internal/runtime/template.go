package runtime

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
	"gopkg.in/yaml.v3"
)

// evaluateStep renders every string of the step against data. A string
// "with" is parsed as YAML after rendering.
func evaluateStep(r ports.Renderer, step domain.Step, data map[string]any) (domain.Step, error) {
	out := step
	var err error

	if out.ID, err = r.Render(step.ID, data); err != nil {
		return out, fmt.Errorf("id: %w", err)
	}
	if out.Name, err = r.Render(step.Name, data); err != nil {
		return out, fmt.Errorf("name: %w", err)
	}
	if out.Action, err = r.Render(step.Action, data); err != nil {
		return out, fmt.Errorf("action: %w", err)
	}
	if s, ok := step.If.(string); ok {
		if out.If, err = r.Render(s, data); err != nil {
			return out, fmt.Errorf("if: %w", err)
		}
	}

	switch w := step.With.(type) {
	case string:
		rendered, err := r.Render(w, data)
		if err != nil {
			return out, fmt.Errorf("with: %w", err)
		}
		var parsed any
		if err := yaml.Unmarshal([]byte(rendered), &parsed); err != nil {
			return out, fmt.Errorf("with: rendered yaml: %w", err)
		}
		out.With = parsed
	default:
		if out.With, err = renderTree(r, w, data); err != nil {
			return out, fmt.Errorf("with: %w", err)
		}
	}
	return out, nil
}

// renderTree renders string leaves of maps and slices, leaving the input
// untouched. A leaf that is a single {{path}} to a non-string value keeps
// that value's type.
func renderTree(r ports.Renderer, v any, data map[string]any) (any, error) {
	switch t := v.(type) {
	case string:
		if val, ok := lookupLeaf(t, data); ok {
			return val, nil
		}
		return r.Render(t, data)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			rendered, err := renderTree(r, item, data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			rendered, err := renderTree(r, item, data)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = rendered
		}
		return out, nil
	}
	return v, nil
}

// guard reports whether an evaluated "if" lets the step run.
func guard(v any) bool {
	switch g := v.(type) {
	case nil:
		return true
	case bool:
		return g
	case string:
		switch strings.ToLower(strings.TrimSpace(g)) {
		case "", "false", "0", "no", "off":
			return false
		}
		return true
	}
	return guard(fmt.Sprint(v))
}

// noWait applies the workflow default to an unset step flag.
func noWait(step domain.Step, defaults domain.Defaults) bool {
	if step.NoWait != nil {
		return *step.NoWait
	}
	if defaults.NoWait != nil {
		return *defaults.NoWait
	}
	return false
}

// lookupLeaf resolves a leaf of the form "{{a.b.c}}" against data. It
// reports false for anything else, including paths that end on a string or
// on nothing, so those still go through the renderer.
func lookupLeaf(leaf string, data map[string]any) (any, bool) {
	expr := strings.TrimSpace(leaf)
	if !strings.HasPrefix(expr, "{{") || !strings.HasSuffix(expr, "}}") || strings.HasPrefix(expr, "{{{") {
		return nil, false
	}
	path := strings.TrimSpace(expr[2 : len(expr)-2])
	if path == "" || strings.ContainsAny(path, " \t{}#/^!>&()\"'=") {
		return nil, false
	}

	var cur any = data
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	switch cur.(type) {
	case nil, string:
		return nil, false
	}
	return cur, true
}
