package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/trigger"
	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed workflow.schema.json
var schemaJSON string

var schema = func() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("catalog: invalid embedded schema: %v", err))
	}
	return s
}()

// Parse decodes and validates one YAML workflow document.
// Errors are returned as *domain.DefinitionError naming source.
func Parse(source string, data []byte) (*domain.Workflow, error) {
	w, err := parse(data)
	if err != nil {
		return nil, &domain.DefinitionError{File: source, Err: err}
	}
	w.Source = source
	return w, nil
}

func parse(data []byte) (*domain.Workflow, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	if doc == nil {
		return nil, errors.New("empty document")
	}

	res, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("schema: %s", strings.Join(msgs, "; "))
	}

	var w domain.Workflow
	if err := mapstructure.Decode(doc, &w); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	w.On = trigger.Normalize(doc["on"])

	if err := check(&w); err != nil {
		return nil, err
	}
	return &w, nil
}

// check enforces the invariants shared by parsed and programmatic workflows.
func check(w *domain.Workflow) error {
	if w.Name == "" {
		return errors.New("name is required")
	}
	if len(w.Steps) == 0 {
		return errors.New("at least one step is required")
	}
	if _, err := semver.NewVersion(w.Version); err != nil {
		return fmt.Errorf("version %q: %w", w.Version, err)
	}
	if w.On == nil {
		w.On = trigger.Normalize(nil)
	}
	if err := trigger.Validate(w.On); err != nil {
		return err
	}
	return nil
}
