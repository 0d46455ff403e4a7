package runtime

import (
	"fmt"
	"reflect"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// messageArgs is the union of every built-in message payload.
type messageArgs struct {
	Text     string   `mapstructure:"text"`
	Question string   `mapstructure:"question"`
	Options  []string `mapstructure:"options"`
	Title    string   `mapstructure:"title"`
	To       string   `mapstructure:"to"`
}

// Resolve maps an evaluated step to exactly one action. The step's "with"
// must already be rendered and, if it was a string, parsed.
func Resolve(step domain.Step) (domain.Action, error) {
	switch {
	case step.Action == "":
		return domain.NoopAction{Args: step.With}, nil
	case domain.IsMessageAction(step.Action):
		return resolveMessage(step.Action, step.With)
	case domain.IsCustomAction(step.Action):
		return domain.CustomAction{Name: domain.CustomActionName(step.Action), Args: step.With}, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAction, step.Action)
}

func resolveMessage(action string, with any) (domain.Action, error) {
	if action == domain.ActionNote {
		note := domain.NoteContent{}
		var to string
		if m, ok := with.(map[string]any); ok {
			for k, v := range m {
				if k == "to" {
					to, _ = v.(string)
					continue
				}
				note[k] = v
			}
		}
		return domain.MessageAction{Content: note, To: to}, nil
	}

	var args messageArgs
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       scalarToString,
		WeaklyTypedInput: true,
		Result:           &args,
	})
	if err != nil {
		return nil, err
	}
	if with != nil {
		if err := dec.Decode(with); err != nil {
			return nil, fmt.Errorf("%s: invalid with: %w", action, err)
		}
	}

	var content domain.Content
	switch action {
	case domain.ActionText:
		content = domain.TextContent{Text: args.Text}
	case domain.ActionSelect:
		content = domain.SelectContent{Question: args.Question, Options: args.Options}
	case domain.ActionYesNo:
		content = domain.YesNoContent{Question: args.Question}
	case domain.ActionTask:
		content = domain.TaskContent{Title: args.Title, ClosingType: 0}
	}
	return domain.MessageAction{Content: content, To: args.To}, nil
}

// scalarToString prints typed template values the way they would read in a
// message, so true stays "true" rather than the weak decoder's "1".
func scalarToString(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String || data == nil {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprint(data), nil
	}
	return data, nil
}

// ActionName returns the identifier used in logs and metrics.
func ActionName(a domain.Action) string {
	switch act := a.(type) {
	case domain.MessageAction:
		return "message:" + string(act.Content.Kind())
	case domain.CustomAction:
		return domain.CustomActionPrefix + act.Name
	case domain.NoopAction:
		return "noop"
	}
	return "unknown"
}
