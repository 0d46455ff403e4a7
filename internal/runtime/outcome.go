package runtime

import "github.com/aretw0/chatflow/pkg/domain"

// replyOutcome is what a reply records under the waiting step's id.
// Every outcome carries the responder and a "response" field.
func replyOutcome(ev domain.Event) map[string]any {
	out := map[string]any{"responder": userFields(ev.User)}
	switch ev.Type {
	case domain.EventText:
		out["response"] = ev.Text
	case domain.EventSelect:
		if s := ev.Select; s != nil {
			out["question"] = s.Question
			out["options"] = s.Options
			out["response"] = s.Response
		}
	case domain.EventYesNo:
		if y := ev.YesNo; y != nil {
			out["question"] = y.Question
			out["response"] = y.Response
		}
	case domain.EventTask:
		if t := ev.Task; t != nil {
			out["title"] = t.Title
			out["response"] = t.Done
		}
	case domain.EventNoteCreated, domain.EventNoteUpdated, domain.EventNoteDeleted:
		if n := ev.Note; n != nil {
			out["id"] = n.ID
			out["title"] = n.Title
			out["has_attachments"] = n.HasAttachments
			out["response"] = *n
		}
	case domain.EventJoin, domain.EventLeave:
		out["users"] = ev.Users
		out["response"] = ev.Users
	default:
		out["response"] = ev.Payload()
	}
	return out
}

func userFields(u domain.User) map[string]any {
	m := map[string]any{"id": u.ID}
	if u.Name != "" {
		m["name"] = u.Name
	}
	if u.DisplayName != "" {
		m["display_name"] = u.DisplayName
	}
	return m
}
