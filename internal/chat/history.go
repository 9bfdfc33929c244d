package chat

import (
	"errors"
	"strings"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message of a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SanitizeHistory returns the turns a model session will accept as prior
// history: turns with an unknown role or no text are dropped, as is every
// model turn before the first user turn (usually the UI greeting). The
// input is not modified.
func SanitizeHistory(turns []Turn) []Turn {
	out := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if t.Role != RoleUser && t.Role != RoleModel {
			continue
		}
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		if len(out) == 0 && t.Role == RoleModel {
			continue
		}
		out = append(out, t)
	}
	return out
}

var errNoUserMessage = errors.New("the last message must be a non-empty user message")

// SplitConversation separates prior history from the newest user message.
// The client may send the assistant role as "assistant"; it is treated as
// model.
func SplitConversation(messages []Turn) ([]Turn, string, error) {
	if len(messages) == 0 {
		return nil, "", errNoUserMessage
	}
	last := messages[len(messages)-1]
	if normalizeRole(last.Role) != RoleUser || strings.TrimSpace(last.Content) == "" {
		return nil, "", errNoUserMessage
	}

	history := make([]Turn, 0, len(messages)-1)
	for _, m := range messages[:len(messages)-1] {
		history = append(history, Turn{Role: normalizeRole(m.Role), Content: m.Content})
	}
	return history, last.Content, nil
}

func normalizeRole(r Role) Role {
	switch strings.ToLower(string(r)) {
	case "user":
		return RoleUser
	case "model", "assistant":
		return RoleModel
	default:
		return r
	}
}
