package chat

import (
	"errors"
	"strings"
)

const (
	errorPrefix         = "ERROR: "
	configurationPrefix = "Configuration Error: "
	fallbackMessage     = "System Malfunction"
)

// ErrorEnvelope is a failed turn shaped so a client can still render it as
// an assistant message.
type ErrorEnvelope struct {
	Error    string `json:"error"`
	Role     Role   `json:"role"`
	Content  string `json:"content"`
	Degraded bool   `json:"degraded"`
}

func ToReply(text string) Reply {
	return Reply{Role: RoleModel, Content: text}
}

func ToErrorEnvelope(err error) ErrorEnvelope {
	msg := fallbackMessage
	if err != nil && strings.TrimSpace(err.Error()) != "" {
		msg = err.Error()
	}
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		msg = configurationPrefix + msg
	}
	return ErrorEnvelope{
		Error:    msg,
		Role:     RoleModel,
		Content:  errorPrefix + msg,
		Degraded: true,
	}
}
