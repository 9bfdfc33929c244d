package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Roles used in session history.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Model starts stateful chat sessions.
type Model interface {
	StartSession(ctx context.Context, cfg SessionConfig) (Session, error)
}

// Session is one conversation with a model. Each Send appends to the
// session transcript; a session is owned by a single goroutine.
type Session interface {
	Send(ctx context.Context, parts ...Part) (*Response, error)
}

// SessionConfig seeds a session.
type SessionConfig struct {
	SystemInstruction string
	History           []HistoryTurn
	Tools             []Tool
}

// HistoryTurn is a prior text turn. Role is RoleUser or RoleModel.
type HistoryTurn struct {
	Role string
	Text string
}

// FunctionCall is a structured tool invocation requested by the model.
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

// FunctionResponse carries a tool result back to the model.
type FunctionResponse struct {
	ID       string
	Name     string
	Response map[string]any
}

// Part is one piece of an outgoing message: text or a function response.
type Part struct {
	Text             string
	FunctionResponse *FunctionResponse
}

func TextPart(text string) Part {
	return Part{Text: text}
}

func FunctionResponsePart(resp FunctionResponse) Part {
	return Part{FunctionResponse: &resp}
}

// Response is a complete model reply.
type Response struct {
	text  string
	calls []FunctionCall
}

// NewResponse builds a Response. Exposed for fakes in tests.
func NewResponse(text string, calls ...FunctionCall) *Response {
	return &Response{text: text, calls: calls}
}

// Text returns the concatenated text of the reply.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return r.text
}

// FunctionCalls returns the tool calls requested by the reply, in order.
func (r *Response) FunctionCalls() []FunctionCall {
	if r == nil {
		return nil
	}
	return r.calls
}

// ProviderModel adapts a streaming Provider to the session contract by
// keeping the transcript client side and replaying it on every send.
type ProviderModel struct {
	provider Provider
}

func NewProviderModel(provider Provider) *ProviderModel {
	return &ProviderModel{provider: provider}
}

func (m *ProviderModel) StartSession(_ context.Context, cfg SessionConfig) (Session, error) {
	messages := make([]Message, 0, len(cfg.History)+1)
	if cfg.SystemInstruction != "" {
		messages = append(messages, Message{Role: "system", Content: cfg.SystemInstruction})
	}
	for _, turn := range cfg.History {
		role := "user"
		if turn.Role == RoleModel {
			role = "assistant"
		}
		messages = append(messages, Message{Role: role, Content: turn.Text})
	}
	return &providerSession{provider: m.provider, messages: messages, tools: cfg.Tools}, nil
}

type providerSession struct {
	provider Provider
	messages []Message
	tools    []Tool
}

func (s *providerSession) Send(ctx context.Context, parts ...Part) (*Response, error) {
	if len(parts) == 0 {
		return nil, errors.New("send: no parts")
	}
	for _, part := range parts {
		if part.FunctionResponse == nil {
			s.messages = append(s.messages, Message{Role: "user", Content: part.Text})
			continue
		}
		payload, err := json.Marshal(part.FunctionResponse.Response)
		if err != nil {
			return nil, fmt.Errorf("send: encode function response: %w", err)
		}
		s.messages = append(s.messages, Message{
			Role:       "tool",
			Name:       part.FunctionResponse.Name,
			ToolCallID: part.FunctionResponse.ID,
			Content:    string(payload),
		})
	}

	stream, err := s.provider.Complete(ctx, s.messages, s.tools)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var content strings.Builder
	var toolCalls []ToolCall
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stream: %w", err)
		}
		content.WriteString(chunk.Content)
		toolCalls = mergeToolCalls(toolCalls, chunk.ToolCalls)
	}

	calls := make([]FunctionCall, 0, len(toolCalls))
	for _, call := range toolCalls {
		args := map[string]any{}
		if raw := strings.TrimSpace(call.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("decode arguments for %s: %w", call.Name, err)
			}
		}
		calls = append(calls, FunctionCall{ID: call.ID, Name: call.Name, Args: args})
	}

	s.messages = append(s.messages, Message{
		Role:      "assistant",
		Content:   content.String(),
		ToolCalls: toolCalls,
	})
	return NewResponse(content.String(), calls...), nil
}

// mergeToolCalls folds streamed fragments into whole calls. Fragments with
// no ID continue the most recent call.
func mergeToolCalls(existing, incoming []ToolCall) []ToolCall {
	for _, inc := range incoming {
		if inc.ID == "" && len(existing) > 0 {
			last := &existing[len(existing)-1]
			last.Arguments += inc.Arguments
			if last.Name == "" {
				last.Name = inc.Name
			}
			continue
		}
		found := false
		for i, ex := range existing {
			if ex.ID != "" && ex.ID == inc.ID {
				existing[i].Arguments += inc.Arguments
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, inc)
		}
	}
	return existing
}
