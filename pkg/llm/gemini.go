package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// GeminiModel talks to the Gemini API through genai chat sessions. The
// genai client is created on first use.
type GeminiModel struct {
	apiKey string
	model  string

	mu     sync.Mutex
	client *genai.Client
}

func NewGeminiModel(cfg Config) *GeminiModel {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &GeminiModel{apiKey: cfg.APIKey, model: model}
}

func (m *GeminiModel) genaiClient(ctx context.Context) (*genai.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		return m.client, nil
	}
	if m.apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  m.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	m.client = client
	return client, nil
}

func (m *GeminiModel) StartSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	client, err := m.genaiClient(ctx)
	if err != nil {
		return nil, err
	}
	chat, err := client.Chats.Create(ctx, m.model, geminiGenerateConfig(cfg), geminiHistory(cfg.History))
	if err != nil {
		return nil, fmt.Errorf("gemini: start chat: %w", err)
	}
	return &geminiSession{chat: chat}, nil
}

type geminiChat interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type geminiSession struct {
	chat geminiChat
}

func (s *geminiSession) Send(ctx context.Context, parts ...Part) (*Response, error) {
	resp, err := s.chat.SendMessage(ctx, geminiParts(parts)...)
	if err != nil {
		return nil, fmt.Errorf("gemini: send: %w", err)
	}
	return responseFromGemini(resp), nil
}

func geminiGenerateConfig(cfg SessionConfig) *genai.GenerateContentConfig {
	out := &genai.GenerateContentConfig{}
	if cfg.SystemInstruction != "" {
		out.SystemInstruction = genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser)
	}
	if len(cfg.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(cfg.Tools))
		for _, tool := range cfg.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  geminiSchema(tool.Parameters),
			})
		}
		out.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return out
}

func geminiHistory(turns []HistoryTurn) []*genai.Content {
	history := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		role := genai.Role(genai.RoleUser)
		if turn.Role == RoleModel {
			role = genai.RoleModel
		}
		history = append(history, genai.NewContentFromText(turn.Text, role))
	}
	return history
}

func geminiParts(parts []Part) []genai.Part {
	out := make([]genai.Part, 0, len(parts))
	for _, part := range parts {
		if part.FunctionResponse != nil {
			p := genai.NewPartFromFunctionResponse(part.FunctionResponse.Name, part.FunctionResponse.Response)
			if part.FunctionResponse.ID != "" {
				p.FunctionResponse.ID = part.FunctionResponse.ID
			}
			out = append(out, *p)
			continue
		}
		out = append(out, *genai.NewPartFromText(part.Text))
	}
	return out
}

func responseFromGemini(resp *genai.GenerateContentResponse) *Response {
	if resp == nil {
		return NewResponse("")
	}
	var calls []FunctionCall
	for _, call := range resp.FunctionCalls() {
		if call == nil {
			continue
		}
		args := call.Args
		if args == nil {
			args = map[string]any{}
		}
		calls = append(calls, FunctionCall{ID: call.ID, Name: call.Name, Args: args})
	}
	return NewResponse(resp.Text(), calls...)
}

// geminiSchema converts a JSON-schema style parameter map into a genai
// schema. Only the keywords the tool declarations use are mapped.
func geminiSchema(params map[string]any) *genai.Schema {
	if params == nil {
		return nil
	}
	schema := &genai.Schema{}
	if t, ok := params["type"].(string); ok {
		schema.Type = geminiType(t)
	}
	if d, ok := params["description"].(string); ok {
		schema.Description = d
	}
	if props, ok := params["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if child, ok := raw.(map[string]any); ok {
				schema.Properties[name] = geminiSchema(child)
			}
		}
	}
	switch required := params["required"].(type) {
	case []string:
		schema.Required = append(schema.Required, required...)
	case []any:
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := params["items"].(map[string]any); ok {
		schema.Items = geminiSchema(items)
	}
	return schema
}

func geminiType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}
