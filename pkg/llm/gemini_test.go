package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGeminiChat struct {
	sent    [][]genai.Part
	replies []*genai.GenerateContentResponse
	err     error
}

func (f *fakeGeminiChat) SendMessage(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.sent = append(f.sent, parts)
	if f.err != nil {
		return nil, f.err
	}
	resp := f.replies[0]
	f.replies = f.replies[1:]
	return resp, nil
}

func geminiReply(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: parts},
		}},
	}
}

func TestGeminiSession_FunctionCallRoundTrip(t *testing.T) {
	chat := &fakeGeminiChat{replies: []*genai.GenerateContentResponse{
		geminiReply(&genai.Part{FunctionCall: &genai.FunctionCall{
			Name: "query_telemetry",
			Args: map[string]any{"sql_query": "SELECT 1"},
		}}),
		geminiReply(&genai.Part{Text: "Average was 21.3°C."}),
	}}
	session := &geminiSession{chat: chat}

	first, err := session.Send(context.Background(), TextPart("avg temp?"))
	require.NoError(t, err)
	require.Len(t, first.FunctionCalls(), 1)
	assert.Equal(t, "query_telemetry", first.FunctionCalls()[0].Name)
	assert.Equal(t, "SELECT 1", first.FunctionCalls()[0].Args["sql_query"])

	second, err := session.Send(context.Background(), FunctionResponsePart(FunctionResponse{
		Name:     "query_telemetry",
		Response: map[string]any{"result": []map[string]any{{"avg_temp": 21.3}}},
	}))
	require.NoError(t, err)
	assert.Equal(t, "Average was 21.3°C.", second.Text())
	assert.Empty(t, second.FunctionCalls())

	require.Len(t, chat.sent, 2)
	assert.Equal(t, "avg temp?", chat.sent[0][0].Text)
	require.NotNil(t, chat.sent[1][0].FunctionResponse)
	assert.Equal(t, "query_telemetry", chat.sent[1][0].FunctionResponse.Name)
}

func TestGeminiSession_SendError(t *testing.T) {
	session := &geminiSession{chat: &fakeGeminiChat{err: errors.New("quota exceeded")}}
	_, err := session.Send(context.Background(), TextPart("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGeminiModel_RequiresAPIKey(t *testing.T) {
	m := NewGeminiModel(Config{})
	_, err := m.StartSession(context.Background(), SessionConfig{})
	require.Error(t, err)
	assert.Equal(t, DefaultModel, m.model)
}

func TestGeminiGenerateConfig(t *testing.T) {
	cfg := geminiGenerateConfig(SessionConfig{
		SystemInstruction: "You are DAINO.",
		Tools: []Tool{{
			Name:        "query_telemetry",
			Description: "Run SQL",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"sql_query": map[string]any{"type": "string", "description": "SQL"},
				},
				"required": []string{"sql_query"},
			},
		}},
	})

	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "You are DAINO.", cfg.SystemInstruction.Parts[0].Text)
	require.Len(t, cfg.Tools, 1)
	decl := cfg.Tools[0].FunctionDeclarations[0]
	assert.Equal(t, "query_telemetry", decl.Name)
	assert.Equal(t, genai.TypeObject, decl.Parameters.Type)
	assert.Equal(t, genai.TypeString, decl.Parameters.Properties["sql_query"].Type)
	assert.Equal(t, []string{"sql_query"}, decl.Parameters.Required)
}

func TestGeminiHistoryRoles(t *testing.T) {
	history := geminiHistory([]HistoryTurn{
		{Role: RoleUser, Text: "hi"},
		{Role: RoleModel, Text: "hello"},
	})
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, "hello", history[1].Parts[0].Text)
}
