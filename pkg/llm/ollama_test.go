package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaProvider_LocalToolCall(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("local ollama should not get an auth header")
		}
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "llama3.1" {
			t.Errorf("unexpected model %q", req.Model)
		}
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "query_telemetry" {
			t.Errorf("tool declaration not forwarded: %+v", req.Tools)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"id\":\"call_0\",\"type\":\"function\",\"function\":{\"name\":\"query_telemetry\",\"arguments\":\"{\\\"sql_query\\\":\\\"SELECT COUNT(*) FROM readings\\\"}\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	provider := NewOllamaProvider(Config{APIURL: server.URL + "/v1", Model: "llama3.1"})
	stream, err := provider.Complete(context.Background(), []Message{{Role: "user", Content: "how many readings?"}},
		[]Tool{{Name: "query_telemetry", Parameters: map[string]any{"type": "object"}}})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	_, calls, err := drainStream(t, stream)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if len(calls) != 1 || calls[0].Arguments != `{"sql_query":"SELECT COUNT(*) FROM readings"}` {
		t.Fatalf("unexpected calls %+v", calls)
	}
}

func TestOllamaProvider_DefaultURL(t *testing.T) {
	p := NewOllamaProvider(Config{Model: "llama3.1"})
	if p.openai.apiURL != "http://localhost:11434/v1" {
		t.Fatalf("unexpected default url %q", p.openai.apiURL)
	}
	p = NewOllamaProvider(Config{Model: "llama3.1", APIURL: "http://gpu-box:11434/v1/"})
	if p.openai.apiURL != "http://gpu-box:11434/v1" {
		t.Fatalf("unexpected url %q", p.openai.apiURL)
	}
}
