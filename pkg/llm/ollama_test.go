package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Errorf("streaming must be disabled")
		}
		if req.Model != "test-model" {
			t.Errorf("unexpected model: %s", req.Model)
		}
		json.NewEncoder(w).Encode(ollamaResponse{
			Message:         Message{Role: RoleAssistant, Content: "hello back"},
			Done:            true,
			EvalCount:       7,
			PromptEvalCount: 3,
		})
	}))
	defer srv.Close()

	provider := NewOllama(srv.URL)
	resp, err := provider.Chat(context.Background(), ChatRequest{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "hello back" {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 10 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
}

func TestOllamaChatErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	provider := NewOllama(srv.URL)
	if _, err := provider.Chat(context.Background(), ChatRequest{Model: "missing"}); err == nil {
		t.Fatalf("expected error for non-200 status")
	}
}

func TestComplete(t *testing.T) {
	provider := NewScriptedMockProvider("the reply")
	out, err := Complete(context.Background(), provider, "m", "system text", "input text")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if out != "the reply" {
		t.Errorf("unexpected reply: %q", out)
	}
	msgs := provider.Requests[0].Messages
	if len(msgs) != 2 || msgs[0].Role != RoleSystem || msgs[1].Role != RoleUser {
		t.Errorf("unexpected message shape: %+v", msgs)
	}
}
