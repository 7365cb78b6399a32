package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mail-chat-bridge/internal/config"
	"mail-chat-bridge/internal/domain/draft"
)

func TestGenerateWithoutKeyReturnsFallback(t *testing.T) {
	d := NewDrafter(&config.Config{OpenAIModel: "gpt-4o-mini"}).WithEndpoint("http://127.0.0.1:1/unused")
	got, err := d.Generate(context.Background(), draft.Prompt{System: "s", User: "u"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != MissingKeyDraft {
		t.Fatalf("expected fallback draft, got %q", got)
	}
}

func TestGenerate(t *testing.T) {
	var req chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Merhaba, teşekkürler.  "}}]}`))
	}))
	defer srv.Close()

	d := NewDrafter(&config.Config{OpenAIAPIKey: "sk-test", OpenAIModel: "gpt-4o-mini"}).WithEndpoint(srv.URL)
	got, err := d.Generate(context.Background(), draft.Prompt{System: "sys", User: "usr"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Merhaba, teşekkürler." {
		t.Fatalf("unexpected draft %q", got)
	}
	if req.Model != "gpt-4o-mini" || req.Temperature != temperature || len(req.Messages) != 2 ||
		req.Messages[0].Role != "system" || req.Messages[0].Content != "sys" ||
		req.Messages[1].Role != "user" || req.Messages[1].Content != "usr" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestGenerateEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	d := NewDrafter(&config.Config{OpenAIAPIKey: "sk-test"}).WithEndpoint(srv.URL)
	got, err := d.Generate(context.Background(), draft.Prompt{})
	if err != nil || got != EmptyDraft {
		t.Fatalf("Generate = %q, %v; want %q", got, err, EmptyDraft)
	}
}

func TestGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached"}}`))
	}))
	defer srv.Close()

	d := NewDrafter(&config.Config{OpenAIAPIKey: "sk-test"}).WithEndpoint(srv.URL)
	_, err := d.Generate(context.Background(), draft.Prompt{})
	if err == nil || !strings.Contains(err.Error(), "openai error 429") || !strings.Contains(err.Error(), "Rate limit reached") {
		t.Fatalf("unexpected error: %v", err)
	}
}
