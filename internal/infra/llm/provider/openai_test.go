package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rezoom-ai/promptgate/internal/core/aierr"
)

func chatReq() ChatRequest {
	return ChatRequest{
		Model:    "gpt-4",
		Messages: []Message{{Role: "user", Content: "hello"}},
	}
}

func TestOpenAICall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		fmt.Fprint(w, `{
			"model": "gpt-4",
			"choices": [{"message": {"content": "hi there"}}],
			"usage": {"total_tokens": 12}
		}`)
	}))
	defer srv.Close()

	p := NewOpenAI("openai", srv.URL, "sk-test", 5*time.Second)
	resp, err := p.Call(context.Background(), chatReq())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hi there" {
		t.Errorf("Content = %q, want %q", resp.Content, "hi there")
	}
	if resp.TokensUsed != 12 {
		t.Errorf("TokensUsed = %d, want 12", resp.TokensUsed)
	}
	if resp.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", resp.Provider)
	}
}

func TestOpenAICallClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		code   aierr.Code
	}{
		{http.StatusTooManyRequests, aierr.CodeRateLimitExceeded},
		{http.StatusUnauthorized, aierr.CodeAuthenticationFailed},
		{http.StatusServiceUnavailable, aierr.CodeProviderUnavailable},
		{http.StatusBadRequest, aierr.CodeInvalidRequest},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		p := NewOpenAI("openai", srv.URL, "", 5*time.Second)
		_, err := p.Call(context.Background(), chatReq())
		srv.Close()

		var classified *aierr.Error
		if !errors.As(err, &classified) {
			t.Fatalf("status %d: error %v is not classified", tt.status, err)
		}
		if classified.Code != tt.code {
			t.Errorf("status %d: Code = %v, want %v", tt.status, classified.Code, tt.code)
		}
		if classified.Provider != "openai" {
			t.Errorf("status %d: Provider = %q, want openai", tt.status, classified.Provider)
		}
	}
}

func TestOpenAIListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"data": [{"id": "gpt-4"}, {"id": "gpt-3.5-turbo"}]}`)
	}))
	defer srv.Close()

	p := NewOpenAI("openai", srv.URL, "", 5*time.Second)
	models, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != 2 || models[0] != "gpt-4" {
		t.Errorf("models = %v", models)
	}
}

func TestOpenAIHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": []}`)
	}))
	defer srv.Close()

	p := NewOpenAI("openai", srv.URL, "", 5*time.Second)
	if err := p.HealthCheck(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	srv.Close()
	if err := p.HealthCheck(context.Background()); err == nil {
		t.Error("expected error after server shutdown")
	}
}

func TestOpenAIStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewOpenAI("openai", srv.URL, "", 5*time.Second)
	chunks, err := p.Stream(context.Background(), chatReq())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var content string
	var done bool
	for c := range chunks {
		content += c.Content
		done = done || c.Done
	}
	if content != "Hello" {
		t.Errorf("streamed content = %q, want Hello", content)
	}
	if !done {
		t.Error("never received a done chunk")
	}
}
