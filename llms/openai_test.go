package llms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIProvider_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing/incorrect Authorization header: %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello there"}}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai-1", "test-key", "gpt-test", WithOpenAIHost(srv.URL))
	resp, err := p.Complete(context.Background(), Request{UserPrompt: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "hello there" {
		t.Fatalf("Text = %q, want %q", resp.Text, "hello there")
	}
	if resp.Usage.Total != 7 {
		t.Fatalf("Usage.Total = %d, want 7", resp.Usage.Total)
	}
}

func TestOpenAIProvider_CompleteStructured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"action\":\"move\",\"parameters\":{}}"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai-1", "k", "gpt-test", WithOpenAIHost(srv.URL))
	resp, err := p.CompleteStructured(context.Background(), Request{UserPrompt: "hi"}, IntentSchema)
	if err != nil {
		t.Fatalf("CompleteStructured: %v", err)
	}
	if resp.Structured["action"] != "move" {
		t.Fatalf("Structured[action] = %v, want move", resp.Structured["action"])
	}
}

func TestOpenAIProvider_HealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("path = %q, want /models", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai-1", "k", "gpt-test", WithOpenAIHost(srv.URL))
	status, err := p.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if !status.Healthy {
		t.Fatal("want healthy")
	}
}

func TestOpenAIProvider_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"invalid request"}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai-1", "k", "gpt-test", WithOpenAIHost(srv.URL))
	_, err := p.Complete(context.Background(), Request{UserPrompt: "hi"})
	if err == nil {
		t.Fatal("want error for API-level error payload")
	}
}
