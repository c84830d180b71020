package llms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicProvider_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing/incorrect x-api-key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing anthropic-version header")
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"hello"}],"usage":{"input_tokens":3,"output_tokens":4}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("anthropic-1", "test-key", "claude-test")
	p.host = srv.URL

	resp, err := p.Complete(context.Background(), Request{UserPrompt: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "hello" {
		t.Fatalf("Text = %q, want %q", resp.Text, "hello")
	}
	if resp.Usage.Total != 7 {
		t.Fatalf("Usage.Total = %d, want 7", resp.Usage.Total)
	}
}

func TestAnthropicProvider_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"bad request"}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("anthropic-1", "k", "claude-test")
	p.host = srv.URL

	_, err := p.Complete(context.Background(), Request{UserPrompt: "hi"})
	if err == nil {
		t.Fatal("want error for API-level error payload")
	}
}

func TestAnthropicProvider_HealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[{"type":"text","text":"pong"}],"usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("anthropic-1", "k", "claude-test")
	p.host = srv.URL

	status, err := p.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if !status.Healthy {
		t.Fatal("want healthy")
	}
}
