package llms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaProvider_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		w.Write([]byte(`{"response":"hi there","done":true,"prompt_eval_count":2,"eval_count":3}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider("ollama-1", "llama-test", WithOllamaHost(srv.URL))
	resp, err := p.Complete(context.Background(), Request{UserPrompt: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "hi there" {
		t.Fatalf("Text = %q, want %q", resp.Text, "hi there")
	}
	if resp.Usage.Total != 5 {
		t.Fatalf("Usage.Total = %d, want 5", resp.Usage.Total)
	}
}

func TestOllamaProvider_CompleteStructured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"{\"action\":\"wait\",\"parameters\":{}}","done":true}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider("ollama-1", "llama-test", WithOllamaHost(srv.URL))
	resp, err := p.CompleteStructured(context.Background(), Request{UserPrompt: "hi"}, IntentSchema)
	if err != nil {
		t.Fatalf("CompleteStructured: %v", err)
	}
	if resp.Structured["action"] != "wait" {
		t.Fatalf("Structured[action] = %v, want wait", resp.Structured["action"])
	}
}

func TestOllamaProvider_HealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q, want /api/tags", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewOllamaProvider("ollama-1", "llama-test", WithOllamaHost(srv.URL))
	status, err := p.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if !status.Healthy {
		t.Fatal("want healthy")
	}
}

func TestOllamaProvider_HealthCheck_Unreachable(t *testing.T) {
	p := NewOllamaProvider("ollama-1", "llama-test", WithOllamaHost("http://127.0.0.1:1"))
	status, err := p.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck should report unhealthy, not error: %v", err)
	}
	if status.Healthy {
		t.Fatal("want unhealthy for unreachable host")
	}
}
