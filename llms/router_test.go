package llms

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeProvider struct {
	id      string
	healthy bool
	text    string
	err     error
}

func (f *fakeProvider) ID() string { return f.id }

func (f *fakeProvider) HealthCheck(ctx context.Context) (HealthStatus, error) {
	if f.err != nil {
		return HealthStatus{}, f.err
	}
	return HealthStatus{Healthy: f.healthy}, nil
}

func (f *fakeProvider) Complete(ctx context.Context, req Request) (Response, error) {
	if f.err != nil {
		return Response{}, f.err
	}
	return Response{Text: f.text, ProviderID: f.id}, nil
}

func (f *fakeProvider) CompleteStructured(ctx context.Context, req Request, schema Schema) (Response, error) {
	resp, err := f.Complete(ctx, req)
	if err != nil {
		return Response{}, err
	}
	structured, err := validateStructured(resp.Text, schema)
	if err != nil {
		return Response{}, err
	}
	resp.Structured = structured
	return resp, nil
}

func TestRouter_RegisterAndDefault(t *testing.T) {
	r := NewRouter()
	if err := r.Register(&fakeProvider{id: "a", text: "hi"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.SetDefault("a"); err != nil {
		t.Fatalf("SetDefault: %v", err)
	}
	if err := r.SetDefault("missing"); err == nil {
		t.Fatal("SetDefault(missing): want error")
	}

	resp, err := r.Complete(context.Background(), "", Request{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "hi" {
		t.Fatalf("Complete text = %q, want %q", resp.Text, "hi")
	}
}

func TestRouter_CompleteUnknownProvider(t *testing.T) {
	r := NewRouter()
	_, err := r.Complete(context.Background(), "nope", Request{})
	if err == nil {
		t.Fatal("Complete(nope): want error")
	}
}

func TestRouter_HealthCheckAll_OneFailureDoesNotFailOthers(t *testing.T) {
	r := NewRouter()
	_ = r.Register(&fakeProvider{id: "good", healthy: true})
	_ = r.Register(&fakeProvider{id: "bad", err: errors.New("down")})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	results := r.HealthCheckAll(ctx)
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if !results["good"].Healthy {
		t.Error("good provider should be healthy")
	}
	if results["bad"].Healthy {
		t.Error("bad provider should be unhealthy")
	}
	if results["bad"].Detail == "" {
		t.Error("bad provider should carry an error detail")
	}
}

func TestRouter_CompleteStructured_Validation(t *testing.T) {
	r := NewRouter()
	_ = r.Register(&fakeProvider{id: "a", text: `{"action":"move"}`})
	_ = r.SetDefault("a")

	_, err := r.CompleteStructured(context.Background(), "", Request{}, IntentSchema)
	if err == nil {
		t.Fatal("want ProviderValidation error: response is missing \"parameters\"")
	}
}
