// Copyright 2025 The Narrator Kernel Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llms

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/reedkernel/narrator/kernelerrors"
	"github.com/reedkernel/narrator/registry"
)

// Router maintains a registry of Providers and a current default. It does
// not implement fallback or load balancing (spec §4.6) — failover across
// providers is the Narrator's responsibility via explicit retry.
type Router struct {
	providers *registry.BaseRegistry[Provider]

	mu         sync.RWMutex
	defaultID  string
}

// NewRouter constructs an empty Router.
func NewRouter() *Router {
	return &Router{providers: registry.NewBaseRegistry[Provider]()}
}

// Register adds or replaces a provider by id.
func (r *Router) Register(provider Provider) error {
	if provider == nil {
		return kernelerrors.New(kernelerrors.InvalidArgument, "provider cannot be nil")
	}
	return r.providers.Register(provider.ID(), provider)
}

// SetDefault selects the primary provider by id. It fails with
// InvalidArgument if no provider is registered under id.
func (r *Router) SetDefault(id string) error {
	if _, ok := r.providers.Get(id); !ok {
		return kernelerrors.Newf(kernelerrors.InvalidArgument, "provider %q is not registered", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultID = id
	return nil
}

// Default returns the id of the current default provider, if any.
func (r *Router) Default() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultID, r.defaultID != ""
}

// resolve returns the provider for id, or the default provider when id is
// empty. It fails with ProviderUnavailable if no such provider exists.
func (r *Router) resolve(id string) (Provider, error) {
	if id == "" {
		r.mu.RLock()
		id = r.defaultID
		r.mu.RUnlock()
	}
	if id == "" {
		return nil, kernelerrors.New(kernelerrors.ProviderUnavailable, "no provider id given and no default is set")
	}
	provider, ok := r.providers.Get(id)
	if !ok {
		return nil, kernelerrors.Newf(kernelerrors.ProviderUnavailable, "provider %q is not registered", id)
	}
	return provider, nil
}

// Complete dispatches req to the named provider, or the default provider
// when id is empty.
func (r *Router) Complete(ctx context.Context, id string, req Request) (Response, error) {
	provider, err := r.resolve(id)
	if err != nil {
		return Response{}, err
	}
	return provider.Complete(ctx, req)
}

// CompleteStructured dispatches req to the named provider (or default)
// and validates its response against schema.
func (r *Router) CompleteStructured(ctx context.Context, id string, req Request, schema Schema) (Response, error) {
	provider, err := r.resolve(id)
	if err != nil {
		return Response{}, err
	}
	return provider.CompleteStructured(ctx, req, schema)
}

// HealthCheckAll fans out a HealthCheck call to every registered provider
// concurrently and returns a mapping of provider id to status. A single
// provider's failure does not fail the others — its HealthStatus reports
// Healthy=false and the error is folded into Detail.
func (r *Router) HealthCheckAll(ctx context.Context) map[string]HealthStatus {
	ids := r.providers.Names()
	results := make(map[string]HealthStatus, len(ids))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		group.Go(func() error {
			provider, ok := r.providers.Get(id)
			if !ok {
				return nil // removed mid-fan-out; simply omit it
			}
			status, err := provider.HealthCheck(groupCtx)
			if err != nil {
				status = HealthStatus{Healthy: false, Detail: err.Error()}
			}
			mu.Lock()
			results[id] = status
			mu.Unlock()
			return nil // never fail the group: one provider's error must not cancel the others
		})
	}
	_ = group.Wait() // goroutines above never return a non-nil error

	return results
}

// IDs returns every registered provider id, for display and debugging.
func (r *Router) IDs() []string {
	return r.providers.Names()
}
