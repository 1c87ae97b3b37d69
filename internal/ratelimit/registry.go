package ratelimit

import (
	"net/http"
	"sync"
)

// Resolver resolves a per-request Limit (e.g. per IP, per user).
type Resolver func(r *http.Request) Limit

// Registry maps limiter names to resolvers over a shared Limiter. Middleware
// namespaces bucket keys with "<name>:" so resolvers reusing identical raw
// keys never collide.
type Registry struct {
	limiter *Limiter

	mu        sync.RWMutex
	resolvers map[string]Resolver
}

// NewRegistry creates a named limiter registry over the given limiter.
func NewRegistry(limiter *Limiter) *Registry {
	return &Registry{
		limiter:   limiter,
		resolvers: make(map[string]Resolver),
	}
}

// For registers a named limiter resolver. Re-registering a name replaces it.
func (rg *Registry) For(name string, resolver Resolver) {
	rg.mu.Lock()
	rg.resolvers[name] = resolver
	rg.mu.Unlock()
}

// Resolve returns the resolver for a name, or nil.
func (rg *Registry) Resolve(name string) Resolver {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	return rg.resolvers[name]
}

// Limiter returns the shared limiter.
func (rg *Registry) Limiter() *Limiter {
	return rg.limiter
}
