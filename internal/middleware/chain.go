package middleware

import "net/http"

// Middleware wraps an http.Handler with cross-cutting behavior.
type Middleware func(http.Handler) http.Handler

// Chain is an immutable middleware sequence. Appending returns a new chain,
// so a global chain can be shared and extended per route without copying on
// the request path.
type Chain struct {
	stack []Middleware
}

// NewChain builds a chain that applies middlewares outermost-first.
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{stack: middlewares}
}

// Append returns a new chain with more middlewares on the inside end.
func (c *Chain) Append(middlewares ...Middleware) *Chain {
	stack := make([]Middleware, 0, len(c.stack)+len(middlewares))
	stack = append(stack, c.stack...)
	stack = append(stack, middlewares...)
	return &Chain{stack: stack}
}

// Then wraps h in the chain. The first middleware in the chain sees the
// request first.
func (c *Chain) Then(h http.Handler) http.Handler {
	if h == nil {
		h = http.DefaultServeMux
	}
	for i := len(c.stack) - 1; i >= 0; i-- {
		h = c.stack[i](h)
	}
	return h
}

// ThenFunc is Then for a bare handler func.
func (c *Chain) ThenFunc(fn http.HandlerFunc) http.Handler {
	if fn == nil {
		return c.Then(nil)
	}
	return c.Then(fn)
}
