package middleware

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/razy-dev/razy/internal/csrf"
	"github.com/razy-dev/razy/internal/routing"
	"github.com/razy-dev/razy/internal/session"
)

// State is the per-request dispatch context shared across the middleware
// chain and the final handler. Middlewares may inspect and mutate it before
// and after calling next; a single request runs on one goroutine, so no
// locking is needed.
type State struct {
	Query       url.Values
	Route       *routing.Binding
	Module      string
	ClosurePath string
	Arguments   []string
	Method      string
	Type        routing.RouteType
	IsShadow    bool
	Contains    string // residual path under a lazy mount, when any

	Distributor string // "code@tag"
	RequestID   string

	Session *session.Session
	CSRF    *csrf.Manager
}

type stateKey struct{}

// WithState attaches a dispatch state to the request context.
func WithState(r *http.Request, s *State) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), stateKey{}, s))
}

// GetState returns the request's dispatch state, or nil.
func GetState(r *http.Request) *State {
	s, _ := r.Context().Value(stateKey{}).(*State)
	return s
}

// ClientIP extracts the originating client address: first X-Forwarded-For
// entry, then X-Real-IP, then the connection's remote host.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return rip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
