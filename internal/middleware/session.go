package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/razy-dev/razy/internal/csrf"
	"github.com/razy-dev/razy/internal/logging"
	"github.com/razy-dev/razy/internal/session"
)

// SessionOptions tunes the session middleware.
type SessionOptions struct {
	// OnNew runs when a request minted a fresh session instead of resuming
	// one, after the session is started.
	OnNew func()
}

// SessionMiddleware starts the request's session before the handler runs and
// persists it afterwards. Save is deferred so flash aging and the driver
// write happen even when a downstream handler panics; the recovery middleware
// should therefore wrap this one.
func SessionMiddleware(manager *session.Manager) Middleware {
	return SessionWithOptions(manager, SessionOptions{})
}

// SessionWithOptions is SessionMiddleware with hooks.
func SessionWithOptions(manager *session.Manager, opts SessionOptions) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := manager.Start(w, r)
			if err != nil {
				logging.Warn("Session start failed",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if st := GetState(r); st != nil {
				st.Session = s
				st.CSRF = csrf.NewManager(s)
			}
			if s.IsNew() && opts.OnNew != nil {
				opts.OnNew()
			}

			defer func() {
				if err := s.Save(); err != nil {
					logging.Warn("Session save failed",
						zap.String("session_id", s.ID()),
						zap.Error(err))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
