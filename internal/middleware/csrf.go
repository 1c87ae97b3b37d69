package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/razy-dev/razy/internal/errors"
	"github.com/razy-dev/razy/internal/logging"
)

// CSRFConfig configures the CSRF verification middleware
type CSRFConfig struct {
	// FormField is the form field checked for a token
	FormField string
	// Header is the header checked when the form field is absent
	Header string
	// Extractor is the last-resort token source, consulted only when the
	// form field and header are both empty
	Extractor func(r *http.Request) string
	// ExcludedPaths lists path prefixes that skip verification
	ExcludedPaths []string
	// RotateOnSuccess regenerates the token after each verified request
	RotateOnSuccess bool
	// OnReject overrides the default 419 response
	OnReject func(w http.ResponseWriter, r *http.Request)
}

// DefaultCSRFConfig provides default CSRF settings
var DefaultCSRFConfig = CSRFConfig{
	FormField: "_token",
	Header:    "X-CSRF-TOKEN",
}

// unsafe methods require a token; everything else passes through.
func csrfUnsafe(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// CSRF creates a token verification middleware with default config
func CSRF() Middleware {
	return CSRFWithConfig(DefaultCSRFConfig)
}

// CSRFWithConfig creates a token verification middleware with custom config.
// It requires the session middleware upstream; requests with no session state
// on unsafe methods are rejected.
func CSRFWithConfig(cfg CSRFConfig) Middleware {
	if cfg.FormField == "" {
		cfg.FormField = DefaultCSRFConfig.FormField
	}
	if cfg.Header == "" {
		cfg.Header = DefaultCSRFConfig.Header
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !csrfUnsafe(r.Method) || csrfExcluded(cfg.ExcludedPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			st := GetState(r)
			if st == nil || st.CSRF == nil {
				logging.Warn("CSRF check without session",
					zap.String("path", r.URL.Path))
				csrfReject(cfg, w, r)
				return
			}

			submitted := csrfExtract(cfg, r)
			if !st.CSRF.Validate(submitted) {
				logging.Info("CSRF token mismatch",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", ClientIP(r)))
				csrfReject(cfg, w, r)
				return
			}

			if cfg.RotateOnSuccess {
				st.CSRF.Regenerate()
			}

			next.ServeHTTP(w, r)
		})
	}
}

// csrfExtract checks the form field, then the header, then the custom
// extractor.
func csrfExtract(cfg CSRFConfig, r *http.Request) string {
	if tok := r.PostFormValue(cfg.FormField); tok != "" {
		return tok
	}
	if tok := r.Header.Get(cfg.Header); tok != "" {
		return tok
	}
	if cfg.Extractor != nil {
		return cfg.Extractor(r)
	}
	return ""
}

func csrfExcluded(prefixes []string, path string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func csrfReject(cfg CSRFConfig, w http.ResponseWriter, r *http.Request) {
	if cfg.OnReject != nil {
		cfg.OnReject(w, r)
		return
	}
	errors.ErrCSRFMismatch.WriteJSON(w)
}
