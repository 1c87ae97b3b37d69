package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/razy-dev/razy/internal/errors"
	"github.com/razy-dev/razy/internal/logging"
)

// RecoveryConfig configures the recovery middleware
type RecoveryConfig struct {
	// PrintStack includes the stack trace in the panic log
	PrintStack bool
	// OnPanic is called with the recovered value before the response is written
	OnPanic func(r *http.Request, err interface{}, stack []byte)
}

// DefaultRecoveryConfig provides default recovery settings
var DefaultRecoveryConfig = RecoveryConfig{
	PrintStack: true,
}

// Recovery creates a panic recovery middleware
func Recovery() Middleware {
	return RecoveryWithConfig(DefaultRecoveryConfig)
}

// RecoveryWithConfig creates a recovery middleware with custom config
func RecoveryWithConfig(cfg RecoveryConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					var stack []byte
					if cfg.PrintStack {
						stack = debug.Stack()
					}

					fields := []zap.Field{
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
					}
					if s := GetState(r); s != nil {
						fields = append(fields,
							zap.String("request_id", s.RequestID),
							zap.String("module", s.Module),
						)
					}
					if cfg.PrintStack {
						fields = append(fields, zap.ByteString("stack", stack))
					}
					logging.Error("Panic recovered", fields...)

					if cfg.OnPanic != nil {
						cfg.OnPanic(r, err, stack)
					}

					razyErr := errors.ErrInternalServer.WithDetails(fmt.Sprintf("panic: %v", err))
					if reqID := w.Header().Get("X-Request-ID"); reqID != "" {
						razyErr = razyErr.WithRequestID(reqID)
					}
					razyErr.WriteJSON(w)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
