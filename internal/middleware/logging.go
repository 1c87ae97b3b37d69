package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/razy-dev/razy/internal/logging"
)

// statusWriter captures the response status and size for access logging.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

// Logging creates a structured access-log middleware.
func Logging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			status := sw.status
			if status == 0 {
				status = http.StatusOK
			}

			fields := []zap.Field{
				zap.String("remote_addr", ClientIP(r)),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int64("body_bytes", sw.bytes),
				zap.Duration("response_time", time.Since(start)),
			}
			if s := GetState(r); s != nil {
				fields = append(fields,
					zap.String("request_id", s.RequestID),
					zap.String("distributor", s.Distributor),
					zap.String("module", s.Module),
				)
			}
			logging.Info("request", fields...)
		})
	}
}
