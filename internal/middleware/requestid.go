package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request correlation ID.
const RequestIDHeader = "X-Request-ID"

func init() {
	// Batch crypto/rand reads into a pool to avoid a syscall per UUID.
	uuid.EnableRandPool()
}

// RequestID tags each request with a correlation ID. An inbound header value
// is kept so IDs survive proxy hops; otherwise a fresh UUID is minted. The
// ID is echoed on the response and recorded on the request state for log
// correlation.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.New().String()
			}

			w.Header().Set(RequestIDHeader, id)
			if s := GetState(r); s != nil {
				s.RequestID = id
			}

			next.ServeHTTP(w, r)
		})
	}
}
