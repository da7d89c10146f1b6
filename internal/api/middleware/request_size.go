package middleware

import (
	"net/http"
)

// DefaultMaxBodySize caps JSON request bodies. Registration and evaluation
// payloads are a few hundred bytes.
const DefaultMaxBodySize int64 = 64 << 10

// RequestSize wraps the body in http.MaxBytesReader so handlers fail to
// decode anything larger than maxBytes.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
