package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// APIKeyHeader is the header clients present their key in.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth returns middleware enforcing a single static API key. Keys are
// compared as SHA-256 digests in constant time. An empty configured key
// disables auth entirely, which is the expected mode for local development.
func APIKeyAuth(key string) func(http.Handler) http.Handler {
	expected := sha256.Sum256([]byte(key))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			presented := sha256.Sum256([]byte(r.Header.Get(APIKeyHeader)))
			if subtle.ConstantTimeCompare(expected[:], presented[:]) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
