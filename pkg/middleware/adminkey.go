package middleware

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AdminKey guards administrative routes with a bcrypt-hashed API key. The
// hash lives in config; the plaintext key travels in X-Admin-Key or as a
// bearer token. An empty hash disables the routes entirely.
func AdminKey(keyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keyHash == "" {
				http.NotFound(w, r)
				return
			}

			key := r.Header.Get("X-Admin-Key")
			if key == "" {
				if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
					key = token
				}
			}
			if key == "" || bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)) != nil {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte("ERR_AUTH\n"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
