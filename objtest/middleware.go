package objtest

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// AuthMiddleware rejects requests without a bearer token. When secret is
// non-empty the token must be a valid HS256 JWT signed with it.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Missing bearer token")
				return
			}

			if len(secret) > 0 {
				_, err := jwt.Parse(token, func(*jwt.Token) (any, error) {
					return secret, nil
				}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
				if err != nil {
					writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid bearer token")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
