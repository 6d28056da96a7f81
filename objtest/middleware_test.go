package objtest_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/eiostore/objtest"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func signed(t *testing.T, secret string, method jwt.SigningMethod) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, jwt.MapClaims{"sub": "test"}).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware_NoSecretAcceptsAnyToken(t *testing.T) {
	wrapped := objtest.AuthMiddleware(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/objects/a", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})
	wrapped := objtest.AuthMiddleware(nil)(handler)

	for _, header := range []string{"", "Basic abc", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/objects/a", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()

		wrapped.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.Contains(t, rec.Body.String(), "unauthorized")
	}
}

func TestAuthMiddleware_VerifiesSignature(t *testing.T) {
	wrapped := objtest.AuthMiddleware([]byte("secret"))(okHandler())

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{name: "valid", token: signed(t, "secret", jwt.SigningMethodHS256), want: http.StatusOK},
		{name: "wrong secret", token: signed(t, "other", jwt.SigningMethodHS256), want: http.StatusUnauthorized},
		{name: "wrong algorithm", token: signed(t, "secret", jwt.SigningMethodHS512), want: http.StatusUnauthorized},
		{name: "garbage", token: "not.a.jwt", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/objects/a", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()

			wrapped.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
