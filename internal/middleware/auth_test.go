package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type staticValidator map[string]string

func (v staticValidator) ValidateToken(tokenStr string) (string, error) {
	if uid, ok := v[tokenStr]; ok {
		return uid, nil
	}
	return "", errors.New("token is expired")
}

func TestAuthMiddleware(t *testing.T) {
	tokens := staticValidator{"good": "u1", "blank": ""}

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := AuthMiddleware(tokens)(next)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{"valid token", "Bearer good", http.StatusNoContent, "u1"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, ""},
		{"rejected token", "Bearer bad", http.StatusUnauthorized, ""},
		{"token without subject", "Bearer blank", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/me/notifications/settings", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUser, seen)
		})
	}
}
