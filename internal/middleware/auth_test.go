package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubTokens map[string]string

func (s stubTokens) Parse(raw string) (string, error) {
	if id, ok := s[raw]; ok {
		return id, nil
	}
	return "", errors.New("bad token")
}

func TestRequireAccount(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AccountID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})
	h := Logging(zap.NewNop().Sugar())(RequireAccount(stubTokens{"good": "R1"})(next))

	tests := []struct {
		name   string
		header string
		status int
		want   string
	}{
		{"valid", "Bearer good", http.StatusTeapot, "R1"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, ""},
		{"empty token", "Bearer   ", http.StatusUnauthorized, ""},
		{"unknown token", "Bearer bad", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.want, seen)
		})
	}
}

func TestAccountIDMissing(t *testing.T) {
	_, ok := AccountID(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
