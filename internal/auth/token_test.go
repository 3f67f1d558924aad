package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	tokens := NewTokenManager("secret", "taheel-backend", time.Hour)

	raw, err := tokens.Generate("R1")
	require.NoError(t, err)

	accountID, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "R1", accountID)
}

func TestGenerateRequiresAccount(t *testing.T) {
	_, err := NewTokenManager("secret", "taheel-backend", time.Hour).Generate("")
	assert.Error(t, err)
}

func TestParseRejects(t *testing.T) {
	issuer := NewTokenManager("secret", "taheel-backend", time.Hour)
	raw, err := issuer.Generate("R1")
	require.NoError(t, err)

	expired, err := NewTokenManager("secret", "taheel-backend", -time.Minute).Generate("R1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		tokens *TokenManager
		raw    string
	}{
		{"wrong secret", NewTokenManager("other", "taheel-backend", time.Hour), raw},
		{"wrong issuer", NewTokenManager("secret", "someone-else", time.Hour), raw},
		{"expired", issuer, expired},
		{"garbage", issuer, "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.tokens.Parse(tt.raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
