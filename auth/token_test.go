package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("test_secret_key_long_enough_2026")

	token, err := manager.Generate("ops-alice", []string{"rooms:end"}, time.Hour)
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := manager.Validate(token)
	req.NoError(err)
	req.Equal("ops-alice", claims.Operator)
	req.True(claims.HasScope("rooms:end"))
	req.False(claims.HasScope("rooms:purge"))
	req.Equal("chat-bridge", claims.Issuer)
}

func TestValidate_RejectsWrongSecret(t *testing.T) {
	req := require.New(t)
	token, err := NewTokenManager("secret-a").Generate("ops-alice", nil, time.Hour)
	req.NoError(err)

	_, err = NewTokenManager("secret-b").Validate(token)
	req.Error(err)
}

func TestValidate_RejectsExpiredToken(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("test_secret_key_long_enough_2026")

	token, err := manager.Generate("ops-alice", nil, -time.Minute)
	req.NoError(err)

	_, err = manager.Validate(token)
	req.Error(err)
}

func TestValidate_RejectsGarbage(t *testing.T) {
	_, err := NewTokenManager("secret").Validate("not.a.token")
	require.Error(t, err)
}
