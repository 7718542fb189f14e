package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "fundgate/pkg/domain-errors"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("test-signing-key", "fundgate", "fundgate-api")

	token, err := svc.GenerateAccessToken("alice", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Identity)
	assert.Equal(t, "fundgate", claims.Issuer)
}

func TestJWTService_ExpiredToken(t *testing.T) {
	svc := NewJWTService("test-signing-key", "fundgate", "fundgate-api")

	token, err := svc.GenerateAccessToken("alice", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "expired")
}

func TestJWTService_WrongKey(t *testing.T) {
	issuer := NewJWTService("key-one", "fundgate", "fundgate-api")
	verifier := NewJWTService("key-two", "fundgate", "fundgate-api")

	token, err := issuer.GenerateAccessToken("alice", time.Hour)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestJWTService_GarbageToken(t *testing.T) {
	svc := NewJWTService("test-signing-key", "fundgate", "fundgate-api")

	_, err := svc.ValidateToken("not.a.token")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestJWTServiceAdapter(t *testing.T) {
	svc := NewJWTService("test-signing-key", "fundgate", "fundgate-api")
	adapter := NewJWTServiceAdapter(svc)

	token, err := svc.GenerateAccessToken("bob", time.Hour)
	require.NoError(t, err)

	claims, err := adapter.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Identity)
	assert.NotEmpty(t, claims.JTI)
}
