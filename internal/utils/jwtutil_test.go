package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	token, exp, err := GenerateToken(42, "alice", "manager", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserId)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "manager", claims.Role)
}

func TestParseToken_Expired(t *testing.T) {
	token, _, err := GenerateToken(1, "bob", "staff", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token)
	assert.Error(t, err)
}

func TestParseToken_Garbage(t *testing.T) {
	_, err := ParseToken("not.a.token")
	assert.Error(t, err)
}
