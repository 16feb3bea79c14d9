package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStaticProvider(t *testing.T) {
	_, err := NewStaticProvider("", "Real", "")
	assert.ErrorIs(t, err, ErrBlankNickname)

	provider, err := NewStaticProvider("bot", "", "secret")
	require.NoError(t, err)
	identity, err := provider.GetIdentity()
	require.NoError(t, err)
	assert.Equal(t, "bot", identity.Nickname)
	assert.Equal(t, "bot", identity.Realname)
	assert.Equal(t, "secret", identity.Password)

	// Callers get their own copy
	identity.Nickname = "changed"
	again, err := provider.GetIdentity()
	require.NoError(t, err)
	assert.Equal(t, "bot", again.Nickname)
}
