package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	encoded, err := hashPassword("Pw12345!")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$"))
	assert.True(t, verifyPassword("Pw12345!", encoded))
	assert.False(t, verifyPassword("wrong", encoded))
}

func TestHashPasswordUniqueSalt(t *testing.T) {
	a, err := hashPassword("same-password")
	require.NoError(t, err)
	b, err := hashPassword("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "her hash benzersiz salt taşır")
	assert.True(t, verifyPassword("same-password", a))
	assert.True(t, verifyPassword("same-password", b))
}

func TestVerifyPasswordMalformedEncoding(t *testing.T) {
	assert.False(t, verifyPassword("x", ""))
	assert.False(t, verifyPassword("x", "$bcrypt$whatever"))
	assert.False(t, verifyPassword("x", "$argon2id$v=19$m=19456,t=3,p=1$notb64!!$xx"))
}

func TestAvatarGlyphFor(t *testing.T) {
	assert.Equal(t, "A", avatarGlyphFor("alice"))
	assert.Equal(t, "Z", avatarGlyphFor("zed"))
	assert.Equal(t, "?", avatarGlyphFor(""))
}
