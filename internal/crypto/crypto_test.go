package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealerRoundTrip(t *testing.T) {
	s, err := NewSealer(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	for _, plain := range []string{"", "a", "0123456789abcdef", GenerateAPIKey()} {
		sealed, err := s.Seal(plain)
		require.NoError(t, err)
		opened, err := s.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, plain, opened)
	}

	a, _ := s.Seal("same")
	b, _ := s.Seal("same")
	assert.NotEqual(t, a, b, "each seal uses a fresh IV")
}

func TestSealerRejectsWrongKeyAndGarbage(t *testing.T) {
	s, _ := NewSealer(bytes.Repeat([]byte{1}, 32))
	other, _ := NewSealer(bytes.Repeat([]byte{2}, 32))

	sealed, err := s.Seal("secret-api-key")
	require.NoError(t, err)

	if opened, err := other.Open(sealed); err == nil {
		assert.NotEqual(t, "secret-api-key", opened)
	}
	_, err = s.Open("not base64!")
	assert.Error(t, err)
	_, err = s.Open("YWJj")
	assert.Error(t, err)

	_, err = NewSealer([]byte("short"))
	assert.Error(t, err)
}

func TestAPIKeyHashing(t *testing.T) {
	key := GenerateAPIKey()
	hash := HashAPIKey(key)

	assert.Len(t, hash, 64)
	assert.True(t, APIKeyMatches(key, hash))
	assert.False(t, APIKeyMatches(key+"x", hash))
	assert.False(t, APIKeyMatches(key, ""))

	assert.Equal(t, key[:8], KeyPrefix(key))
	assert.Equal(t, "abc", KeyPrefix("abc"))
}
