package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifierRoundTrip(t *testing.T) {
	v, err := NewJWTVerifier("dev-secret")
	require.NoError(t, err)

	token, err := MintToken("dev-secret", Identity{UID: "u1", Email: "a@b.co", EmailVerified: true, Name: "Ana"}, time.Hour)
	require.NoError(t, err)

	id, err := v.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UID)
	assert.Equal(t, "a@b.co", id.Email)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, "Ana", id.Name)
}

func TestJWTVerifierRejects(t *testing.T) {
	v, err := NewJWTVerifier("dev-secret")
	require.NoError(t, err)

	wrongSecret, err := MintToken("other", Identity{UID: "u1"}, time.Hour)
	require.NoError(t, err)
	expired, err := MintToken("dev-secret", Identity{UID: "u1"}, -time.Hour)
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1", Issuer: devIssuer}).
		SignedString([]byte("dev-secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"wrong secret": wrongSecret,
		"expired":      expired,
		"no expiry":    noExpiry,
		"garbage":      "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.VerifyToken(context.Background(), token)
			assert.True(t, errors.Is(err, ErrInvalidToken))
		})
	}

	_, err = NewJWTVerifier("")
	assert.Error(t, err)
}

type stubIDTokenVerifier struct {
	token *fbauth.Token
	err   error
}

func (s stubIDTokenVerifier) VerifyIDToken(context.Context, string) (*fbauth.Token, error) {
	return s.token, s.err
}

func TestFirebaseVerifierMapsClaims(t *testing.T) {
	v := &FirebaseVerifier{client: stubIDTokenVerifier{token: &fbauth.Token{
		UID: "fb-uid",
		Claims: map[string]interface{}{
			"email":          "s@o3.dev",
			"email_verified": true,
			"name":           "Streamer",
			"picture":        "https://img",
		},
	}}}

	id, err := v.VerifyToken(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, &Identity{UID: "fb-uid", Email: "s@o3.dev", EmailVerified: true, Name: "Streamer", Picture: "https://img"}, id)

	v.client = stubIDTokenVerifier{err: errors.New("token expired")}
	_, err = v.VerifyToken(context.Background(), "t")
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	tok, ok = BearerToken("bearer xyz")
	assert.True(t, ok)
	assert.Equal(t, "xyz", tok)

	for _, h := range []string{"", "Bearer", "Token abc", "Bearer a b"} {
		_, ok := BearerToken(h)
		assert.False(t, ok, h)
	}
}
