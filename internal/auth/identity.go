// Package auth verifies bearer tokens and carries the verified identity
// through a request.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrInvalidToken is returned by verifiers for any token they reject.
var ErrInvalidToken = errors.New("invalid or expired authentication token")

// Identity is what a verified token says about its bearer.
type Identity struct {
	UID           string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Verifier checks a bearer token and returns the identity it was issued to.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}

const identityKey = "auth.identity"

// SetIdentity stores the verified identity on the request context.
func SetIdentity(c *gin.Context, id *Identity) {
	c.Set(identityKey, id)
}

// IdentityFrom returns the identity stored by SetIdentity.
func IdentityFrom(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*Identity)
	return id, ok && id != nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
