// Package auth verifies bearer tokens and carries the authenticated
// principal through request contexts.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidToken reports a missing, malformed, or unverifiable token.
var ErrInvalidToken = errors.New("invalid bearer token")

// Principal is the authenticated caller. UserID scopes every document read
// and write; no operation crosses owners.
type Principal struct {
	UserID string
	Role   string
}

// Verifier turns a bearer token into a principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// HMACVerifier validates self-issued tokens of the form
// <userID>.<role>.<signature>, where signature is the hex HMAC-SHA256 of
// "<userID>.<role>" under the shared secret. It stands in for a real
// identity provider in development and tests.
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier builds a verifier over the shared secret.
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Verify checks the token signature and extracts the principal.
func (v *HMACVerifier) Verify(_ context.Context, token string) (*Principal, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" {
		return nil, ErrInvalidToken
	}
	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(v.sign(payload)), []byte(parts[2])) {
		return nil, ErrInvalidToken
	}
	return &Principal{UserID: parts[0], Role: parts[1]}, nil
}

// IssueToken mints a token for the given principal. Intended for local
// development and test setup.
func (v *HMACVerifier) IssueToken(userID, role string) string {
	payload := userID + "." + role
	return fmt.Sprintf("%s.%s", payload, v.sign(payload))
}

func (v *HMACVerifier) sign(payload string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

type contextKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFrom extracts the authenticated principal, if any.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*Principal)
	return p, ok
}
