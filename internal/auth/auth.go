// Package auth implements the authorization predicate for StoreGate.
//
// The gateway needs a single yes/no answer per request. The token scheme is
// deliberately simple: one shared secret, presented either as a bearer token
// or in the X-Store-Token header.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Authorizer decides whether a request is allowed to perform an operation
// that requires credentials.
type Authorizer interface {
	Allow(r *http.Request) bool
}

// TokenAuthorizer authorizes requests that carry the configured secret token.
type TokenAuthorizer struct {
	token string
}

// NewTokenAuthorizer creates a TokenAuthorizer for the given secret. An empty
// secret denies every request; the gateway must not fall open when
// credentials are left unconfigured.
func NewTokenAuthorizer(token string) *TokenAuthorizer {
	return &TokenAuthorizer{token: token}
}

// Allow reports whether the request carries the configured token, either as
// "Authorization: Bearer <token>" or in the X-Store-Token header. Comparison
// is constant-time.
func (a *TokenAuthorizer) Allow(r *http.Request) bool {
	if a.token == "" {
		return false
	}

	presented := r.Header.Get("X-Store-Token")
	if presented == "" {
		authz := r.Header.Get("Authorization")
		if rest, ok := strings.CutPrefix(authz, "Bearer "); ok {
			presented = rest
		}
	}
	if presented == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(presented), []byte(a.token)) == 1
}

var _ Authorizer = (*TokenAuthorizer)(nil)
