// Package auth implements parent authentication: a static admin
// credential for standalone setups, an LDAP bind path for households with
// a directory server, and the session tokens issued after either.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
)

// ErrNotConfigured is returned when no admin password has been set.
var ErrNotConfigured = errors.New("admin password not configured")

// Authenticator verifies a parent login. A false result with a nil error
// means the credentials were rejected; an error means the check itself
// could not run.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (bool, error)
}

// Static authenticates a single admin account against a password from the
// environment.
type Static struct {
	User     string
	Password string
}

// NewStatic creates a static-credential authenticator.
func NewStatic(user, password string) *Static {
	return &Static{User: user, Password: password}
}

func (a *Static) Authenticate(_ context.Context, username, password string) (bool, error) {
	if a.Password == "" {
		return false, ErrNotConfigured
	}
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(a.User)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.Password)) == 1
	return userOK && passOK, nil
}
