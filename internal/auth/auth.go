// Package auth checks logins against a static credential table.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Credential is the secret and display name of one user.
type Credential struct {
	Password string
	Name     string
}

// Session is the result of a successful login. The token is opaque and is
// not checked on later requests.
type Session struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Authenticator struct {
	users    map[string]Credential
	newToken func() string
}

// NewAuthenticator copies users, keyed by email.
func NewAuthenticator(users map[string]Credential) *Authenticator {
	copied := make(map[string]Credential, len(users))
	for email, c := range users {
		copied[email] = c
	}
	return &Authenticator{users: copied, newToken: uuid.NewString}
}

// Login matches email and password exactly, with no normalization.
func (a *Authenticator) Login(_ context.Context, email, password string) (Session, error) {
	cred, ok := a.users[email]
	if !ok || subtle.ConstantTimeCompare([]byte(cred.Password), []byte(password)) != 1 {
		return Session{}, ErrInvalidCredentials
	}
	return Session{Token: a.newToken(), Name: cred.Name, Email: email}, nil
}

// ParseUsers reads "email:password:Display Name" entries separated by commas.
// The display name may be omitted.
func ParseUsers(s string) (map[string]Credential, error) {
	users := map[string]Credential{}
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("malformed user entry %q: want email:password[:name]", entry)
		}
		c := Credential{Password: parts[1]}
		if len(parts) == 3 {
			c.Name = strings.TrimSpace(parts[2])
		}
		users[parts[0]] = c
	}
	return users, nil
}
