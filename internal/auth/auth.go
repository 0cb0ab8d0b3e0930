// Package auth resolves requests to user identities.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var ErrInvalidUser = errors.New("user id is required")

// Identity is the caller of a request. Signed-out callers get a read-only session.
type Identity struct {
	UserID   string `json:"userId"`
	SignedIn bool   `json:"signedIn"`
}

// Provider resolves a request to an identity.
type Provider interface {
	Identify(r *http.Request) Identity
}

// TokenProvider issues opaque bearer tokens for user identities asserted by the
// external sign-in flow.
type TokenProvider struct {
	mu     sync.Mutex
	tokens map[string]string // token -> userID
}

// NewTokenProvider creates an empty token table.
func NewTokenProvider() *TokenProvider {
	return &TokenProvider{
		tokens: make(map[string]string),
	}
}

// Issue returns a new token for userID.
func (p *TokenProvider) Issue(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || strings.ContainsAny(userID, `/\`) || userID == "." || userID == ".." {
		return "", ErrInvalidUser
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	token := uuid.NewString()
	p.tokens[token] = userID
	return token, nil
}

// Resolve returns the user a token was issued for.
func (p *TokenProvider) Resolve(token string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	userID, ok := p.tokens[token]
	return userID, ok
}

// Revoke signs a token out.
func (p *TokenProvider) Revoke(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.tokens, token)
}

// Identify reads the token from the Authorization header or, for websocket
// upgrades, the token query parameter.
func (p *TokenProvider) Identify(r *http.Request) Identity {
	token := BearerToken(r)
	if token == "" {
		return Identity{}
	}
	if userID, ok := p.Resolve(token); ok {
		return Identity{UserID: userID, SignedIn: true}
	}
	return Identity{}
}

// BearerToken extracts the request token.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get(echo.HeaderAuthorization); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

// LocalProvider signs every request in as one fixed local user.
type LocalProvider struct {
	UserID string
}

// Identify implements Provider.
func (p LocalProvider) Identify(*http.Request) Identity {
	return Identity{UserID: p.UserID, SignedIn: true}
}

const contextKey = "identity"

// Middleware stores the caller identity in the echo context.
func Middleware(p Provider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(contextKey, p.Identify(c.Request()))
			return next(c)
		}
	}
}

// FromContext returns the identity stored by Middleware.
func FromContext(c echo.Context) Identity {
	id, _ := c.Get(contextKey).(Identity)
	return id
}
