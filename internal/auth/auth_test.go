package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenProvider_IssueAndIdentify(t *testing.T) {
	p := NewTokenProvider()
	token, err := p.Issue("operator-7")
	require.NoError(t, err)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		wantID Identity
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, Identity{UserID: "operator-7", SignedIn: true}},
		{"query token", func(r *http.Request) { r.URL.RawQuery = "token=" + token }, Identity{UserID: "operator-7", SignedIn: true}},
		{"unknown token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, Identity{}},
		{"no token", func(r *http.Request) {}, Identity{}},
		{"basic auth", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, Identity{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
			tt.setup(req)
			assert.Equal(t, tt.wantID, p.Identify(req))
		})
	}

	p.Revoke(token)
	_, ok := p.Resolve(token)
	assert.False(t, ok)
}

func TestTokenProvider_RejectsBadUser(t *testing.T) {
	p := NewTokenProvider()
	for _, id := range []string{"", "  ", "a/b", ".."} {
		_, err := p.Issue(id)
		assert.ErrorIs(t, err, ErrInvalidUser, id)
	}
}

func TestMiddleware(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got Identity
	h := Middleware(LocalProvider{UserID: "local"})(func(c echo.Context) error {
		got = FromContext(c)
		return nil
	})
	require.NoError(t, h(c))
	assert.Equal(t, Identity{UserID: "local", SignedIn: true}, got)

	assert.Equal(t, Identity{}, FromContext(e.NewContext(req, rec)))
}
