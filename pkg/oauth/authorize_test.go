package oauth

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAuthorizationURL(t *testing.T) {
	pkce := &PKCEChallenge{CodeVerifier: "v", CodeChallenge: "challenge", CodeChallengeMethod: "S256"}

	t.Run("includes required parameters", func(t *testing.T) {
		raw, err := BuildAuthorizationURL("https://login.example.com/tenant/oauth2/v2.0/authorize", AuthorizationParams{
			ClientID:    "client-123",
			RedirectURI: "http://localhost:4711/",
			Scopes:      []string{"User.Read", "openid", "Mail.Read"},
			State:       "state-abc",
			PKCE:        pkce,
		})
		require.NoError(t, err)

		u, err := url.Parse(raw)
		require.NoError(t, err)
		q := u.Query()

		assert.Equal(t, "login.example.com", u.Host)
		assert.Equal(t, "/tenant/oauth2/v2.0/authorize", u.Path)
		assert.Equal(t, "client-123", q.Get("client_id"))
		assert.Equal(t, "code", q.Get("response_type"))
		assert.Equal(t, "http://localhost:4711/", q.Get("redirect_uri"))
		assert.Equal(t, "Mail.Read User.Read openid", q.Get("scope"))
		assert.Equal(t, "state-abc", q.Get("state"))
		assert.Equal(t, "challenge", q.Get("code_challenge"))
		assert.Equal(t, "S256", q.Get("code_challenge_method"))
		assert.False(t, q.Has("prompt"))
		assert.False(t, q.Has("login_hint"))
		assert.False(t, q.Has("domain_hint"))
	})

	t.Run("includes optional parameters when set", func(t *testing.T) {
		raw, err := BuildAuthorizationURL("https://login.example.com/authorize?p=B2C_1_signin", AuthorizationParams{
			ClientID:    "client-123",
			RedirectURI: "http://127.0.0.1:8400/callback",
			Scopes:      []string{"User.Read"},
			State:       "s",
			Prompt:      "select_account",
			LoginHint:   "user@example.com",
			DomainHint:  "example.com",
			Extra:       map[string]string{"msafed": "0"},
		})
		require.NoError(t, err)

		u, err := url.Parse(raw)
		require.NoError(t, err)
		q := u.Query()
		assert.Equal(t, "B2C_1_signin", q.Get("p"), "existing endpoint query must be preserved")
		assert.Equal(t, "select_account", q.Get("prompt"))
		assert.Equal(t, "user@example.com", q.Get("login_hint"))
		assert.Equal(t, "example.com", q.Get("domain_hint"))
		assert.Equal(t, "0", q.Get("msafed"))
		assert.False(t, q.Has("code_challenge"), "no PKCE parameters without a challenge")
	})

	t.Run("rejects reserved extra parameter", func(t *testing.T) {
		_, err := BuildAuthorizationURL("https://login.example.com/authorize", AuthorizationParams{
			ClientID:    "c",
			RedirectURI: "http://localhost:1/",
			State:       "s",
			Extra:       map[string]string{"State": "forged"},
		})
		require.Error(t, err)
	})

	t.Run("validates inputs", func(t *testing.T) {
		base := AuthorizationParams{ClientID: "c", RedirectURI: "http://localhost:1/", State: "s"}

		_, err := BuildAuthorizationURL("/relative", base)
		assert.Error(t, err)

		noClient := base
		noClient.ClientID = ""
		_, err = BuildAuthorizationURL("https://a.example.com/authorize", noClient)
		assert.Error(t, err)

		noState := base
		noState.State = ""
		_, err = BuildAuthorizationURL("https://a.example.com/authorize", noState)
		assert.Error(t, err)

		noRedirect := base
		noRedirect.RedirectURI = ""
		_, err = BuildAuthorizationURL("https://a.example.com/authorize", noRedirect)
		assert.Error(t, err)
	})
}

func TestJoinScopes(t *testing.T) {
	in := []string{"b", "a", "c"}
	assert.Equal(t, "a b c", JoinScopes(in))
	assert.Equal(t, []string{"b", "a", "c"}, in, "input must not be reordered")
}

func TestIsReservedParameter(t *testing.T) {
	assert.True(t, IsReservedParameter("redirect_uri"))
	assert.True(t, IsReservedParameter("CLIENT_ID"))
	assert.False(t, IsReservedParameter("claims"))
}
