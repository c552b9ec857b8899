package cmd

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizeURL_Discovered(t *testing.T) {
	provider := newFakeProvider(t)
	setupCLI(t, nil)

	stdout, _, err := runCommand(t, newAuthorizeURLCmd,
		"--authority", provider.URL,
		"--client-id", "cli-app",
		"--scope", "User.Read",
		"--scope", "openid",
		"--prompt", "select-account",
		"--login-hint", "user@example.com")
	require.NoError(t, err)

	assert.Contains(t, stdout, "State:")
	assert.Contains(t, stdout, "Code verifier:")

	line := strings.SplitN(stdout, "\n", 2)[0]
	raw := strings.TrimSpace(strings.TrimPrefix(line, "Authorization URL:"))
	authURL, err := url.Parse(raw)
	require.NoError(t, err)

	q := authURL.Query()
	assert.Equal(t, provider.URL+"/authorize", authURL.Scheme+"://"+authURL.Host+authURL.Path)
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "cli-app", q.Get("client_id"))
	assert.Equal(t, "User.Read openid", q.Get("scope"))
	assert.Equal(t, "select_account", q.Get("prompt"))
	assert.Equal(t, "user@example.com", q.Get("login_hint"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, "http://localhost", q.Get("redirect_uri"))
	assert.NotEmpty(t, q.Get("state"))
}

func TestAuthorizeURL_QuietWithoutPKCE(t *testing.T) {
	dir := setupCLI(t, nil)
	quiet = true

	writeConfig(t, dir, "authorizationEndpoint: https://login.example.com/oauth2/authorize\n"+
		"clientID: cli-app\n"+
		"pkce: false\n")

	stdout, _, err := runCommand(t, newAuthorizeURLCmd, "--redirect-uri", "http://127.0.0.1:8400/callback")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 1)

	authURL, err := url.Parse(lines[0])
	require.NoError(t, err)
	q := authURL.Query()
	assert.Equal(t, "login.example.com", authURL.Host)
	assert.Equal(t, "http://127.0.0.1:8400/callback", q.Get("redirect_uri"))
	assert.Empty(t, q.Get("code_challenge"))
}

func TestAuthorizeURL_RejectsNonLoopbackRedirect(t *testing.T) {
	provider := newFakeProvider(t)
	setupCLI(t, nil)

	_, _, err := runCommand(t, newAuthorizeURLCmd,
		"--authority", provider.URL,
		"--client-id", "cli-app",
		"--redirect-uri", "https://example.com/callback")
	require.Error(t, err)
	assert.Equal(t, ExitCodeConfig, getExitCode(err))
}
