package oauth

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Authorization request parameter names.
const (
	ParamClientID            = "client_id"
	ParamResponseType        = "response_type"
	ParamRedirectURI         = "redirect_uri"
	ParamScope               = "scope"
	ParamState               = "state"
	ParamCodeChallenge       = "code_challenge"
	ParamCodeChallengeMethod = "code_challenge_method"
	ParamPrompt              = "prompt"
	ParamLoginHint           = "login_hint"
	ParamDomainHint          = "domain_hint"
)

// ReservedParameters lists the parameters BuildAuthorizationURL owns.
// Extra parameters must not override them.
var ReservedParameters = []string{
	ParamClientID,
	ParamResponseType,
	ParamRedirectURI,
	ParamScope,
	ParamState,
	ParamCodeChallenge,
	ParamCodeChallengeMethod,
	ParamPrompt,
	ParamLoginHint,
	ParamDomainHint,
}

// IsReservedParameter reports whether name is owned by BuildAuthorizationURL.
func IsReservedParameter(name string) bool {
	for _, p := range ReservedParameters {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}

// AuthorizationParams are the inputs of an authorization request.
type AuthorizationParams struct {
	ClientID    string
	RedirectURI string
	Scopes      []string
	State       string
	PKCE        *PKCEChallenge
	Prompt      string
	LoginHint   string
	DomainHint  string
	Extra       map[string]string
}

// BuildAuthorizationURL constructs the authorization request URI. Scopes are
// sorted and space-joined. Query parameters already present on the endpoint
// are preserved.
func BuildAuthorizationURL(authEndpoint string, p AuthorizationParams) (string, error) {
	authURL, err := url.Parse(authEndpoint)
	if err != nil {
		return "", fmt.Errorf("invalid authorization endpoint: %w", err)
	}
	if authURL.Scheme == "" || authURL.Host == "" {
		return "", fmt.Errorf("invalid authorization endpoint %q: absolute URL required", authEndpoint)
	}
	if p.ClientID == "" {
		return "", errors.New("client_id is required")
	}
	if p.RedirectURI == "" {
		return "", errors.New("redirect_uri is required")
	}
	if p.State == "" {
		return "", errors.New("state is required")
	}

	query := authURL.Query()

	for k, v := range p.Extra {
		if IsReservedParameter(k) {
			return "", fmt.Errorf("extra parameter %q overrides a reserved parameter", k)
		}
		query.Set(k, v)
	}

	query.Set(ParamClientID, p.ClientID)
	query.Set(ParamResponseType, "code")
	query.Set(ParamRedirectURI, p.RedirectURI)
	query.Set(ParamState, p.State)

	if len(p.Scopes) > 0 {
		query.Set(ParamScope, JoinScopes(p.Scopes))
	}

	if p.PKCE != nil {
		query.Set(ParamCodeChallenge, p.PKCE.CodeChallenge)
		query.Set(ParamCodeChallengeMethod, p.PKCE.CodeChallengeMethod)
	}

	if p.Prompt != "" {
		query.Set(ParamPrompt, p.Prompt)
	}
	if p.LoginHint != "" {
		query.Set(ParamLoginHint, p.LoginHint)
	}
	if p.DomainHint != "" {
		query.Set(ParamDomainHint, p.DomainHint)
	}

	authURL.RawQuery = query.Encode()
	return authURL.String(), nil
}

// JoinScopes returns the sorted, space-joined scope string.
func JoinScopes(scopes []string) string {
	sorted := append([]string(nil), scopes...)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}
