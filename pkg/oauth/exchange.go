package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// CodeExchanger redeems authorization codes at a token endpoint on behalf of
// a public client.
type CodeExchanger struct {
	clientID      string
	authEndpoint  string
	tokenEndpoint string
	scopes        []string
	httpClient    *http.Client
}

// CodeExchangerOption configures a CodeExchanger.
type CodeExchangerOption func(*CodeExchanger)

// WithExchangeHTTPClient sets the HTTP client used for the token request.
func WithExchangeHTTPClient(httpClient *http.Client) CodeExchangerOption {
	return func(e *CodeExchanger) {
		e.httpClient = httpClient
	}
}

// WithExchangeScopes sets the scopes sent along with the token request.
func WithExchangeScopes(scopes []string) CodeExchangerOption {
	return func(e *CodeExchanger) {
		e.scopes = append([]string(nil), scopes...)
	}
}

// NewCodeExchanger creates a CodeExchanger for a public client.
func NewCodeExchanger(clientID, authEndpoint, tokenEndpoint string, opts ...CodeExchangerOption) *CodeExchanger {
	e := &CodeExchanger{
		clientID:      clientID,
		authEndpoint:  authEndpoint,
		tokenEndpoint: tokenEndpoint,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Exchange redeems code. redirectURI must be the exact loopback URI the code
// was issued for; codeVerifier is sent when non-empty.
func (e *CodeExchanger) Exchange(ctx context.Context, code, redirectURI, codeVerifier string) (*Token, error) {
	if code == "" {
		return nil, errors.New("authorization code is required")
	}
	if e.tokenEndpoint == "" {
		return nil, errors.New("token endpoint is not configured")
	}

	cfg := &oauth2.Config{
		ClientID:    e.clientID,
		RedirectURL: redirectURI,
		Scopes:      e.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   e.authEndpoint,
			TokenURL:  e.tokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	if e.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	}

	var opts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}

	tok, err := cfg.Exchange(ctx, code, opts...)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "" {
			return nil, fmt.Errorf("token endpoint rejected code: %s: %w", retrieveErr.ErrorCode, err)
		}
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	return TokenFromOAuth2(tok), nil
}
