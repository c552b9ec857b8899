// Package oauth provides the OAuth 2.0 / OIDC protocol helpers used by the
// interactive login flow.
//
// It knows nothing about loopback listeners or browsers. It only deals with
// the protocol: random values, authorization URLs, server metadata and the
// code-for-token exchange.
//
// # Core Components
//
//   - GenerateStateFrom / GeneratePKCEFrom: correlation state and RFC 7636 PKCE pairs
//   - BuildAuthorizationURL: the authorization request URI
//   - Client: RFC 8414 / OIDC metadata discovery with caching
//   - CodeExchanger: authorization code redemption via golang.org/x/oauth2
//   - Token, Metadata: wire types
//
// # Usage
//
//	client := oauth.NewClient(oauth.WithLogger(logger))
//	metadata, err := client.DiscoverMetadata(ctx, authority)
//
//	exchanger := oauth.NewCodeExchanger(clientID, metadata.AuthorizationEndpoint, metadata.TokenEndpoint)
//	token, err := exchanger.Exchange(ctx, code, redirectURI, verifier)
package oauth
