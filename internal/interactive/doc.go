// Package interactive implements the interactive OAuth 2.0 authorization
// code flow over a loopback redirect.
//
// A flow binds a local port, opens the system browser on the provider's
// authorization URL and waits for the browser to be redirected back to
// http://localhost:<port> with either an authorization code or an error.
//
// # Components
//
//   - Request: the immutable description of one sign-in, built and
//     validated by RequestBuilder
//   - EndpointResolver: turns the redirect URI into a bound loopback socket,
//     picking a port when the URI has none
//   - CorrelationToken: the state value and PKCE pair tying the response to
//     the request
//   - LoopbackListener: serves the redirect and reports the first terminal
//     event
//   - BrowserLauncher: opens the authorization URL
//   - Coordinator: runs the steps in order and always releases the socket
//
// # Usage
//
//	req, err := interactive.NewRequestBuilder([]string{"User.Read"}, interactive.DefaultRedirectURI).
//	    WithPrompt(interactive.PromptSelectAccount).
//	    Build()
//	if err != nil {
//	    return err
//	}
//
//	coordinator, err := interactive.NewCoordinator(interactive.FlowConfig{
//	    ClientID:              clientID,
//	    AuthorizationEndpoint: metadata.AuthorizationEndpoint,
//	})
//	if err != nil {
//	    return err
//	}
//
//	token, err := coordinator.AcquireToken(ctx, req, exchanger)
//
// # Outcomes
//
// Run reports a timeout, a cancellation and an error returned by the
// provider as an AuthorizationOutcome, not as an error. Only failures that
// keep the flow from running at all (bad input, no usable port, no
// browser, a broken listener) are returned as errors.
package interactive
