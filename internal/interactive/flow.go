package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"loopauth/pkg/logging"
	"loopauth/pkg/oauth"
	pkgstrings "loopauth/pkg/strings"
)

// DefaultTimeout is how long Run waits for the redirect when neither the
// caller nor FlowConfig set a timeout.
const DefaultTimeout = 10 * time.Minute

// FlowConfig holds the client registration the coordinator signs in with.
type FlowConfig struct {
	ClientID              string
	AuthorizationEndpoint string

	// Timeout is used when Run is called with a zero timeout.
	Timeout time.Duration

	// DisablePKCE omits the code challenge. Only for providers that reject it.
	DisablePKCE bool
}

// FlowResult is what Run produced. CodeVerifier is empty when PKCE is disabled.
type FlowResult struct {
	Outcome      AuthorizationOutcome
	RedirectURI  string
	CodeVerifier string
	FlowID       string
}

// TokenExchanger redeems an authorization code. oauth.CodeExchanger
// implements it.
type TokenExchanger interface {
	Exchange(ctx context.Context, code, redirectURI, codeVerifier string) (*oauth.Token, error)
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the logger. Flow log lines carry a flow_id attribute.
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithResolver replaces the default kernel-assigned port resolver.
func WithResolver(r *EndpointResolver) CoordinatorOption {
	return func(c *Coordinator) {
		c.resolver = r
	}
}

// WithBrowser replaces the system browser.
func WithBrowser(b BrowserLauncher) CoordinatorOption {
	return func(c *Coordinator) {
		c.browser = b
	}
}

// WithRandom sets the entropy source for state and PKCE values.
func WithRandom(r io.Reader) CoordinatorOption {
	return func(c *Coordinator) {
		c.random = r
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) CoordinatorOption {
	return func(c *Coordinator) {
		c.recorder = rec
	}
}

// WithStrayRequestLimit sets the listener's budget for unrelated requests.
func WithStrayRequestLimit(perMinute, burst int) CoordinatorOption {
	return func(c *Coordinator) {
		c.strayPerMinute = perMinute
		c.strayBurst = burst
	}
}

// Coordinator runs interactive authorization code flows over a loopback
// redirect. It holds no per-flow state, so concurrent Runs are independent.
type Coordinator struct {
	cfg            FlowConfig
	logger         *slog.Logger
	resolver       *EndpointResolver
	browser        BrowserLauncher
	random         io.Reader
	recorder       Recorder
	strayPerMinute int
	strayBurst     int
}

// NewCoordinator validates cfg and returns a Coordinator.
func NewCoordinator(cfg FlowConfig, opts ...CoordinatorOption) (*Coordinator, error) {
	if cfg.ClientID == "" {
		return nil, validationErrorf("client_id", "must not be empty")
	}
	u, err := url.Parse(cfg.AuthorizationEndpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, validationErrorf("authorization_endpoint", "must be an absolute http(s) URL")
	}
	if cfg.Timeout < 0 {
		return nil, validationErrorf("timeout", "must not be negative")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Coordinator{
		cfg:            cfg,
		logger:         slog.Default(),
		browser:        SystemBrowser{},
		recorder:       nopRecorder{},
		strayPerMinute: DefaultStrayPerMinute,
		strayBurst:     DefaultStrayBurst,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.resolver == nil {
		c.resolver, err = NewEndpointResolver(DefaultPortPolicy(),
			WithResolverLogger(c.logger),
			WithResolverRecorder(c.recorder))
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Run performs one interactive flow: bind the loopback endpoint, open the
// browser on the authorization URL and wait for the redirect. The socket is
// released before Run returns on every path.
//
// Timeout, cancellation and provider errors are reported in the outcome.
// The error is non-nil only for failures that prevented the flow from
// running: *ValidationError, *PortUnavailableError, *NoAvailablePortError,
// *BrowserLaunchError and *ListenerError.
func (c *Coordinator) Run(ctx context.Context, req *Request, timeout time.Duration) (result *FlowResult, err error) {
	started := time.Now()
	flowID := uuid.NewString()
	logger := c.logger.With("flow_id", flowID)

	defer func() {
		c.finishFlow(flowID, started, result, err)
	}()

	if req == nil {
		return nil, validationErrorf("request", "must not be nil")
	}
	if timeout < 0 {
		return nil, validationErrorf("timeout", "must not be negative")
	}
	if timeout == 0 {
		timeout = c.cfg.Timeout
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return &FlowResult{Outcome: outcomeForContext(ctxErr), FlowID: flowID}, nil
	}

	endpoint, err := c.resolver.Resolve(ctx, req.RedirectURI())
	if err != nil {
		return nil, err
	}
	defer func() { _ = endpoint.Close() }()

	resolved, err := req.resolveRedirect(endpoint.URL())
	if err != nil {
		return nil, err
	}
	redirectURI := resolved.RedirectURI().String()
	logger.Debug("Resolved loopback redirect", "redirect_uri", redirectURI)

	token, err := GenerateCorrelationToken(c.random, !c.cfg.DisablePKCE)
	if err != nil {
		return nil, err
	}

	listener := NewLoopbackListener(token,
		WithListenerLogger(logger),
		WithListenerRecorder(c.recorder),
		WithPages(resolved.BrowserOptions()),
		WithStrayLimit(c.strayPerMinute, c.strayBurst))
	defer func() {
		if closeErr := listener.Close(); closeErr != nil {
			logger.Warn("Failed to close loopback listener", "error", closeErr)
		}
	}()
	if err := listener.Start(endpoint); err != nil {
		return nil, err
	}

	authURL, err := oauth.BuildAuthorizationURL(c.cfg.AuthorizationEndpoint, oauth.AuthorizationParams{
		ClientID:    c.cfg.ClientID,
		RedirectURI: redirectURI,
		Scopes:      resolved.Scopes(),
		State:       token.State(),
		PKCE:        token.PKCE(),
		Prompt:      string(resolved.Prompt()),
		LoginHint:   resolved.LoginHint(),
		DomainHint:  resolved.DomainHint(),
		Extra:       resolved.ExtraQueryParameters(),
	})
	if err != nil {
		return nil, validationErrorf("authorization_request", "%v", err)
	}

	if err := c.launch(ctx, resolved.BrowserOptions(), authURL); err != nil {
		return nil, err
	}
	logger.Info("Waiting for authorization redirect", "port", endpoint.Port(), "timeout", timeout)

	outcome, err := listener.AwaitResult(ctx, timeout)
	if err != nil {
		return nil, err
	}

	return &FlowResult{
		Outcome:      outcome,
		RedirectURI:  redirectURI,
		CodeVerifier: token.CodeVerifier(),
		FlowID:       flowID,
	}, nil
}

func (c *Coordinator) launch(ctx context.Context, opts BrowserOptions, authURL string) error {
	launcher := c.browser
	if opts.OpenBrowser != nil {
		launcher = BrowserLauncherFunc(opts.OpenBrowser)
	}

	err := launcher.Launch(ctx, authURL)
	c.recorder.BrowserLaunch(err == nil)
	if err == nil {
		return nil
	}

	var launchErr *BrowserLaunchError
	if errors.As(err, &launchErr) {
		return err
	}
	return &BrowserLaunchError{Reason: err}
}

func (c *Coordinator) finishFlow(flowID string, started time.Time, result *FlowResult, err error) {
	outcome := "error"
	detail := ""
	if err != nil {
		detail = err.Error()
	} else if result != nil {
		outcome = result.Outcome.Kind.String()
		if result.Outcome.Kind == OutcomeAuthorizationError {
			detail = result.Outcome.ErrorCode
		}
	}

	c.recorder.FlowFinished(outcome, time.Since(started))

	target := c.cfg.AuthorizationEndpoint
	if u, parseErr := url.Parse(target); parseErr == nil {
		target = u.Host
	}
	logging.Audit(logging.AuditEvent{
		Action:  "interactive_authorization",
		Outcome: outcome,
		FlowID:  flowID,
		Target:  target,
		Detail:  pkgstrings.TruncateDescription(detail, pkgstrings.DefaultDescriptionMaxLen),
	})
}

func outcomeForContext(err error) AuthorizationOutcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return AuthorizationOutcome{Kind: OutcomeTimeout}
	}
	return AuthorizationOutcome{Kind: OutcomeCanceled}
}

// AcquireToken runs the flow and redeems the authorization code with
// exchanger. Non-success outcomes are returned as ErrTimeout, ErrCanceled or
// *AuthorizationError.
func (c *Coordinator) AcquireToken(ctx context.Context, req *Request, exchanger TokenExchanger) (*oauth.Token, error) {
	if exchanger == nil {
		return nil, validationErrorf("exchanger", "must not be nil")
	}

	result, err := c.Run(ctx, req, 0)
	if err != nil {
		return nil, err
	}
	if !result.Outcome.IsSuccess() {
		return nil, result.Outcome.Err()
	}

	token, err := exchanger.Exchange(ctx, result.Outcome.Code, result.RedirectURI, result.CodeVerifier)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}
