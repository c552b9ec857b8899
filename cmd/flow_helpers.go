package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"loopauth/internal/config"
	"loopauth/internal/interactive"
	"loopauth/pkg/logging"
	"loopauth/pkg/oauth"
)

// requestFlags are shared by the commands that build an authorization request.
type requestFlags struct {
	scopes      []string
	redirectURI string
	prompt      string
	loginHint   string
	domainHint  string
	authority   string
	clientID    string
	timeout     time.Duration
}

func (f *requestFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringArrayVar(&f.scopes, "scope", nil, "Scope to request (repeatable)")
	flags.StringVar(&f.redirectURI, "redirect-uri", "", "Loopback redirect URI, e.g. http://localhost or http://127.0.0.1:8400/callback")
	flags.StringVar(&f.prompt, "prompt", "", "Prompt behaviour: none, login, select_account or consent")
	flags.StringVar(&f.loginHint, "login-hint", "", "Pre-fill the account name on the sign-in page")
	flags.StringVar(&f.domainHint, "domain-hint", "", "Skip home realm discovery for this domain")
	flags.StringVar(&f.authority, "authority", "", "Issuer URL used for metadata discovery")
	flags.StringVar(&f.clientID, "client-id", "", "OAuth client ID")
	flags.DurationVar(&f.timeout, "timeout", 0, "How long to wait for the browser redirect")
}

// loadEffectiveConfig loads config.yaml and applies the flags that were set.
func loadEffectiveConfig(cmd *cobra.Command, f *requestFlags) (config.Config, error) {
	dir := configPath
	if dir == "" {
		var err error
		dir, err = config.GetDefaultConfigPath()
		if err != nil {
			return config.Config{}, err
		}
	}

	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("scope") {
		cfg.Scopes = f.scopes
	}
	if flags.Changed("redirect-uri") {
		cfg.RedirectURI = f.redirectURI
	}
	if flags.Changed("authority") {
		cfg.Authority = f.authority
		// Endpoints in the file belong to the configured authority.
		cfg.AuthorizationEndpoint = ""
		cfg.TokenEndpoint = ""
	}
	if flags.Changed("client-id") {
		cfg.ClientID = f.clientID
	}
	if flags.Changed("timeout") {
		cfg.Timeout = f.timeout
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// initLogging switches the CLI logger to the configured level and format.
func initLogging(cfg config.Config, output io.Writer) error {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logging.InitWithFormat(level, logging.Format(cfg.LogFormat), output)
	return nil
}

// endpoints are the provider URLs a login talks to.
type endpoints struct {
	authorization string
	token         string
}

// resolveEndpoints uses the configured endpoints and discovers the missing
// ones from the authority's metadata.
func resolveEndpoints(ctx context.Context, client *oauth.Client, cfg config.Config, needToken bool) (endpoints, error) {
	ep := endpoints{authorization: cfg.AuthorizationEndpoint, token: cfg.TokenEndpoint}
	if ep.authorization != "" && (ep.token != "" || !needToken) {
		return ep, nil
	}
	if cfg.Authority == "" {
		return endpoints{}, config.NewConfigurationError("", "validation",
			"tokenEndpoint or authority is required to exchange the code", nil)
	}

	metadata, err := client.DiscoverMetadata(ctx, cfg.Authority)
	if err != nil {
		return endpoints{}, err
	}
	if cfg.PKCE && !metadata.SupportsPKCE() {
		logging.Warn("Login", "Authority %s does not advertise S256 PKCE support", cfg.Authority)
	}

	if ep.authorization == "" {
		ep.authorization = metadata.AuthorizationEndpoint
	}
	if ep.token == "" {
		ep.token = metadata.TokenEndpoint
	}
	logging.Info("Login", "Discovered endpoints for %s: authorization %s, token %s",
		cfg.Authority, ep.authorization, ep.token)
	return ep, nil
}

// buildRequest turns the effective configuration and flags into a Request.
func buildRequest(cfg config.Config, f *requestFlags, opts interactive.BrowserOptions) (*interactive.Request, error) {
	prompt, err := interactive.ParsePrompt(f.prompt)
	if err != nil {
		return nil, err
	}

	return interactive.NewRequestBuilder(cfg.Scopes, cfg.RedirectURI).
		WithPrompt(prompt).
		WithLoginHint(f.loginHint).
		WithDomainHint(f.domainHint).
		WithBrowserOptions(opts).
		Build()
}

// printURLBrowser prints the authorization URL instead of opening a browser.
func printURLBrowser(w io.Writer) func(context.Context, string) error {
	return func(_ context.Context, authorizationURL string) error {
		_, err := fmt.Fprintf(w, "Open the following URL in your browser to sign in:\n\n  %s\n\n", authorizationURL)
		return err
	}
}
