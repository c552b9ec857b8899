package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"loopauth/internal/config"
	"loopauth/internal/interactive"
	"loopauth/internal/metrics"
	"loopauth/pkg/logging"
	"loopauth/pkg/oauth"
)

// loginBrowser opens the authorization URL. Tests replace it.
var loginBrowser interactive.BrowserLauncher = interactive.SystemBrowser{}

type loginOptions struct {
	requestFlags
	noBrowser bool
	codeOnly  bool
}

func newLoginCmd() *cobra.Command {
	opts := &loginOptions{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser and obtain tokens",
		Long: `Sign in through the browser and obtain tokens.

A temporary listener is started on a loopback redirect URI, the system
browser is opened on the provider's sign-in page and the authorization code
returned to the listener is exchanged for tokens.

Examples:
  loopauth login --authority https://login.example.com/tenant/v2.0 --client-id <id>
  loopauth login --scope User.Read --scope offline_access --prompt select_account
  loopauth login --redirect-uri http://127.0.0.1:8400/callback
  loopauth login --no-browser          # Print the URL instead of opening a browser
  loopauth login --code-only -q        # Print only the authorization code`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVar(&opts.noBrowser, "no-browser", false, "Print the authorization URL instead of opening a browser")
	cmd.Flags().BoolVar(&opts.codeOnly, "code-only", false, "Print the authorization code instead of exchanging it")

	return cmd
}

func runLogin(cmd *cobra.Command, opts *loginOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	cfg, err := loadEffectiveConfig(cmd, &opts.requestFlags)
	if err != nil {
		return err
	}
	if err := initLogging(cfg, cmd.ErrOrStderr()); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	recorder := metrics.New(reg)
	if cfg.MetricsTextfile != "" {
		defer func() {
			if err := metrics.WriteTextfile(reg, cfg.MetricsTextfile); err != nil {
				logging.Error("Login", err, "Failed to write metrics to %s", cfg.MetricsTextfile)
			}
		}()
	}

	client := oauth.NewClient(oauth.WithLogger(logging.Logger("OAuth")))
	ep, err := resolveEndpoints(ctx, client, cfg, !opts.codeOnly)
	if err != nil {
		return err
	}

	var browserOpts interactive.BrowserOptions
	if opts.noBrowser {
		browserOpts.OpenBrowser = printURLBrowser(cmd.ErrOrStderr())
	}
	req, err := buildRequest(cfg, &opts.requestFlags, browserOpts)
	if err != nil {
		return err
	}

	coordinator, err := newCoordinator(cfg, ep.authorization, recorder)
	if err != nil {
		return err
	}

	stopSpinner := func(bool) {}
	if opts.showSpinner() {
		stopSpinner = startSpinner(cmd.ErrOrStderr(), " Waiting for sign-in in your browser...")
	}

	if opts.codeOnly {
		result, err := coordinator.Run(ctx, req, cfg.Timeout)
		stopSpinner(err == nil && result.Outcome.IsSuccess())
		if err != nil {
			return err
		}
		if err := result.Outcome.Err(); err != nil {
			return err
		}
		printCodeResult(out, result)
		return nil
	}

	exchanger := oauth.NewCodeExchanger(cfg.ClientID, ep.authorization, ep.token,
		oauth.WithExchangeHTTPClient(client.HTTPClient()),
		oauth.WithExchangeScopes(cfg.Scopes))

	token, err := coordinator.AcquireToken(ctx, req, exchanger)
	stopSpinner(err == nil)
	if err != nil {
		return err
	}

	printTokenResult(out, token)
	return nil
}

func newCoordinator(cfg config.Config, authorizationEndpoint string, recorder interactive.Recorder) (*interactive.Coordinator, error) {
	logger := logging.Logger("Interactive")

	resolver, err := interactive.NewEndpointResolver(cfg.PortPolicy(),
		interactive.WithResolverLogger(logger),
		interactive.WithResolverRecorder(recorder))
	if err != nil {
		return nil, err
	}

	return interactive.NewCoordinator(cfg.FlowConfig(authorizationEndpoint),
		interactive.WithLogger(logger),
		interactive.WithResolver(resolver),
		interactive.WithBrowser(loginBrowser),
		interactive.WithRecorder(recorder),
		interactive.WithStrayRequestLimit(cfg.StrayRequests.PerMinute, cfg.StrayRequests.Burst))
}

// showSpinner reports whether progress is animated on stderr. With
// --no-browser stderr carries the authorization URL instead.
func (o *loginOptions) showSpinner() bool {
	return !quiet && !o.noBrowser
}

// startSpinner shows progress on w. The returned function stops it and
// prints the final status.
func startSpinner(w io.Writer, suffix string) func(ok bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = suffix
	s.Start()

	return func(ok bool) {
		if ok {
			s.FinalMSG = text.FgGreen.Sprint("✓ Signed in") + "\n"
		} else {
			s.FinalMSG = text.FgRed.Sprint("✗ Sign-in did not complete") + "\n"
		}
		s.Stop()
	}
}

func printCodeResult(w io.Writer, result *interactive.FlowResult) {
	if quiet {
		fmt.Fprintln(w, result.Outcome.Code)
		return
	}

	fmt.Fprintf(w, "Authorization code: %s\n", result.Outcome.Code)
	fmt.Fprintf(w, "Redirect URI:       %s\n", result.RedirectURI)
	if result.CodeVerifier != "" {
		fmt.Fprintf(w, "Code verifier:      %s\n", result.CodeVerifier)
	}
}

func printTokenResult(w io.Writer, token *oauth.Token) {
	if quiet {
		fmt.Fprintln(w, token.AccessToken)
		return
	}

	fmt.Fprintf(w, "Token type:    %s\n", token.TokenType)
	if !token.ExpiresAt.IsZero() {
		expiry := token.ExpiresAt.Local().Format(time.RFC1123)
		if token.IsExpired() {
			expiry += text.FgYellow.Sprint(" (expiring)")
		}
		fmt.Fprintf(w, "Expires at:    %s\n", expiry)
	}
	if scopes := token.Scopes(); len(scopes) > 0 {
		fmt.Fprintf(w, "Scopes:        %s\n", strings.Join(scopes, " "))
	}
	fmt.Fprintf(w, "Refresh token: %s\n", presence(token.RefreshToken != ""))
	fmt.Fprintf(w, "ID token:      %s\n", presence(token.IDToken != ""))
	fmt.Fprintf(w, "\n%s\n", token.AccessToken)
}

func presence(ok bool) string {
	if ok {
		return text.FgGreen.Sprint("yes")
	}
	return text.FgYellow.Sprint("no")
}
