package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loopauth/internal/interactive"
	"loopauth/pkg/oauth"
)

func newAuthorizeURLCmd() *cobra.Command {
	flags := &requestFlags{}

	cmd := &cobra.Command{
		Use:   "authorize-url",
		Short: "Print the authorization URL a login would open",
		Long: `Print the authorization URL a login would open, together with the
state and PKCE verifier generated for it. Nothing listens on the redirect
URI, so this is only useful to inspect the request or to drive the flow
by hand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthorizeURL(cmd, flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func runAuthorizeURL(cmd *cobra.Command, flags *requestFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	cfg, err := loadEffectiveConfig(cmd, flags)
	if err != nil {
		return err
	}

	ep, err := resolveEndpoints(ctx, oauth.NewClient(), cfg, false)
	if err != nil {
		return err
	}

	req, err := buildRequest(cfg, flags, interactive.BrowserOptions{})
	if err != nil {
		return err
	}

	token, err := interactive.GenerateCorrelationToken(nil, cfg.PKCE)
	if err != nil {
		return err
	}

	// Nothing is bound here, so an automatic port is left out of the URI.
	redirect := req.RedirectURI()
	if redirect.Port() == "0" {
		redirect.Host = redirect.Hostname()
		if strings.Contains(redirect.Host, ":") {
			redirect.Host = "[" + redirect.Host + "]"
		}
	}

	authURL, err := oauth.BuildAuthorizationURL(ep.authorization, oauth.AuthorizationParams{
		ClientID:    cfg.ClientID,
		RedirectURI: redirect.String(),
		Scopes:      req.Scopes(),
		State:       token.State(),
		PKCE:        token.PKCE(),
		Prompt:      string(req.Prompt()),
		LoginHint:   req.LoginHint(),
		DomainHint:  req.DomainHint(),
		Extra:       req.ExtraQueryParameters(),
	})
	if err != nil {
		return err
	}

	if quiet {
		fmt.Fprintln(out, authURL)
		return nil
	}

	fmt.Fprintf(out, "Authorization URL: %s\n", authURL)
	fmt.Fprintf(out, "State:             %s\n", token.State())
	if v := token.CodeVerifier(); v != "" {
		fmt.Fprintf(out, "Code verifier:     %s\n", v)
	}
	return nil
}
