package interactive

import (
	"context"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"loopauth/pkg/oauth"
)

// DefaultRedirectURI is the loopback redirect URI without a port. Requests
// built with it get a port assigned when the flow runs.
const DefaultRedirectURI = "http://localhost"

// Prompt indicates the type of user interaction that is required.
type Prompt string

const (
	PromptUnset         Prompt = ""
	PromptNone          Prompt = "none"
	PromptLogin         Prompt = "login"
	PromptSelectAccount Prompt = "select_account"
	PromptConsent       Prompt = "consent"
)

// Valid reports whether p is one of the known prompt values.
func (p Prompt) Valid() bool {
	switch p {
	case PromptUnset, PromptNone, PromptLogin, PromptSelectAccount, PromptConsent:
		return true
	default:
		return false
	}
}

// ParsePrompt converts a flag or config value into a Prompt. Both
// "select_account" and "select-account" are accepted.
func ParsePrompt(s string) (Prompt, error) {
	p := Prompt(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !p.Valid() {
		return PromptUnset, validationErrorf("prompt", "unknown prompt %q", s)
	}
	return p, nil
}

// BrowserOptions controls how the browser is opened and what it shows once
// the redirect has been received. The zero value uses the system browser and
// the built-in pages.
type BrowserOptions struct {
	// SuccessHTML replaces the built-in page shown after a successful sign-in.
	SuccessHTML string

	// ErrorHTML replaces the built-in page shown when the provider returned an error.
	ErrorHTML string

	// SuccessRedirect, when set, redirects the browser there instead of
	// rendering a success page.
	SuccessRedirect string

	// ErrorRedirect, when set, redirects the browser there instead of
	// rendering an error page.
	ErrorRedirect string

	// OpenBrowser replaces the coordinator's BrowserLauncher for this request.
	OpenBrowser func(ctx context.Context, authorizationURL string) error
}

func (o BrowserOptions) validate() error {
	for field, raw := range map[string]string{
		"browser_options.success_redirect": o.SuccessRedirect,
		"browser_options.error_redirect":   o.ErrorRedirect,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return validationErrorf(field, "must be an absolute http(s) URL")
		}
	}
	return nil
}

// Request is the immutable description of one interactive sign-in. Build it
// with NewRequestBuilder.
type Request struct {
	scopes               []string
	redirectURI          *url.URL
	redirectResolved     bool
	prompt               Prompt
	loginHint            string
	domainHint           string
	browserOptions       BrowserOptions
	extraQueryParameters map[string]string
}

// Scopes returns the requested scopes, deduplicated and sorted.
func (r *Request) Scopes() []string {
	return append([]string(nil), r.scopes...)
}

// RedirectURI returns a copy of the loopback redirect URI. Port 0 means the
// port is assigned when the flow runs.
func (r *Request) RedirectURI() *url.URL {
	u := *r.redirectURI
	return &u
}

// Prompt returns the requested prompt behaviour.
func (r *Request) Prompt() Prompt { return r.prompt }

// LoginHint returns the login hint, if any.
func (r *Request) LoginHint() string { return r.loginHint }

// DomainHint returns the domain hint, if any.
func (r *Request) DomainHint() string { return r.domainHint }

// BrowserOptions returns the browser options.
func (r *Request) BrowserOptions() BrowserOptions { return r.browserOptions }

// ExtraQueryParameters returns a copy of the additional authorization
// request parameters.
func (r *Request) ExtraQueryParameters() map[string]string {
	if len(r.extraQueryParameters) == 0 {
		return nil
	}
	out := make(map[string]string, len(r.extraQueryParameters))
	for k, v := range r.extraQueryParameters {
		out[k] = v
	}
	return out
}

// resolveRedirect returns a copy of r whose redirect URI is the
// resolved loopback endpoint. It may happen once per request lineage; the
// caller's value is never modified.
func (r *Request) resolveRedirect(resolved *url.URL) (*Request, error) {
	if r.redirectResolved {
		return nil, ErrRedirectAlreadyResolved
	}
	cp := *r
	u := *resolved
	cp.redirectURI = &u
	cp.redirectResolved = true
	return &cp, nil
}

// RequestBuilder collects the inputs of a Request. Validation happens in Build.
type RequestBuilder struct {
	scopes         []string
	redirectURI    string
	prompt         Prompt
	loginHint      string
	domainHint     string
	browserOptions BrowserOptions
	extra          map[string]string
}

// NewRequestBuilder starts a Request with the two mandatory inputs. Pass
// DefaultRedirectURI to have a port picked automatically.
func NewRequestBuilder(scopes []string, redirectURI string) *RequestBuilder {
	return &RequestBuilder{
		scopes:      append([]string(nil), scopes...),
		redirectURI: redirectURI,
	}
}

func (b *RequestBuilder) WithPrompt(p Prompt) *RequestBuilder {
	b.prompt = p
	return b
}

func (b *RequestBuilder) WithLoginHint(hint string) *RequestBuilder {
	b.loginHint = hint
	return b
}

func (b *RequestBuilder) WithDomainHint(hint string) *RequestBuilder {
	b.domainHint = hint
	return b
}

func (b *RequestBuilder) WithBrowserOptions(opts BrowserOptions) *RequestBuilder {
	b.browserOptions = opts
	return b
}

// WithExtraQueryParameters adds parameters to the authorization request.
// Parameters owned by the flow (state, redirect_uri, ...) are rejected by Build.
func (b *RequestBuilder) WithExtraQueryParameters(params map[string]string) *RequestBuilder {
	if b.extra == nil {
		b.extra = make(map[string]string, len(params))
	}
	for k, v := range params {
		b.extra[k] = v
	}
	return b
}

// Build validates the inputs and returns the Request. All failures are
// *ValidationError.
func (b *RequestBuilder) Build() (*Request, error) {
	scopes, err := normalizeScopes(b.scopes)
	if err != nil {
		return nil, err
	}

	redirect, err := ParseLoopbackURI(b.redirectURI)
	if err != nil {
		return nil, err
	}

	if !b.prompt.Valid() {
		return nil, validationErrorf("prompt", "unknown prompt %q", string(b.prompt))
	}

	if err := b.browserOptions.validate(); err != nil {
		return nil, err
	}

	var extra map[string]string
	if len(b.extra) > 0 {
		extra = make(map[string]string, len(b.extra))
		for k, v := range b.extra {
			if strings.TrimSpace(k) == "" {
				return nil, validationErrorf("extra_query_parameters", "parameter name must not be blank")
			}
			if oauth.IsReservedParameter(k) {
				return nil, validationErrorf("extra_query_parameters", "%q is set by the flow and cannot be overridden", k)
			}
			extra[k] = v
		}
	}

	return &Request{
		scopes:               scopes,
		redirectURI:          redirect,
		prompt:               b.prompt,
		loginHint:            strings.TrimSpace(b.loginHint),
		domainHint:           strings.TrimSpace(b.domainHint),
		browserOptions:       b.browserOptions,
		extraQueryParameters: extra,
	}, nil
}

func normalizeScopes(in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, validationErrorf("scopes", "at least one scope is required")
	}

	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			return nil, validationErrorf("scopes", "scope must not be blank")
		}
		if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
			return nil, validationErrorf("scopes", "scope %q must not contain whitespace", s)
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	sort.Strings(out)
	return out, nil
}

// ParseLoopbackURI parses and validates a loopback redirect URI: http
// scheme, a loopback host, an optional port in [0, 65535], no query or
// fragment. A missing port is normalized to port 0.
func ParseLoopbackURI(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, validationErrorf("redirect_uri", "must not be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, validationErrorf("redirect_uri", "unparseable: %v", err)
	}

	if err := validateLoopbackURL(u); err != nil {
		return nil, err
	}

	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), "0")
	}

	return u, nil
}

func validateLoopbackURL(u *url.URL) error {
	if u.Scheme != "http" {
		return validationErrorf("redirect_uri", "scheme must be http, got %q", u.Scheme)
	}
	if u.Opaque != "" || u.User != nil {
		return validationErrorf("redirect_uri", "must be a plain http://host:port/path URI")
	}
	if !IsLoopbackHost(u.Hostname()) {
		return validationErrorf("redirect_uri", "host %q is not a loopback address", u.Hostname())
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return validationErrorf("redirect_uri", "must not contain a query or fragment")
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 0 || port > 65535 {
			return validationErrorf("redirect_uri", "port %q out of range", p)
		}
	}
	return nil
}

// IsLoopbackHost reports whether host is "localhost" or a loopback IP.
func IsLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// portOf returns the numeric port of a validated loopback URL.
func portOf(u *url.URL) int {
	port, _ := strconv.Atoi(u.Port())
	return port
}

// SameScopes reports whether a and b contain the same scopes, ignoring
// order and duplicates.
func SameScopes(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = false
	}
	for _, s := range b {
		if _, ok := set[s]; !ok {
			return false
		}
		set[s] = true
	}
	for _, seen := range set {
		if !seen {
			return false
		}
	}
	return true
}
