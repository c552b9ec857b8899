package interactive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

const (
	// DefaultBindHost is the address "localhost" redirect URIs are bound to.
	DefaultBindHost = "127.0.0.1"

	// DefaultMaxPortAttempts bounds the bind attempts of a range scan.
	DefaultMaxPortAttempts = 50
)

// PortPolicy controls how a port is picked when the redirect URI does not
// name one. With an empty range the kernel assigns an ephemeral port.
type PortPolicy struct {
	// BindHost is the loopback IP used for "localhost" redirect URIs.
	BindHost string

	// RangeStart and RangeEnd bound the ports tried, inclusive.
	RangeStart int
	RangeEnd   int

	// MaxAttempts limits the binds of a range scan.
	MaxAttempts int
}

// DefaultPortPolicy returns a policy that lets the kernel pick the port.
func DefaultPortPolicy() PortPolicy {
	return PortPolicy{
		BindHost:    DefaultBindHost,
		MaxAttempts: DefaultMaxPortAttempts,
	}
}

// Validate checks the policy bounds.
func (p PortPolicy) Validate() error {
	if p.BindHost != "" {
		ip := net.ParseIP(p.BindHost)
		if ip == nil || !ip.IsLoopback() {
			return validationErrorf("ports.bind_host", "%q is not a loopback IP", p.BindHost)
		}
	}
	if p.MaxAttempts < 0 {
		return validationErrorf("ports.max_attempts", "must not be negative")
	}
	if p.kernelAssigned() {
		return nil
	}
	if p.RangeStart < 1 || p.RangeEnd > 65535 || p.RangeStart > p.RangeEnd {
		return validationErrorf("ports", "invalid range %d-%d", p.RangeStart, p.RangeEnd)
	}
	return nil
}

func (p PortPolicy) kernelAssigned() bool {
	return p.RangeStart == 0 && p.RangeEnd == 0
}

// ListenFunc binds a TCP listener. It matches net.ListenConfig.Listen.
type ListenFunc func(ctx context.Context, network, address string) (net.Listener, error)

// ResolverOption configures an EndpointResolver.
type ResolverOption func(*EndpointResolver)

// WithListenFunc replaces the function used to bind sockets.
func WithListenFunc(fn ListenFunc) ResolverOption {
	return func(r *EndpointResolver) {
		r.listen = fn
	}
}

// WithPortRandom sets the source of the scan offset.
func WithPortRandom(rnd *rand.Rand) ResolverOption {
	return func(r *EndpointResolver) {
		r.rnd = rnd
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *EndpointResolver) {
		r.logger = logger
	}
}

// WithResolverRecorder sets the recorder notified of every bind attempt.
func WithResolverRecorder(rec Recorder) ResolverOption {
	return func(r *EndpointResolver) {
		r.recorder = rec
	}
}

// EndpointResolver turns a candidate redirect URI into a bound loopback
// endpoint. Binding is part of resolution, so the port cannot be taken by
// someone else between choosing it and listening on it.
type EndpointResolver struct {
	policy   PortPolicy
	listen   ListenFunc
	rnd      *rand.Rand
	rndMu    sync.Mutex
	logger   *slog.Logger
	recorder Recorder
}

// NewEndpointResolver creates a resolver for the given policy.
func NewEndpointResolver(policy PortPolicy, opts ...ResolverOption) (*EndpointResolver, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if policy.BindHost == "" {
		policy.BindHost = DefaultBindHost
	}
	if policy.MaxAttempts == 0 {
		policy.MaxAttempts = DefaultMaxPortAttempts
	}

	var lc net.ListenConfig
	r := &EndpointResolver{
		policy:   policy,
		listen:   lc.Listen,
		logger:   slog.Default(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Policy returns the effective port policy.
func (r *EndpointResolver) Policy() PortPolicy {
	return r.policy
}

// Resolve binds the endpoint for candidate. A candidate with an explicit
// port binds exactly that port or fails with *PortUnavailableError. A nil
// candidate or port 0 picks a port per the policy and fails with
// *NoAvailablePortError. The returned endpoint owns the socket until it is
// handed to a LoopbackListener or closed.
func (r *EndpointResolver) Resolve(ctx context.Context, candidate *url.URL) (*ResolvedEndpoint, error) {
	if candidate == nil {
		u, err := url.Parse(DefaultRedirectURI)
		if err != nil {
			return nil, err
		}
		candidate = u
	} else {
		if err := validateLoopbackURL(candidate); err != nil {
			return nil, err
		}
		cp := *candidate
		candidate = &cp
	}

	bindHost := r.bindHostFor(candidate.Hostname())

	if port := portOf(candidate); port != 0 {
		ln, err := r.bind(ctx, bindHost, port)
		if err != nil {
			r.logger.Warn("Requested loopback port unavailable", "port", port, "error", err)
			return nil, &PortUnavailableError{Port: port, Reason: err}
		}
		return newResolvedEndpoint(candidate, ln), nil
	}

	ln, err := r.pickPort(ctx, bindHost)
	if err != nil {
		return nil, err
	}
	return newResolvedEndpoint(candidate, ln), nil
}

func (r *EndpointResolver) bindHostFor(host string) string {
	if strings.EqualFold(host, "localhost") {
		return r.policy.BindHost
	}
	return host
}

func (r *EndpointResolver) bind(ctx context.Context, host string, port int) (net.Listener, error) {
	ln, err := r.listen(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	r.recorder.PortBindAttempt(err == nil)
	return ln, err
}

func (r *EndpointResolver) pickPort(ctx context.Context, host string) (net.Listener, error) {
	if r.policy.kernelAssigned() {
		ln, err := r.bind(ctx, host, 0)
		if err != nil {
			return nil, &NoAvailablePortError{Attempts: 1, Last: err}
		}
		return ln, nil
	}

	size := r.policy.RangeEnd - r.policy.RangeStart + 1
	attempts := min(r.policy.MaxAttempts, size)
	offset := r.intN(size)

	var last error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("port selection interrupted: %w", err)
		}

		port := r.policy.RangeStart + (offset+i)%size
		ln, err := r.bind(ctx, host, port)
		if err == nil {
			return ln, nil
		}
		last = err
		r.logger.Debug("Loopback port busy, trying next", "port", port, "error", err)
	}

	if last == nil {
		last = errors.New("no ports to try")
	}
	return nil, &NoAvailablePortError{
		Attempts:   attempts,
		RangeStart: r.policy.RangeStart,
		RangeEnd:   r.policy.RangeEnd,
		Last:       last,
	}
}

func (r *EndpointResolver) intN(n int) int {
	if r.rnd == nil {
		return rand.IntN(n)
	}
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.rnd.IntN(n)
}

// ResolvedEndpoint is a concrete loopback redirect URI together with the
// socket bound for it.
type ResolvedEndpoint struct {
	url  *url.URL
	port int

	mu       sync.Mutex
	listener net.Listener
}

func newResolvedEndpoint(candidate *url.URL, ln net.Listener) *ResolvedEndpoint {
	port := ln.Addr().(*net.TCPAddr).Port
	u := *candidate
	u.Host = net.JoinHostPort(candidate.Hostname(), strconv.Itoa(port))
	return &ResolvedEndpoint{url: &u, port: port, listener: ln}
}

// URL returns a copy of the resolved redirect URI.
func (e *ResolvedEndpoint) URL() *url.URL {
	u := *e.url
	return &u
}

// RedirectURI returns the resolved redirect URI as sent to the provider.
func (e *ResolvedEndpoint) RedirectURI() string {
	return e.url.String()
}

// Port returns the bound port.
func (e *ResolvedEndpoint) Port() int {
	return e.port
}

// Path returns the path the provider redirects to, "/" when empty.
func (e *ResolvedEndpoint) Path() string {
	if e.url.Path == "" {
		return "/"
	}
	return e.url.Path
}

// Close releases the socket unless it was handed to a listener.
func (e *ResolvedEndpoint) Close() error {
	e.mu.Lock()
	ln := e.listener
	e.listener = nil
	e.mu.Unlock()

	if ln == nil {
		return nil
	}
	return ln.Close()
}

// take transfers ownership of the socket to the caller.
func (e *ResolvedEndpoint) take() (net.Listener, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listener == nil {
		return nil, errors.New("endpoint socket already released")
	}
	ln := e.listener
	e.listener = nil
	return ln, nil
}
