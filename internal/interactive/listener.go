package interactive

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

const (
	// DefaultStrayPerMinute is the sustained rate of unrelated requests the
	// listener answers before replying 429.
	DefaultStrayPerMinute = 60

	// DefaultStrayBurst is the burst allowance for unrelated requests.
	DefaultStrayBurst = 10

	// DefaultShutdownTimeout bounds the graceful shutdown in Close.
	DefaultShutdownTimeout = 5 * time.Second
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// ListenerState is the lifecycle state of a LoopbackListener.
type ListenerState int

const (
	StateCreated ListenerState = iota
	StateListening
	StateMatched
	StateTimedOut
	StateCanceled
	StateErrored
	StateClosed
)

func (s ListenerState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateListening:
		return "listening"
	case StateMatched:
		return "matched"
	case StateTimedOut:
		return "timed_out"
	case StateCanceled:
		return "canceled"
	case StateErrored:
		return "errored"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// flowEnd is the single terminal result of a listener.
type flowEnd struct {
	outcome AuthorizationOutcome
	err     error
}

// ListenerOption configures a LoopbackListener.
type ListenerOption func(*LoopbackListener)

// WithListenerLogger sets the logger.
func WithListenerLogger(logger *slog.Logger) ListenerOption {
	return func(l *LoopbackListener) {
		l.logger = logger
	}
}

// WithListenerRecorder sets the recorder notified of stray requests.
func WithListenerRecorder(rec Recorder) ListenerOption {
	return func(l *LoopbackListener) {
		l.recorder = rec
	}
}

// WithPages sets the pages or redirects shown after the redirect arrives.
// Only the page related fields of opts are used.
func WithPages(opts BrowserOptions) ListenerOption {
	return func(l *LoopbackListener) {
		l.pages = opts
	}
}

// WithStrayLimit sets how many unrelated requests per minute are answered
// before the listener replies 429.
func WithStrayLimit(perMinute, burst int) ListenerOption {
	return func(l *LoopbackListener) {
		l.stray = newStrayLimiter(perMinute, burst)
	}
}

// WithShutdownTimeout bounds how long Close waits for in-flight responses.
func WithShutdownTimeout(d time.Duration) ListenerOption {
	return func(l *LoopbackListener) {
		l.shutdownTimeout = d
	}
}

func newStrayLimiter(perMinute, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}

// LoopbackListener is a short-lived HTTP server that waits for exactly one
// authorization redirect carrying the expected state. Requests that do not
// carry it are answered and otherwise ignored.
//
// The first terminal event wins: a matching redirect, the deadline, context
// cancellation, a serve failure or Close. Later events are no-ops.
type LoopbackListener struct {
	token           *CorrelationToken
	logger          *slog.Logger
	recorder        Recorder
	pages           BrowserOptions
	stray           *rate.Limiter
	shutdownTimeout time.Duration

	mu       sync.Mutex
	state    ListenerState
	server   *http.Server
	listener net.Listener
	path     string
	final    *flowEnd

	done      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// NewLoopbackListener creates a listener that accepts redirects for token.
func NewLoopbackListener(token *CorrelationToken, opts ...ListenerOption) *LoopbackListener {
	l := &LoopbackListener{
		token:           token,
		logger:          slog.Default(),
		recorder:        nopRecorder{},
		stray:           newStrayLimiter(DefaultStrayPerMinute, DefaultStrayBurst),
		shutdownTimeout: DefaultShutdownTimeout,
		state:           StateCreated,
		done:            make(chan struct{}),
		closed:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current lifecycle state.
func (l *LoopbackListener) State() ListenerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Start takes over the endpoint's socket and begins serving. It may be
// called once.
func (l *LoopbackListener) Start(endpoint *ResolvedEndpoint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateCreated {
		return &ListenerError{Reason: errors.New("listener already started")}
	}

	l.path = endpoint.Path()
	server := &http.Server{
		Handler:           l.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := endpoint.take()
	if err != nil {
		return &ListenerError{Reason: err}
	}

	l.listener = ln
	l.server = server
	l.state = StateListening

	go l.serve(l.server, ln)

	l.logger.Debug("Loopback listener started", "addr", ln.Addr().String(), "path", l.path)
	return nil
}

func (l *LoopbackListener) serve(server *http.Server, ln net.Listener) {
	err := server.Serve(ln)
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return
	}
	if l.finish(StateErrored, flowEnd{err: &ListenerError{Reason: err}}) {
		l.logger.Error("Loopback listener failed", "error", err)
	}
}

func (l *LoopbackListener) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(securityHeaders)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		renderGeneric(w, http.StatusNotFound, "Not found", "There is nothing here.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		renderGeneric(w, http.StatusMethodNotAllowed, "Method not allowed", "Only GET requests are served.")
	})
	// The redirect path is compared literally, never used as a pattern.
	r.Get("/*", l.handleRedirect)
	return r
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (l *LoopbackListener) handleRedirect(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != l.path || r.URL.RawQuery == "" {
		renderGeneric(w, http.StatusNotFound, "Not found", "There is nothing here.")
		return
	}

	query := r.URL.Query()
	state := query.Get("state")

	if !l.token.Consume(state) {
		l.rejectStray(w, r, len(state))
		return
	}

	outcome := outcomeFromQuery(state, query.Get("code"), query.Get("error"),
		query.Get("error_description"), query.Get("error_uri"))

	if !l.finish(StateMatched, flowEnd{outcome: outcome}) {
		renderGeneric(w, http.StatusGone, "Sign-in no longer active",
			"This sign-in has already ended. Return to the application and try again.")
		return
	}

	l.logger.Debug("Authorization redirect received", "outcome", outcome.Kind.String())
	l.renderOutcome(w, r, outcome)
}

func outcomeFromQuery(state, code, errCode, description, uri string) AuthorizationOutcome {
	switch {
	case errCode != "":
		return AuthorizationOutcome{
			Kind:        OutcomeAuthorizationError,
			ErrorCode:   errCode,
			Description: description,
			URI:         uri,
		}
	case code == "":
		return AuthorizationOutcome{
			Kind:        OutcomeAuthorizationError,
			ErrorCode:   "invalid_response",
			Description: "the authorization response carried neither a code nor an error",
		}
	default:
		return AuthorizationOutcome{Kind: OutcomeSuccess, Code: code, State: state}
	}
}

func (l *LoopbackListener) rejectStray(w http.ResponseWriter, r *http.Request, stateLen int) {
	if !l.stray.Allow() {
		l.recorder.StrayRequest(true)
		renderGeneric(w, http.StatusTooManyRequests, "Too many requests", "Slow down.")
		return
	}

	l.recorder.StrayRequest(false)
	// Never log the received state value itself.
	l.logger.Warn("Ignoring request without matching state",
		"path", r.URL.Path, "state_length", stateLen, "remote", r.RemoteAddr)
	renderGeneric(w, http.StatusBadRequest, "Unexpected request",
		"This request does not belong to an active sign-in.")
}

func (l *LoopbackListener) renderOutcome(w http.ResponseWriter, r *http.Request, o AuthorizationOutcome) {
	if o.Kind == OutcomeSuccess {
		switch {
		case l.pages.SuccessRedirect != "":
			http.Redirect(w, r, l.pages.SuccessRedirect, http.StatusFound)
		case l.pages.SuccessHTML != "":
			writeHTML(w, http.StatusOK, l.pages.SuccessHTML)
		default:
			renderTemplate(w, http.StatusOK, "success.html", nil)
		}
		return
	}

	switch {
	case l.pages.ErrorRedirect != "":
		http.Redirect(w, r, l.pages.ErrorRedirect, http.StatusFound)
	case l.pages.ErrorHTML != "":
		writeHTML(w, http.StatusOK, l.pages.ErrorHTML)
	default:
		renderTemplate(w, http.StatusOK, "error.html", map[string]string{
			"Error":       o.ErrorCode,
			"Description": o.Description,
			"URI":         o.URI,
		})
	}
}

func renderGeneric(w http.ResponseWriter, status int, title, message string) {
	renderTemplate(w, status, "generic.html", map[string]string{
		"Title":   title,
		"Message": message,
	})
}

func renderTemplate(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = pages.ExecuteTemplate(w, name, data)
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// finish performs the terminal transition. Only the first caller while
// listening succeeds; its result is published to every waiter.
func (l *LoopbackListener) finish(to ListenerState, end flowEnd) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateListening {
		return false
	}
	l.state = to
	l.final = &end
	close(l.done)
	return true
}

// AwaitResult blocks until the flow ends. A non-positive deadline waits for
// ctx only. Context cancellation yields OutcomeCanceled, a context deadline
// or the deadline argument OutcomeTimeout. Serve failures are returned as
// *ListenerError. Concurrent and later calls all return the same result.
func (l *LoopbackListener) AwaitResult(ctx context.Context, deadline time.Duration) (AuthorizationOutcome, error) {
	l.mu.Lock()
	if l.final != nil {
		end := *l.final
		l.mu.Unlock()
		return end.outcome, end.err
	}
	if l.state == StateCreated {
		l.mu.Unlock()
		return AuthorizationOutcome{}, &ListenerError{Reason: errors.New("listener not started")}
	}
	l.mu.Unlock()

	var timeout <-chan time.Time
	if deadline > 0 {
		timer := time.NewTimer(deadline)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-l.done:
	case <-timeout:
		l.finish(StateTimedOut, flowEnd{outcome: AuthorizationOutcome{Kind: OutcomeTimeout}})
	case <-ctx.Done():
		state, kind := StateCanceled, OutcomeCanceled
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			state, kind = StateTimedOut, OutcomeTimeout
		}
		l.finish(state, flowEnd{outcome: AuthorizationOutcome{Kind: kind}})
	case <-l.closed:
	}

	// Close finishes a listening listener before closing l.closed, so done
	// is only left open when Close ran before Start.
	select {
	case <-l.done:
	default:
		return AuthorizationOutcome{}, &ListenerError{Reason: errors.New("listener closed before it was started")}
	}

	l.mu.Lock()
	end := *l.final
	l.mu.Unlock()
	return end.outcome, end.err
}

// Close stops the server, letting an in-flight response finish, and
// releases the socket. A listener still waiting ends as canceled. Close is
// idempotent.
func (l *LoopbackListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.finish(StateCanceled, flowEnd{outcome: AuthorizationOutcome{Kind: OutcomeCanceled}})
		close(l.closed)

		l.mu.Lock()
		server, ln := l.server, l.listener
		l.state = StateClosed
		l.mu.Unlock()

		if server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
			defer cancel()
			if shutdownErr := server.Shutdown(ctx); shutdownErr != nil {
				l.logger.Warn("Graceful shutdown of loopback listener timed out", "error", shutdownErr)
				err = server.Close()
			}
		}
		if ln != nil {
			// Shutdown already closed it; this covers a server that never served.
			if closeErr := ln.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) && err == nil {
				err = closeErr
			}
		}
	})
	return err
}
