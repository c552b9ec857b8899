package interactive

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeListener is a net.Listener that never accepts. It reports the port it
// was "bound" to.
type fakeListener struct {
	port   int
	closed bool
}

func (l *fakeListener) Accept() (net.Conn, error) { return nil, net.ErrClosed }
func (l *fakeListener) Close() error {
	l.closed = true
	return nil
}
func (l *fakeListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: l.port}
}

// scriptedListen records bind attempts and succeeds only for free ports.
type scriptedListen struct {
	mu    sync.Mutex
	free  map[int]bool
	tried []int
}

func (s *scriptedListen) listen(_ context.Context, _, address string) (net.Listener, error) {
	_, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	port, _ := strconv.Atoi(portStr)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tried = append(s.tried, port)
	if s.free[port] {
		return &fakeListener{port: port}, nil
	}
	return nil, fmt.Errorf("listen tcp %s: bind: address already in use", address)
}

type countingRecorder struct {
	nopRecorder
	mu       sync.Mutex
	binds    int
	failures int
}

func (r *countingRecorder) PortBindAttempt(success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.binds++
	if !success {
		r.failures++
	}
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestEndpointResolver_KernelAssigned(t *testing.T) {
	resolver, err := NewEndpointResolver(DefaultPortPolicy())
	require.NoError(t, err)

	endpoint, err := resolver.Resolve(context.Background(), mustParseURL(t, "http://localhost:0/auth/callback"))
	require.NoError(t, err)
	defer endpoint.Close()

	assert.Greater(t, endpoint.Port(), 0)
	assert.Equal(t, "localhost", endpoint.URL().Hostname())
	assert.Equal(t, "/auth/callback", endpoint.URL().Path)
	assert.Equal(t, "/auth/callback", endpoint.Path())
	assert.Equal(t, fmt.Sprintf("http://localhost:%d/auth/callback", endpoint.Port()), endpoint.RedirectURI())
}

func TestEndpointResolver_NilCandidate(t *testing.T) {
	resolver, err := NewEndpointResolver(DefaultPortPolicy())
	require.NoError(t, err)

	endpoint, err := resolver.Resolve(context.Background(), nil)
	require.NoError(t, err)
	defer endpoint.Close()

	assert.Equal(t, fmt.Sprintf("http://localhost:%d", endpoint.Port()), endpoint.RedirectURI())
	assert.Equal(t, "/", endpoint.Path())
}

func TestEndpointResolver_ExplicitPortBusy(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()
	port := busy.Addr().(*net.TCPAddr).Port

	recorder := &countingRecorder{}
	resolver, err := NewEndpointResolver(PortPolicy{RangeStart: 1024, RangeEnd: 65535},
		WithResolverRecorder(recorder))
	require.NoError(t, err)

	endpoint, err := resolver.Resolve(context.Background(), mustParseURL(t, fmt.Sprintf("http://localhost:%d", port)))
	require.Error(t, err)
	assert.Nil(t, endpoint)

	var portErr *PortUnavailableError
	require.True(t, errors.As(err, &portErr))
	assert.Equal(t, port, portErr.Port)
	assert.Equal(t, 1, recorder.binds, "explicit port must not fall back to a scan")
}

func TestEndpointResolver_ExplicitPortFree(t *testing.T) {
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := probe.Addr().(*net.TCPAddr).Port
	require.NoError(t, probe.Close())

	resolver, err := NewEndpointResolver(DefaultPortPolicy())
	require.NoError(t, err)

	endpoint, err := resolver.Resolve(context.Background(), mustParseURL(t, fmt.Sprintf("http://127.0.0.1:%d/cb", port)))
	require.NoError(t, err)
	defer endpoint.Close()

	assert.Equal(t, port, endpoint.Port())
	assert.Equal(t, fmt.Sprintf("http://127.0.0.1:%d/cb", port), endpoint.RedirectURI())
}

func TestEndpointResolver_ConcurrentAutoResolutionsDiffer(t *testing.T) {
	resolver, err := NewEndpointResolver(DefaultPortPolicy())
	require.NoError(t, err)

	first, err := resolver.Resolve(context.Background(), mustParseURL(t, DefaultRedirectURI))
	require.NoError(t, err)
	defer first.Close()

	second, err := resolver.Resolve(context.Background(), mustParseURL(t, DefaultRedirectURI))
	require.NoError(t, err)
	defer second.Close()

	assert.NotEqual(t, first.Port(), second.Port())
}

func TestEndpointResolver_RangeScanWraps(t *testing.T) {
	script := &scriptedListen{free: map[int]bool{8000: true}}
	resolver, err := NewEndpointResolver(
		PortPolicy{RangeStart: 8000, RangeEnd: 8009, MaxAttempts: 10},
		WithListenFunc(script.listen),
		WithPortRandom(rand.New(rand.NewPCG(1, 2))),
	)
	require.NoError(t, err)

	endpoint, err := resolver.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 8000, endpoint.Port())

	// The scan is sequential from its starting offset and wraps at RangeEnd.
	for i := 1; i < len(script.tried); i++ {
		prev, cur := script.tried[i-1], script.tried[i]
		if prev == 8009 {
			assert.Equal(t, 8000, cur)
		} else {
			assert.Equal(t, prev+1, cur)
		}
	}
}

func TestEndpointResolver_RangeExhausted(t *testing.T) {
	script := &scriptedListen{free: map[int]bool{}}
	recorder := &countingRecorder{}
	resolver, err := NewEndpointResolver(
		PortPolicy{RangeStart: 9000, RangeEnd: 9099, MaxAttempts: 5},
		WithListenFunc(script.listen),
		WithResolverRecorder(recorder),
	)
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), mustParseURL(t, "http://localhost"))
	require.Error(t, err)

	var noPort *NoAvailablePortError
	require.True(t, errors.As(err, &noPort))
	assert.Equal(t, 5, noPort.Attempts)
	assert.Equal(t, 9000, noPort.RangeStart)
	assert.Equal(t, 9099, noPort.RangeEnd)
	assert.Len(t, script.tried, 5)
	assert.Equal(t, 5, recorder.failures)
}

func TestEndpointResolver_AttemptsCappedByRangeSize(t *testing.T) {
	script := &scriptedListen{free: map[int]bool{}}
	resolver, err := NewEndpointResolver(
		PortPolicy{RangeStart: 9000, RangeEnd: 9002},
		WithListenFunc(script.listen),
	)
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), nil)
	require.Error(t, err)
	assert.ElementsMatch(t, []int{9000, 9001, 9002}, script.tried)
}

func TestEndpointResolver_CanceledContextStopsScan(t *testing.T) {
	script := &scriptedListen{free: map[int]bool{}}
	resolver, err := NewEndpointResolver(
		PortPolicy{RangeStart: 9000, RangeEnd: 9099},
		WithListenFunc(script.listen),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = resolver.Resolve(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, script.tried)
}

func TestEndpointResolver_RejectsNonLoopback(t *testing.T) {
	resolver, err := NewEndpointResolver(DefaultPortPolicy())
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), mustParseURL(t, "http://example.com:8080"))
	assert.ErrorIs(t, err, &ValidationError{})
}

func TestPortPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  PortPolicy
		wantErr bool
	}{
		{"default", DefaultPortPolicy(), false},
		{"zero value", PortPolicy{}, false},
		{"range", PortPolicy{RangeStart: 8000, RangeEnd: 8100}, false},
		{"single port range", PortPolicy{RangeStart: 8000, RangeEnd: 8000}, false},
		{"inverted", PortPolicy{RangeStart: 9000, RangeEnd: 8000}, true},
		{"start zero", PortPolicy{RangeStart: 0, RangeEnd: 8000}, true},
		{"end too large", PortPolicy{RangeStart: 8000, RangeEnd: 70000}, true},
		{"negative attempts", PortPolicy{MaxAttempts: -1}, true},
		{"remote bind host", PortPolicy{BindHost: "0.0.0.0"}, true},
		{"ipv6 bind host", PortPolicy{BindHost: "::1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolvedEndpoint_CloseAfterTake(t *testing.T) {
	resolver, err := NewEndpointResolver(DefaultPortPolicy())
	require.NoError(t, err)

	endpoint, err := resolver.Resolve(context.Background(), nil)
	require.NoError(t, err)

	ln, err := endpoint.take()
	require.NoError(t, err)
	defer ln.Close()

	assert.NoError(t, endpoint.Close(), "closing a transferred endpoint is a no-op")
	_, err = endpoint.take()
	assert.Error(t, err)

	// The listener is still usable by its new owner.
	assert.Equal(t, endpoint.Port(), ln.Addr().(*net.TCPAddr).Port)
}

func TestResolvedEndpoint_CloseReleasesPort(t *testing.T) {
	resolver, err := NewEndpointResolver(DefaultPortPolicy())
	require.NoError(t, err)

	endpoint, err := resolver.Resolve(context.Background(), nil)
	require.NoError(t, err)
	port := endpoint.Port()

	require.NoError(t, endpoint.Close())
	require.NoError(t, endpoint.Close())

	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	_ = ln.Close()
}
