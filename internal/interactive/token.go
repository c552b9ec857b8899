package interactive

import (
	"crypto/rand"
	"crypto/subtle"
	"io"
	"sync"

	"loopauth/pkg/oauth"
)

// CorrelationToken binds an authorization response to the request that
// caused it. It carries the opaque state value and, unless disabled, a PKCE
// verifier/challenge pair. A token belongs to exactly one flow.
type CorrelationToken struct {
	state string
	pkce  *oauth.PKCEChallenge

	mu       sync.Mutex
	consumed bool
}

// GenerateCorrelationToken creates a token from random, or crypto/rand when
// random is nil.
func GenerateCorrelationToken(random io.Reader, pkce bool) (*CorrelationToken, error) {
	if random == nil {
		random = rand.Reader
	}

	state, err := oauth.GenerateStateFrom(random)
	if err != nil {
		return nil, err
	}

	t := &CorrelationToken{state: state}
	if pkce {
		t.pkce, err = oauth.GeneratePKCEFrom(random)
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

// State returns the value sent as the state parameter.
func (t *CorrelationToken) State() string {
	return t.state
}

// PKCE returns the verifier/challenge pair, nil when PKCE is disabled.
func (t *CorrelationToken) PKCE() *oauth.PKCEChallenge {
	if t.pkce == nil {
		return nil
	}
	cp := *t.pkce
	return &cp
}

// CodeVerifier returns the PKCE verifier, empty when PKCE is disabled.
func (t *CorrelationToken) CodeVerifier() string {
	if t.pkce == nil {
		return ""
	}
	return t.pkce.CodeVerifier
}

// Matches reports whether responseState equals the token's state. The
// comparison is constant time.
func (t *CorrelationToken) Matches(responseState string) bool {
	if responseState == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(t.state), []byte(responseState)) == 1
}

// Consume is Matches that succeeds at most once.
func (t *CorrelationToken) Consume(responseState string) bool {
	if !t.Matches(responseState) {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.consumed {
		return false
	}
	t.consumed = true
	return true
}

// Consumed reports whether a response has already been accepted.
func (t *CorrelationToken) Consumed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consumed
}
