package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultMetadataCacheTTL is the default TTL for cached authority metadata.
	DefaultMetadataCacheTTL = 30 * time.Minute

	// maxMetadataBytes caps the size of a discovery document.
	maxMetadataBytes = 1 << 20
)

const (
	oidcWellKnown    = "/.well-known/openid-configuration"
	rfc8414WellKnown = "/.well-known/oauth-authorization-server"
)

// ErrIncompleteMetadata is returned when a discovery document lacks the
// endpoints an authorization-code flow needs.
var ErrIncompleteMetadata = errors.New("authority metadata is missing required endpoints")

// metadataCacheEntry holds cached metadata with its timestamp.
type metadataCacheEntry struct {
	metadata  *Metadata
	fetchedAt time.Time
}

// Client resolves authority metadata.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger

	metadataMu    sync.RWMutex
	metadataCache map[string]*metadataCacheEntry
	metadataTTL   time.Duration

	// deduplicates concurrent fetches for the same authority
	metadataGroup singleflight.Group
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetadataCacheTTL sets the metadata cache TTL.
func WithMetadataCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.metadataTTL = ttl
	}
}

// NewClient creates a new metadata client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: DefaultHTTPTimeout},
		logger:        slog.Default(),
		metadataCache: make(map[string]*metadataCacheEntry),
		metadataTTL:   DefaultMetadataCacheTTL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// HTTPClient returns the underlying HTTP client so the code exchange can
// share connection pooling and timeouts.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// DiscoverMetadata fetches metadata for an authority. OpenID Connect
// discovery is tried first, then RFC 8414. The document must carry both an
// authorization and a token endpoint.
//
// Results are cached per authority for the configured TTL.
func (c *Client) DiscoverMetadata(ctx context.Context, authority string) (*Metadata, error) {
	authority = strings.TrimSuffix(strings.TrimSpace(authority), "/")
	if authority == "" {
		return nil, errors.New("authority is required")
	}

	if m := c.cached(authority); m != nil {
		return m, nil
	}

	result, err, _ := c.metadataGroup.Do(authority, func() (interface{}, error) {
		if m := c.cached(authority); m != nil {
			return m, nil
		}
		return c.doDiscoverMetadata(ctx, authority)
	})
	if err != nil {
		return nil, err
	}

	return result.(*Metadata), nil
}

func (c *Client) cached(authority string) *Metadata {
	c.metadataMu.RLock()
	defer c.metadataMu.RUnlock()

	if entry, ok := c.metadataCache[authority]; ok && time.Since(entry.fetchedAt) < c.metadataTTL {
		return entry.metadata
	}
	return nil
}

func (c *Client) doDiscoverMetadata(ctx context.Context, authority string) (*Metadata, error) {
	var errs []error

	for _, suffix := range []string{oidcWellKnown, rfc8414WellKnown} {
		metadata, err := c.fetchMetadata(ctx, authority+suffix)
		if err == nil {
			err = validateMetadata(metadata)
		}
		if err == nil {
			c.cacheMetadata(authority, metadata)
			return metadata, nil
		}

		c.logger.Debug("Metadata discovery attempt failed",
			"authority", authority,
			"document", suffix,
			"error", err)
		errs = append(errs, fmt.Errorf("%s: %w", suffix, err))

		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("failed to discover metadata for %s: %w", authority, errors.Join(errs...))
}

func validateMetadata(m *Metadata) error {
	if m.AuthorizationEndpoint == "" || m.TokenEndpoint == "" {
		return ErrIncompleteMetadata
	}
	for _, endpoint := range []string{m.AuthorizationEndpoint, m.TokenEndpoint} {
		u, err := url.Parse(endpoint)
		if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
			return fmt.Errorf("invalid endpoint %q in authority metadata", endpoint)
		}
	}
	if !m.SupportsCodeFlow() {
		return errors.New("authority does not support response_type=code")
	}
	return nil
}

func (c *Client) fetchMetadata(ctx context.Context, metadataURL string) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBytes))
	if err != nil {
		return nil, err
	}

	var metadata Metadata
	if err := json.Unmarshal(body, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	return &metadata, nil
}

func (c *Client) cacheMetadata(authority string, metadata *Metadata) {
	c.metadataMu.Lock()
	c.metadataCache[authority] = &metadataCacheEntry{
		metadata:  metadata,
		fetchedAt: time.Now(),
	}
	c.metadataMu.Unlock()

	c.logger.Debug("Cached authority metadata",
		"authority", authority,
		"authorization_endpoint", metadata.AuthorizationEndpoint,
		"token_endpoint", metadata.TokenEndpoint)
}
