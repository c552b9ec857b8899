package config

import (
	"time"

	"loopauth/internal/interactive"
)

const (
	// DefaultTimeout is how long login waits for the browser redirect.
	DefaultTimeout = 5 * time.Minute

	// DefaultLogLevel is used when logLevel is not set.
	DefaultLogLevel = "info"

	// DefaultLogFormat is used when logFormat is not set.
	DefaultLogFormat = "text"
)

// DefaultScopes are requested when neither the file nor the flags name any.
var DefaultScopes = []string{"openid", "profile", "offline_access"}

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() Config {
	return Config{
		Scopes:      append([]string(nil), DefaultScopes...),
		RedirectURI: interactive.DefaultRedirectURI,
		Timeout:     DefaultTimeout,
		PKCE:        true,
		Ports: PortsConfig{
			BindHost:    interactive.DefaultBindHost,
			MaxAttempts: interactive.DefaultMaxPortAttempts,
		},
		StrayRequests: StrayRequestsConfig{
			PerMinute: interactive.DefaultStrayPerMinute,
			Burst:     interactive.DefaultStrayBurst,
		},
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
	}
}
