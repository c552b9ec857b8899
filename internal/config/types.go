package config

import (
	"time"

	"loopauth/internal/interactive"
)

// Config is the top-level configuration structure for loopauth.
type Config struct {
	Authority             string   `yaml:"authority,omitempty"`             // Issuer used for metadata discovery
	AuthorizationEndpoint string   `yaml:"authorizationEndpoint,omitempty"` // Overrides the discovered endpoint
	TokenEndpoint         string   `yaml:"tokenEndpoint,omitempty"`         // Overrides the discovered endpoint
	ClientID              string   `yaml:"clientID,omitempty"`
	Scopes                []string `yaml:"scopes,omitempty"`
	RedirectURI           string   `yaml:"redirectURI,omitempty"` // Loopback URI, port optional

	Timeout time.Duration `yaml:"timeout,omitempty"` // How long to wait for the browser redirect
	PKCE    bool          `yaml:"pkce"`

	Ports         PortsConfig         `yaml:"ports"`
	StrayRequests StrayRequestsConfig `yaml:"strayRequests"`

	LogLevel        string `yaml:"logLevel,omitempty"`
	LogFormat       string `yaml:"logFormat,omitempty"`
	MetricsTextfile string `yaml:"metricsTextfile,omitempty"` // Prometheus textfile written after each login
}

// PortsConfig controls automatic loopback port selection.
type PortsConfig struct {
	BindHost    string `yaml:"bindHost,omitempty"`
	RangeStart  int    `yaml:"rangeStart,omitempty"`
	RangeEnd    int    `yaml:"rangeEnd,omitempty"`
	MaxAttempts int    `yaml:"maxAttempts,omitempty"`
}

// StrayRequestsConfig limits how many unrelated requests the loopback
// listener answers.
type StrayRequestsConfig struct {
	PerMinute int `yaml:"perMinute,omitempty"`
	Burst     int `yaml:"burst,omitempty"`
}

// PortPolicy converts the ports section.
func (c Config) PortPolicy() interactive.PortPolicy {
	return interactive.PortPolicy{
		BindHost:    c.Ports.BindHost,
		RangeStart:  c.Ports.RangeStart,
		RangeEnd:    c.Ports.RangeEnd,
		MaxAttempts: c.Ports.MaxAttempts,
	}
}

// FlowConfig converts the client registration for the given authorization
// endpoint, which may have been discovered.
func (c Config) FlowConfig(authorizationEndpoint string) interactive.FlowConfig {
	return interactive.FlowConfig{
		ClientID:              c.ClientID,
		AuthorizationEndpoint: authorizationEndpoint,
		Timeout:               c.Timeout,
		DisablePKCE:           !c.PKCE,
	}
}
