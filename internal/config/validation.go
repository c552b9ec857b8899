package config

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"loopauth/internal/interactive"
	"loopauth/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

func validateHTTPURL(errs *ValidationErrors, field, value string) {
	if value == "" {
		return
	}
	u, err := url.Parse(value)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		errs.Add(field, "must be an absolute http(s) URL", value)
	}
}

// Validate checks the effective configuration and reports all problems in
// one *ConfigurationError.
func (c Config) Validate() error {
	var errs ValidationErrors
	var suggestions []string

	if strings.TrimSpace(c.ClientID) == "" {
		errs.Add("clientID", "is required")
		suggestions = append(suggestions, "Set clientID in config.yaml or pass --client-id")
	}

	if c.Authority == "" && c.AuthorizationEndpoint == "" {
		errs.Add("authority", "either authority or authorizationEndpoint is required")
		suggestions = append(suggestions, "Set authority to the issuer URL or pass --authority")
	}
	validateHTTPURL(&errs, "authority", c.Authority)
	validateHTTPURL(&errs, "authorizationEndpoint", c.AuthorizationEndpoint)
	validateHTTPURL(&errs, "tokenEndpoint", c.TokenEndpoint)

	if len(c.Scopes) == 0 {
		errs.Add("scopes", "must have at least one item")
	}
	for _, s := range c.Scopes {
		if s == "" || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
			errs.Add("scopes", "scopes must be non-empty and must not contain whitespace", s)
			suggestions = append(suggestions, "List each scope as a separate item")
			break
		}
	}

	if _, err := interactive.ParseLoopbackURI(c.RedirectURI); err != nil {
		errs.Add("redirectURI", err.Error(), c.RedirectURI)
		suggestions = append(suggestions, "Use a loopback URI such as http://localhost or http://127.0.0.1:8400/callback")
	}

	if c.Timeout <= 0 {
		errs.Add("timeout", "must be positive", c.Timeout)
	}

	if err := c.PortPolicy().Validate(); err != nil {
		errs.Add("ports", err.Error())
		suggestions = append(suggestions, "Leave rangeStart and rangeEnd at 0 to let the system pick a port")
	}

	if c.StrayRequests.PerMinute < 0 || c.StrayRequests.Burst < 0 {
		errs.Add("strayRequests", "must not be negative")
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs.Add("logLevel", err.Error(), c.LogLevel)
	}
	if c.LogFormat != "" {
		if err := ValidateOneOf("logFormat", c.LogFormat, []string{"text", "json"}); err != nil {
			errs = append(errs, err.(ValidationError))
		}
	}

	if !errs.HasErrors() {
		return nil
	}

	ce := NewConfigurationError("", "validation", "invalid configuration", errs)
	ce.Suggestions = suggestions
	return ce
}
