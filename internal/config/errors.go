package config

import (
	"fmt"
	"strings"
)

// ConfigurationError is a problem with the configuration file or the
// effective configuration after flags were applied.
type ConfigurationError struct {
	FilePath    string   // Path of the file, empty for flag-only configuration
	ErrorType   string   // "io", "parse" or "validation"
	Message     string   // Human-readable error message
	Details     string   // Underlying error or the individual validation failures
	Suggestions []string // Actionable suggestions to fix the error
	Err         error
}

// Error implements the error interface
func (ce *ConfigurationError) Error() string {
	location := ce.FilePath
	if location == "" {
		location = "configuration"
	}
	if ce.Details != "" {
		return fmt.Sprintf("%s: %s: %s", location, ce.Message, ce.Details)
	}
	return fmt.Sprintf("%s: %s", location, ce.Message)
}

func (ce *ConfigurationError) Unwrap() error {
	return ce.Err
}

// Is allows errors.Is() to match any ConfigurationError.
func (ce *ConfigurationError) Is(target error) bool {
	_, ok := target.(*ConfigurationError)
	return ok
}

// DetailedError returns a detailed error message with all context
func (ce *ConfigurationError) DetailedError() string {
	var parts []string

	if ce.FilePath != "" {
		parts = append(parts, fmt.Sprintf("Configuration error in %s", ce.FilePath))
	} else {
		parts = append(parts, "Configuration error")
	}
	parts = append(parts, fmt.Sprintf("  Type: %s", ce.ErrorType))
	parts = append(parts, fmt.Sprintf("  Error: %s", ce.Message))

	if ce.Details != "" {
		parts = append(parts, fmt.Sprintf("  Details: %s", ce.Details))
	}

	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", suggestion))
		}
	}

	return strings.Join(parts, "\n")
}

// NewConfigurationError creates a configuration error wrapping err.
func NewConfigurationError(filePath, errorType, message string, err error) *ConfigurationError {
	ce := &ConfigurationError{
		FilePath:  filePath,
		ErrorType: errorType,
		Message:   message,
		Err:       err,
	}
	if err != nil {
		ce.Details = err.Error()
	}
	return ce
}
