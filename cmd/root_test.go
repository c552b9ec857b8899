package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"loopauth/internal/config"
	"loopauth/internal/interactive"
)

func TestSetVersion(t *testing.T) {
	original := rootCmd.Version
	defer func() { rootCmd.Version = original }()

	SetVersion("1.2.3-test")

	if GetVersion() != "1.2.3-test" {
		t.Errorf("Expected version to be 1.2.3-test, got %s", GetVersion())
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "loopauth" {
		t.Errorf("Expected Use to be 'loopauth', got %s", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if rootCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}

	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}

	for _, name := range []string{"config-path", "quiet"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("Expected persistent flag --%s", name)
		}
	}
}

func TestSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = true
	}

	for _, expected := range []string{"login", "authorize-url", "version", "self-update"} {
		if !found[expected] {
			t.Errorf("Expected subcommand %s to be registered", expected)
		}
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitCodeSuccess},
		{"generic", errors.New("boom"), ExitCodeError},
		{"configuration", config.NewConfigurationError("", "validation", "clientID is required", nil), ExitCodeConfig},
		{"request validation", &interactive.ValidationError{Field: "scopes", Reason: "empty"}, ExitCodeConfig},
		{"authorization denied", &interactive.AuthorizationError{ErrorCode: "access_denied"}, ExitCodeAuthFailed},
		{"timeout", interactive.ErrTimeout, ExitCodeTimeout},
		{"wrapped timeout", fmt.Errorf("login: %w", interactive.ErrTimeout), ExitCodeTimeout},
		{"canceled", interactive.ErrCanceled, ExitCodeCanceled},
		{"port unavailable", &interactive.PortUnavailableError{Port: 8400}, ExitCodeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getExitCode(tt.err))
		})
	}
}
