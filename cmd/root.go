package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"loopauth/internal/config"
	"loopauth/internal/interactive"
	"loopauth/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfig indicates invalid configuration or request parameters.
	ExitCodeConfig = 2
	// ExitCodeAuthFailed indicates the identity provider rejected the sign-in.
	ExitCodeAuthFailed = 3
	// ExitCodeTimeout indicates the user did not complete sign-in in time.
	ExitCodeTimeout = 4
	// ExitCodeCanceled indicates the sign-in was interrupted.
	ExitCodeCanceled = 5
)

// Global flags
var (
	configPath string
	quiet      bool
)

// rootCmd represents the base command for the loopauth application.
var rootCmd = &cobra.Command{
	Use:   "loopauth",
	Short: "Sign in to an OAuth 2.0 / OpenID Connect provider from the terminal",
	Long: `loopauth runs the OAuth 2.0 authorization code flow for native
applications: it opens your browser on the provider's sign-in page and
receives the result on a temporary http://localhost redirect.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.InitForCLI(logging.LevelWarn, cmd.ErrOrStderr())
	},
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// Interrupt and termination signals cancel a running login.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "loopauth version %s\n" .Version}}`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, &config.ConfigurationError{}), errors.Is(err, &interactive.ValidationError{}):
		return ExitCodeConfig
	case errors.Is(err, &interactive.AuthorizationError{}):
		return ExitCodeAuthFailed
	case errors.Is(err, interactive.ErrTimeout):
		return ExitCodeTimeout
	case errors.Is(err, interactive.ErrCanceled):
		return ExitCodeCanceled
	default:
		return ExitCodeError
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "", "Configuration directory (default is $HOME/.config/loopauth)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print the result")

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newAuthorizeURLCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
