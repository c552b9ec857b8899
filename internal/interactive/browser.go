package interactive

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// BrowserLauncher opens the authorization URL for the user.
type BrowserLauncher interface {
	Launch(ctx context.Context, authorizationURL string) error
}

// BrowserLauncherFunc adapts a function to BrowserLauncher.
type BrowserLauncherFunc func(ctx context.Context, authorizationURL string) error

func (f BrowserLauncherFunc) Launch(ctx context.Context, authorizationURL string) error {
	return f(ctx, authorizationURL)
}

// browserLauncher starts the platform command. Tests replace it.
var browserLauncher = func(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// SystemBrowser opens URLs with the platform's default browser.
type SystemBrowser struct{}

// Launch starts the browser without waiting for it. Only http and https URLs
// are accepted. Failures are *BrowserLaunchError.
func (SystemBrowser) Launch(ctx context.Context, authorizationURL string) error {
	if err := validateBrowserURL(authorizationURL); err != nil {
		return &BrowserLaunchError{Reason: err}
	}
	if err := ctx.Err(); err != nil {
		return &BrowserLaunchError{Reason: err}
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd", "netbsd":
		cmd = exec.Command("xdg-open", authorizationURL)
	case "darwin":
		cmd = exec.Command("open", authorizationURL)
	case "windows":
		// "cmd /c start" treats & in the query as a command separator.
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", authorizationURL)
	default:
		return &BrowserLaunchError{Reason: fmt.Errorf("unsupported platform: %s", runtime.GOOS)}
	}

	if err := browserLauncher(cmd); err != nil {
		return &BrowserLaunchError{Reason: err}
	}
	return nil
}

func validateBrowserURL(raw string) error {
	if raw == "" {
		return errors.New("URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme %q: only http and https are allowed", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("invalid URL: missing host")
	}
	return nil
}
