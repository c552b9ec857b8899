// Package logging provides the structured logging setup for loopauth.
//
// It is a thin layer over Go's slog package that gives every log line a
// subsystem attribute and lets the CLI pick the level and output format at
// startup.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Login", "Opening browser for %s", authority)
//	logging.Debug("Config", "Loaded configuration from %s", path)
//	logging.Error("Login", err, "Interactive login failed")
//
// Packages that take an injected *slog.Logger (the interactive flow, the
// OAuth client) receive one from Logger:
//
//	coordinator, err := interactive.NewCoordinator(cfg,
//	    interactive.WithLogger(logging.Logger("Interactive")))
//
// # Subsystems
//
//   - **Bootstrap**: CLI startup
//   - **Config**: configuration loading and validation
//   - **Login**: the login command
//   - **Interactive**: endpoint resolution, loopback listener, browser launch
//   - **OAuth**: metadata discovery and code exchange
//
// # Audit Logging
//
// Security-relevant events (a completed or failed interactive login) are
// written with Audit at INFO level with an [AUDIT] prefix:
//
//	logging.Audit(logging.AuditEvent{
//	    Action:  "interactive_login",
//	    Outcome: "success",
//	    FlowID:  result.FlowID,
//	    Target:  authority,
//	})
//
// Correlation state values, authorization codes and PKCE verifiers are never
// passed to the logger.
package logging
