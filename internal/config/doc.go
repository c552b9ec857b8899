// Package config provides configuration management for loopauth.
//
// Configuration is read from a single YAML file, config.yaml, in the
// configuration directory. The default directory is ~/.config/loopauth; the
// --config-path flag selects another one. A missing file is not an error,
// the defaults are used instead.
//
// # File Format
//
//	authority: https://login.example.com/tenant/v2.0
//	clientID: 3f1c0b2e-0000-4000-8000-000000000000
//	scopes:
//	  - openid
//	  - User.Read
//	redirectURI: http://localhost
//	timeout: 5m
//	pkce: true
//	ports:
//	  bindHost: 127.0.0.1
//	  rangeStart: 0
//	  rangeEnd: 0
//	  maxAttempts: 50
//	strayRequests:
//	  perMinute: 60
//	  burst: 10
//	logLevel: info
//	logFormat: text
//	metricsTextfile: /var/lib/node_exporter/loopauth.prom
//
// Either authority (endpoints are discovered from its metadata document) or
// authorizationEndpoint must be set. tokenEndpoint is only needed without an
// authority and when the code is exchanged.
//
// # Ports
//
// With rangeStart and rangeEnd both zero the operating system assigns a free
// port for every login. A non-zero range is scanned from a random offset,
// at most maxAttempts ports per login. A redirectURI with an explicit port
// always uses exactly that port.
//
// # Validation
//
// Validate reports every problem at once as a ConfigurationError whose
// Suggestions say how to fix the file.
package config
