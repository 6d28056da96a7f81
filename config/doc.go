// Package config provides configuration loading and validation for eiostore
// clients.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"eio.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := cfg.NewClient(logger)
//
// # Environment Variables
//
//   - uri → EIO_URI
//   - secret → EIO_SECRET
//   - token → EIO_TOKEN
//   - log.level → EIO_LOG_LEVEL
//   - log.env → EIO_ENV
//   - request.max_retry → REQUEST_MAX_RETRY
//   - request.retry_delay → REQUEST_RETRY_DELAY (milliseconds)
//   - request.timeout → REQUEST_TIMEOUT (milliseconds)
//   - request.backoff → REQUEST_BACKOFF (fixed or linear)
//   - request.rate_limit → REQUEST_RATE_LIMIT (attempts per second, 0 disables)
//
// Retry tunables never fail loading. A value that cannot be parsed, or that
// is out of range, falls back to its default.
package config
