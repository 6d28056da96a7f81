package clientcli

import "errors"

// Errors for profile operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoProfiles      = errors.New("no profiles configured")
	ErrProfileExists   = errors.New("profile already exists")
)

// Errors for configuration validation.
var (
	ErrCredentialsRequired = errors.New("secret or token is required")
	ErrConfigRequired      = errors.New("config is required")
)

// Errors for input validation.
var (
	ErrNoIDs       = errors.New("no object ids provided")
	ErrEmptyPath   = errors.New("path is required")
	ErrEmptyID     = errors.New("object id is required")
	ErrInvalidPair = errors.New("expected key=value")
	ErrEmptyQuery  = errors.New("at least one query pair is required")
)
