package eiostore

import (
	"errors"
	"net/http"
	"strconv"
)

// ErrorKind discriminates the failures surfaced by the client.
type ErrorKind int

const (
	// KindInternal is an unexpected failure that is not a network condition.
	KindInternal ErrorKind = iota
	// KindCredentials means neither a signing secret nor a token was available.
	KindCredentials
	// KindClient is a 4xx response from the remote service.
	KindClient
	// KindServer is a 5xx response or a transport failure after retries ran out.
	KindServer
)

func (k ErrorKind) String() string {
	switch k {
	case KindCredentials:
		return "credentials"
	case KindClient:
		return "client"
	case KindServer:
		return "server"
	default:
		return "internal"
	}
}

// Error is the only error type returned by client operations.
// Kind tells the caller which of the fields are meaningful.
type Error struct {
	Kind ErrorKind
	// Op is the logical operation, e.g. "get" or "post".
	Op string
	// StatusCode is the HTTP status of the last response, zero if none was received.
	StatusCode int
	Status     string
	// Body holds a bounded excerpt of the error response body.
	Body string
	// Attempts is the number of HTTP calls made.
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.StatusCode != 0 {
		msg += ": " + strconv.Itoa(e.StatusCode)
		if text := http.StatusText(e.StatusCode); text != "" {
			msg += " " + text
		}
	}
	if e.Body != "" {
		msg += " - " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Attempts > 1 {
		msg += " (after " + strconv.Itoa(e.Attempts) + " attempts)"
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error.
// A target *Error matches on Kind, and on StatusCode when the target sets one.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.StatusCode == 0 || t.StatusCode == e.StatusCode
}

// Sentinel errors for errors.Is checks against client results.
var (
	// ErrCredentialsMissing is the cause of every KindCredentials error.
	ErrCredentialsMissing = errors.New("credentials missing: no signing secret and no token")

	// ErrInvalidBaseURI is returned by New for a missing or malformed base URI.
	ErrInvalidBaseURI = errors.New("invalid base URI")
	// ErrEmptyID, ErrEmptyQuery and ErrNilBody are caller mistakes, surfaced
	// as the cause of a KindInternal error before any network call.
	ErrEmptyID    = errors.New("object id is required")
	ErrEmptyQuery = errors.New("query is required")
	ErrNilBody    = errors.New("body factory is required")

	ErrClient   = &Error{Kind: KindClient}
	ErrServer   = &Error{Kind: KindServer}
	ErrInternal = &Error{Kind: KindInternal}

	// ErrNotFound matches a 404 response.
	ErrNotFound = &Error{Kind: KindClient, StatusCode: http.StatusNotFound}
	// ErrUnauthorized matches a 401 response.
	ErrUnauthorized = &Error{Kind: KindClient, StatusCode: http.StatusUnauthorized}
	// ErrForbidden matches a 403 response.
	ErrForbidden = &Error{Kind: KindClient, StatusCode: http.StatusForbidden}
)

// KindOf returns the kind of a client error, or KindInternal for any other error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusOf returns the HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

func credentialsError(op string) *Error {
	return &Error{Kind: KindCredentials, Op: op, Err: ErrCredentialsMissing}
}

func internalError(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Err: err}
}
