package eiostore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultRetries is the default number of attempts per operation.
	DefaultRetries = 3
	// DefaultRetryDelay is the default pause between attempts.
	DefaultRetryDelay = 5 * time.Second
	// MaxRetryDelay is the largest accepted retry delay.
	MaxRetryDelay = 10 * time.Second
	// DefaultTimeout is the default per-attempt timeout.
	DefaultTimeout = 10 * time.Second
	// MinTimeout and MaxTimeout bound the per-attempt timeout.
	MinTimeout = 500 * time.Millisecond
	MaxTimeout = 20 * time.Second

	linearStep     = time.Second
	maxLinearDelay = 10 * time.Second

	errorBodyLimit = 4 << 10
	drainLimit     = 64 << 10
)

// ErrAttemptTimeout is wrapped by transport errors of attempts that did not
// receive response headers within the policy timeout.
var ErrAttemptTimeout = errors.New("attempt timed out")

// RetryPolicy bounds the attempts made for one operation.
type RetryPolicy struct {
	// Retries is the total number of attempts, including the first.
	Retries int
	// Delay is the pause between attempts, used by the default backoff.
	Delay time.Duration
	// Timeout bounds each attempt until response headers arrive.
	Timeout time.Duration
	// TimeoutBudget is the number of timed-out attempts that do not consume
	// one of Retries. Zero makes a timeout count like any transport failure.
	TimeoutBudget int
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Retries: DefaultRetries,
		Delay:   DefaultRetryDelay,
		Timeout: DefaultTimeout,
	}
}

// Normalize returns a copy of p where every out-of-range value is replaced
// by its default. Values are never rejected.
func (p RetryPolicy) Normalize() RetryPolicy {
	if p.Retries <= 0 {
		p.Retries = DefaultRetries
	}
	if p.Delay < 0 || p.Delay > MaxRetryDelay {
		p.Delay = DefaultRetryDelay
	}
	if p.Timeout < MinTimeout || p.Timeout > MaxTimeout {
		p.Timeout = DefaultTimeout
	}
	if p.TimeoutBudget < 0 {
		p.TimeoutBudget = 0
	}
	return p
}

// Backoff returns the pause after the given 0-based attempt.
type Backoff func(attempt int) time.Duration

// FixedBackoff always waits d.
func FixedBackoff(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// LinearBackoff waits base plus one second per prior attempt, capped at 10s.
func LinearBackoff(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return min(base+time.Duration(attempt)*linearStep, maxLinearDelay)
	}
}

// AttemptFunc performs exactly one HTTP call. Operations with a body must
// build a fresh body on every invocation.
type AttemptFunc func(ctx context.Context, attempt int) (*http.Response, error)

// Retryer runs attempts until one succeeds, a terminal failure occurs, or
// the policy is exhausted.
type Retryer struct {
	policy  RetryPolicy
	backoff Backoff
	logger  *slog.Logger
	limiter *rate.Limiter
}

// RetryerOption configures a Retryer.
type RetryerOption func(*Retryer)

// WithRetryBackoff replaces the fixed policy delay.
func WithRetryBackoff(b Backoff) RetryerOption {
	return func(r *Retryer) {
		r.backoff = b
	}
}

// WithRetryLogger sets the logger receiving retry warnings.
func WithRetryLogger(l *slog.Logger) RetryerOption {
	return func(r *Retryer) {
		r.logger = l
	}
}

// WithRetryLimiter makes every attempt wait on l first.
func WithRetryLimiter(l *rate.Limiter) RetryerOption {
	return func(r *Retryer) {
		r.limiter = l
	}
}

// NewRetryer returns a Retryer for the normalized policy.
func NewRetryer(policy RetryPolicy, opts ...RetryerOption) *Retryer {
	policy = policy.Normalize()
	r := &Retryer{
		policy:  policy,
		backoff: FixedBackoff(policy.Delay),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the normalized policy.
func (r *Retryer) Policy() RetryPolicy {
	return r.policy
}

func (r *Retryer) withLogger(l *slog.Logger) *Retryer {
	cp := *r
	cp.logger = l
	return &cp
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetryable
	outcomeTerminal
	outcomeInternal
)

// Do runs fn per the policy. On success the response body is the caller's to
// close. Every failure is an *Error.
func (r *Retryer) Do(ctx context.Context, op string, fn AttemptFunc) (*http.Response, error) {
	var (
		resp     *http.Response
		err      error
		attempts int
		timeouts int
	)

	for retries := 0; retries < r.policy.Retries; {
		resp, err = nil, nil

		if r.limiter != nil {
			if waitErr := r.limiter.Wait(ctx); waitErr != nil {
				return nil, &Error{Kind: KindServer, Op: op, Attempts: attempts, Err: waitErr}
			}
		}

		var timedOut bool
		resp, timedOut, err = r.attempt(ctx, attempts, fn)
		attempts++

		var libErr *Error
		if errors.As(err, &libErr) {
			e := *libErr
			if e.Op == "" {
				e.Op = op
			}
			if e.Attempts == 0 {
				e.Attempts = attempts
			}
			return nil, &e
		}

		if classify(resp, err) != outcomeRetryable || ctx.Err() != nil {
			break
		}

		if timedOut && timeouts < r.policy.TimeoutBudget {
			timeouts++
		} else {
			retries++
		}
		if retries >= r.policy.Retries {
			break
		}

		delay := r.backoff(attempts - 1)
		r.logRetry(op, attempts, resp, err, delay)
		discard(resp)

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return nil, &Error{Kind: KindServer, Op: op, Attempts: attempts, Err: sleepErr}
		}
	}

	return resolve(op, attempts, resp, err)
}

// attempt runs fn under the per-attempt timeout. The timeout stops once
// headers arrive; the body remains tied to the attempt context until closed.
func (r *Retryer) attempt(ctx context.Context, n int, fn AttemptFunc) (*http.Response, bool, error) {
	attemptCtx, cancel := context.WithCancelCause(ctx)
	timer := time.AfterFunc(r.policy.Timeout, func() {
		cancel(ErrAttemptTimeout)
	})

	resp, err := fn(attemptCtx, n)
	if !timer.Stop() {
		discard(resp)
		cancel(nil)
		var libErr *Error
		if errors.As(err, &libErr) {
			return nil, false, err
		}
		if err == nil {
			err = context.Cause(attemptCtx)
		}
		return nil, true, fmt.Errorf("%w after %s: %w", ErrAttemptTimeout, r.policy.Timeout, err)
	}

	if err != nil || resp == nil {
		cancel(nil)
		return resp, false, err
	}

	if resp.Body == nil {
		resp.Body = http.NoBody
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: func() { cancel(nil) }}
	return resp, false, nil
}

func (r *Retryer) logRetry(op string, attempt int, resp *http.Response, err error, delay time.Duration) {
	attrs := []any{
		"op", op,
		"attempt", attempt,
		"retries", r.policy.Retries,
		"delay", delay,
	}
	if resp != nil {
		attrs = append(attrs, "status", resp.StatusCode, "status_text", http.StatusText(resp.StatusCode))
	}
	if err != nil {
		attrs = append(attrs, "err", err)
	}
	r.logger.Warn("request failed, retrying", attrs...)
}

func classify(resp *http.Response, err error) outcome {
	if err != nil {
		if isTransportError(err) {
			return outcomeRetryable
		}
		return outcomeInternal
	}
	switch {
	case resp == nil:
		return outcomeInternal
	case resp.StatusCode >= http.StatusInternalServerError:
		return outcomeRetryable
	case resp.StatusCode >= http.StatusBadRequest:
		return outcomeTerminal
	default:
		return outcomeSuccess
	}
}

// isTransportError reports whether err is a network-level failure. The
// http client wraps every failure in *url.Error, so the cause inside it is
// classified instead: a bad scheme or a rejected certificate never recovers.
func isTransportError(err error) bool {
	if errors.Is(err, ErrAttemptTimeout) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Err == nil {
			return false
		}
		err = urlErr.Err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

func resolve(op string, attempts int, resp *http.Response, err error) (*http.Response, error) {
	if err != nil {
		if isTransportError(err) {
			return nil, &Error{Kind: KindServer, Op: op, Attempts: attempts, Err: err}
		}
		return nil, &Error{Kind: KindInternal, Op: op, Attempts: attempts, Err: err}
	}
	if resp == nil {
		return nil, &Error{Kind: KindInternal, Op: op, Attempts: attempts, Err: errors.New("no response")}
	}
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}

	kind := KindClient
	if resp.StatusCode >= http.StatusInternalServerError {
		kind = KindServer
	}
	return nil, &Error{
		Kind:       kind,
		Op:         op,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       readExcerpt(resp.Body),
		Attempts:   attempts,
	}
}

func readExcerpt(body io.ReadCloser) string {
	if body == nil {
		return ""
	}
	defer func() { _ = body.Close() }()
	b, _ := io.ReadAll(io.LimitReader(body, errorBodyLimit))
	return strings.TrimSpace(string(b))
}

// discard drains and closes a response that will not be returned so its
// connection can be reused.
func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	_ = resp.Body.Close()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cancelOnClose struct {
	io.ReadCloser
	cancel func()
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
