package eiostore_test

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sagarc03/eiostore"
)

type SpyAttempt struct {
	mock.Mock
}

func (s *SpyAttempt) Do(_ context.Context, attempt int) (*http.Response, error) {
	args := s.Called(attempt)
	resp, _ := args.Get(0).(*http.Response)
	return resp, args.Error(1)
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func refused() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
}

// warnings counts the retry warnings written to buf.
func warnings(buf *bytes.Buffer) int {
	return strings.Count(buf.String(), "request failed, retrying")
}

func newRetryer(policy eiostore.RetryPolicy, buf *bytes.Buffer, opts ...eiostore.RetryerOption) *eiostore.Retryer {
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return eiostore.NewRetryer(policy, append([]eiostore.RetryerOption{eiostore.WithRetryLogger(logger)}, opts...)...)
}

func fastPolicy(retries int) eiostore.RetryPolicy {
	return eiostore.RetryPolicy{Retries: retries, Delay: 0, Timeout: time.Second}
}

func TestRetryer_SucceedsAfterFailures(t *testing.T) {
	spy := new(SpyAttempt)
	spy.On("Do", 0).Return(nil, refused()).Once()
	spy.On("Do", 1).Return(response(http.StatusInternalServerError, "boom"), nil).Once()
	spy.On("Do", 2).Return(response(http.StatusOK, "done"), nil).Once()

	var buf bytes.Buffer
	resp, err := newRetryer(fastPolicy(3), &buf).Do(context.Background(), "get", spy.Do)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "done", string(b))
	assert.Equal(t, 2, warnings(&buf))
	spy.AssertExpectations(t)
}

func TestRetryer_ExhaustsRetries(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		spy := new(SpyAttempt)
		spy.On("Do", mock.Anything).Return(nil, refused())

		var buf bytes.Buffer
		_, err := newRetryer(fastPolicy(n), &buf).Do(context.Background(), "put", spy.Do)

		var e *eiostore.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, eiostore.KindServer, e.Kind)
		assert.Equal(t, "put", e.Op)
		assert.Equal(t, n, e.Attempts)
		assert.ErrorIs(t, err, syscall.ECONNREFUSED)
		assert.Equal(t, n-1, warnings(&buf), "%d retries", n)
		spy.AssertNumberOfCalls(t, "Do", n)
	}
}

func TestRetryer_ServerErrorAfterRetries(t *testing.T) {
	spy := new(SpyAttempt)
	for i := range 3 {
		spy.On("Do", i).Return(response(http.StatusServiceUnavailable, "busy"), nil).Once()
	}

	var buf bytes.Buffer
	_, err := newRetryer(fastPolicy(3), &buf).Do(context.Background(), "get", spy.Do)

	var e *eiostore.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, eiostore.KindServer, e.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, e.StatusCode)
	assert.Equal(t, "busy", e.Body)
	assert.Equal(t, 3, e.Attempts)
	spy.AssertExpectations(t)
}

func TestRetryer_ClientErrorIsTerminal(t *testing.T) {
	spy := new(SpyAttempt)
	spy.On("Do", 0).Return(response(http.StatusNotFound, `{"error":"not_found"}`), nil).Once()

	var buf bytes.Buffer
	_, err := newRetryer(fastPolicy(3), &buf).Do(context.Background(), "get", spy.Do)

	assert.ErrorIs(t, err, eiostore.ErrNotFound)
	assert.Equal(t, 1, err.(*eiostore.Error).Attempts)
	assert.Zero(t, warnings(&buf))
	spy.AssertExpectations(t)
}

func TestRetryer_InternalErrorIsTerminal(t *testing.T) {
	spy := new(SpyAttempt)
	spy.On("Do", 0).Return(nil, errors.New("unexpected")).Once()

	var buf bytes.Buffer
	_, err := newRetryer(fastPolicy(3), &buf).Do(context.Background(), "get", spy.Do)

	assert.Equal(t, eiostore.KindInternal, eiostore.KindOf(err))
	spy.AssertExpectations(t)
}

func TestRetryer_AttemptErrorPassesThrough(t *testing.T) {
	cause := errors.New("open body: permission denied")
	spy := new(SpyAttempt)
	spy.On("Do", 0).Return(nil, &eiostore.Error{Kind: eiostore.KindInternal, Err: cause}).Once()

	var buf bytes.Buffer
	_, err := newRetryer(fastPolicy(3), &buf).Do(context.Background(), "post", spy.Do)

	var e *eiostore.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "post", e.Op)
	assert.Equal(t, 1, e.Attempts)
	assert.ErrorIs(t, err, cause)
}

func blockUntilDone(ctx context.Context, _ int) (*http.Response, error) {
	<-ctx.Done()
	return nil, context.Cause(ctx)
}

func TestRetryer_AttemptTimeout(t *testing.T) {
	var buf bytes.Buffer
	policy := eiostore.RetryPolicy{Retries: 1, Timeout: eiostore.MinTimeout}

	start := time.Now()
	_, err := newRetryer(policy, &buf).Do(context.Background(), "get", blockUntilDone)

	assert.Equal(t, eiostore.KindServer, eiostore.KindOf(err))
	assert.ErrorIs(t, err, eiostore.ErrAttemptTimeout)
	assert.GreaterOrEqual(t, time.Since(start), eiostore.MinTimeout)
}

func TestRetryer_TimeoutBudget(t *testing.T) {
	calls := 0
	fn := func(ctx context.Context, attempt int) (*http.Response, error) {
		calls++
		if attempt == 0 {
			return blockUntilDone(ctx, attempt)
		}
		return response(http.StatusOK, ""), nil
	}

	var buf bytes.Buffer
	policy := eiostore.RetryPolicy{Retries: 1, Timeout: eiostore.MinTimeout, TimeoutBudget: 1}
	resp, err := newRetryer(policy, &buf).Do(context.Background(), "get", fn)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, 2, calls, "the timed-out attempt did not consume the only retry")
	assert.Equal(t, 1, warnings(&buf))
}

func TestRetryer_ContextCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	spy := new(SpyAttempt)
	spy.On("Do", 0).Return(nil, refused()).Run(func(mock.Arguments) {
		time.AfterFunc(20*time.Millisecond, cancel)
	}).Once()

	var buf bytes.Buffer
	policy := eiostore.RetryPolicy{Retries: 3, Delay: 5 * time.Second, Timeout: time.Second}
	_, err := newRetryer(policy, &buf).Do(ctx, "get", spy.Do)

	assert.Equal(t, eiostore.KindServer, eiostore.KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	spy.AssertExpectations(t)
}

func TestRetryer_LimiterWaitsFirst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	spy := new(SpyAttempt)
	var buf bytes.Buffer
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	_, err := newRetryer(fastPolicy(3), &buf, eiostore.WithRetryLimiter(limiter)).Do(ctx, "get", spy.Do)

	require.Error(t, err)
	assert.Zero(t, err.(*eiostore.Error).Attempts)
	spy.AssertNotCalled(t, "Do", mock.Anything)
}

func TestRetryer_BackoffSchedule(t *testing.T) {
	var delays []time.Duration
	backoff := func(attempt int) time.Duration {
		delays = append(delays, eiostore.LinearBackoff(0)(attempt))
		return 0
	}

	spy := new(SpyAttempt)
	spy.On("Do", mock.Anything).Return(nil, refused())

	var buf bytes.Buffer
	_, _ = newRetryer(fastPolicy(4), &buf, eiostore.WithRetryBackoff(backoff)).Do(context.Background(), "get", spy.Do)

	assert.Equal(t, []time.Duration{0, time.Second, 2 * time.Second}, delays)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 3*time.Second, eiostore.FixedBackoff(3*time.Second)(7))

	linear := eiostore.LinearBackoff(500 * time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, linear(0))
	assert.Equal(t, 2500*time.Millisecond, linear(2))
	assert.Equal(t, 10*time.Second, linear(50))
}

func TestRetryPolicy_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   eiostore.RetryPolicy
		want eiostore.RetryPolicy
	}{
		{
			name: "zero value",
			in:   eiostore.RetryPolicy{},
			want: eiostore.RetryPolicy{Retries: 3, Delay: 0, Timeout: 10 * time.Second},
		},
		{
			name: "in range kept",
			in:   eiostore.RetryPolicy{Retries: 7, Delay: 2 * time.Second, Timeout: 15 * time.Second, TimeoutBudget: 2},
			want: eiostore.RetryPolicy{Retries: 7, Delay: 2 * time.Second, Timeout: 15 * time.Second, TimeoutBudget: 2},
		},
		{
			name: "out of range replaced",
			in:   eiostore.RetryPolicy{Retries: -1, Delay: 11 * time.Second, Timeout: 100 * time.Millisecond, TimeoutBudget: -3},
			want: eiostore.DefaultRetryPolicy(),
		},
		{
			name: "negative delay and excessive timeout",
			in:   eiostore.RetryPolicy{Retries: 1, Delay: -time.Second, Timeout: time.Minute},
			want: eiostore.RetryPolicy{Retries: 1, Delay: 5 * time.Second, Timeout: 10 * time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestRetryer_ClassifiesURLErrorCause(t *testing.T) {
	tests := []struct {
		name     string
		cause    error
		kind     eiostore.ErrorKind
		attempts int
	}{
		{name: "unsupported scheme", cause: errors.New(`unsupported protocol scheme "ftp"`), kind: eiostore.KindInternal, attempts: 1},
		{name: "unknown certificate authority", cause: x509.UnknownAuthorityError{}, kind: eiostore.KindInternal, attempts: 1},
		{name: "connection refused", cause: refused(), kind: eiostore.KindServer, attempts: 3},
		{name: "connection closed", cause: io.EOF, kind: eiostore.KindServer, attempts: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := new(SpyAttempt)
			spy.On("Do", mock.Anything).Return(nil, &url.Error{Op: "Get", URL: "http://x/objects/a", Err: tt.cause})

			var buf bytes.Buffer
			_, err := newRetryer(fastPolicy(3), &buf).Do(context.Background(), "get", spy.Do)

			var e *eiostore.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.attempts, e.Attempts)
			assert.Equal(t, tt.attempts-1, warnings(&buf))
			spy.AssertNumberOfCalls(t, "Do", tt.attempts)
		})
	}
}
