package eiostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// sharedTransport is the keep-alive connection pool used by every client
// that does not bring its own http.Client.
var sharedTransport = newTransport()

func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 128
	t.MaxIdleConnsPerHost = 32
	t.IdleConnTimeout = 90 * time.Second
	return t
}

// Client performs object operations against the storage service.
// It is safe for concurrent use once all transforms are registered.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	creds      *CredentialProvider
	defaults   Credentials
	pipeline   Pipeline
	logger     *slog.Logger

	policy  RetryPolicy
	backoff Backoff
	limiter *rate.Limiter
	retryer *Retryer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithSecret sets the secret used to sign claims.
func WithSecret(secret string) Option {
	return func(c *Client) {
		c.creds = NewCredentialProvider(secret)
	}
}

// WithCredentials sets the credentials used by requests that carry none.
func WithCredentials(cred Credentials) Option {
	return func(c *Client) {
		c.defaults = cred
	}
}

// WithRetryPolicy sets the retry policy. Out-of-range values fall back to defaults.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithBackoff replaces the fixed delay between attempts.
func WithBackoff(b Backoff) Option {
	return func(c *Client) {
		c.backoff = b
	}
}

// WithRateLimiter makes every attempt wait on l.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a Client for the service at baseURI.
func New(baseURI string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURI, "/"))
	if err != nil {
		return nil, fmt.Errorf("new client: %w: %w", ErrInvalidBaseURI, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("new client: %w: %q", ErrInvalidBaseURI, baseURI)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Transport: sharedTransport},
		creds:      NewCredentialProvider(""),
		logger:     slog.Default(),
		policy:     DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}

	retryOpts := []RetryerOption{WithRetryLogger(c.logger)}
	if c.backoff != nil {
		retryOpts = append(retryOpts, WithRetryBackoff(c.backoff))
	}
	if c.limiter != nil {
		retryOpts = append(retryOpts, WithRetryLimiter(c.limiter))
	}
	c.retryer = NewRetryer(c.policy, retryOpts...)

	return c, nil
}

// Use registers a transform pair. It must be called before the client is
// shared between goroutines.
func (c *Client) Use(forward, reverse TransformFactory) *Client {
	c.pipeline.Use(forward, reverse)
	return c
}

// RetryPolicy returns the normalized policy in effect.
func (c *Client) RetryPolicy() RetryPolicy {
	return c.retryer.Policy()
}

// Get streams an object. The returned body has passed through the reverse
// pipeline and must be closed by the caller.
func (c *Client) Get(ctx context.Context, id string, opts GetOptions) (*Object, error) {
	const op = "get"
	if id == "" {
		return nil, internalError(op, ErrEmptyID)
	}

	resp, err := c.do(ctx, op, http.MethodGet, c.objectURL(id), opts.RequestOptions, nil, nil)
	if err != nil {
		return nil, err
	}

	body, err := c.pipeline.Reverse(resp.Body)
	if err != nil {
		return nil, internalError(op, err)
	}
	return &Object{ObjectMetadata: ObjectMetadata{Header: resp.Header}, Body: body}, nil
}

// GetBytes reads a whole object into memory.
func (c *Client) GetBytes(ctx context.Context, id string, opts GetOptions) ([]byte, ObjectMetadata, error) {
	obj, err := c.Get(ctx, id, opts)
	if err != nil {
		return nil, ObjectMetadata{}, err
	}
	defer func() { _ = obj.Close() }()

	b, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, obj.ObjectMetadata, streamError("get", err)
	}
	return b, obj.ObjectMetadata, nil
}

// GetJSON decodes an object's JSON content into v.
func (c *Client) GetJSON(ctx context.Context, id string, opts GetOptions, v any) (ObjectMetadata, error) {
	obj, err := c.Get(ctx, id, opts)
	if err != nil {
		return ObjectMetadata{}, err
	}
	defer func() { _ = obj.Close() }()

	if err := json.NewDecoder(obj.Body).Decode(v); err != nil {
		return obj.ObjectMetadata, streamError("get", fmt.Errorf("decode json: %w", err))
	}
	return obj.ObjectMetadata, nil
}

// Post creates an object. body is invoked once per attempt.
func (c *Client) Post(ctx context.Context, body BodyFactory, opts WriteOptions) (ObjectInfo, error) {
	const op = "post"
	if body == nil {
		return ObjectInfo{}, internalError(op, ErrNilBody)
	}

	resp, err := c.do(ctx, op, http.MethodPost, c.collectionURL(nil), opts.RequestOptions, body, opts.apply)
	if err != nil {
		return ObjectInfo{}, err
	}
	return decodeInfo(op, resp, "")
}

// Put replaces the object id. body is invoked once per attempt.
func (c *Client) Put(ctx context.Context, id string, body BodyFactory, opts WriteOptions) (ObjectInfo, error) {
	const op = "put"
	if id == "" {
		return ObjectInfo{}, internalError(op, ErrEmptyID)
	}
	if body == nil {
		return ObjectInfo{}, internalError(op, ErrNilBody)
	}

	resp, err := c.do(ctx, op, http.MethodPut, c.objectURL(id), opts.RequestOptions, body, opts.apply)
	if err != nil {
		return ObjectInfo{}, err
	}
	return decodeInfo(op, resp, id)
}

// Delete removes the object id.
func (c *Client) Delete(ctx context.Context, id string, opts RequestOptions) error {
	const op = "delete"
	if id == "" {
		return internalError(op, ErrEmptyID)
	}

	resp, err := c.do(ctx, op, http.MethodDelete, c.objectURL(id), opts, nil, nil)
	if err != nil {
		return err
	}
	discard(resp)
	return nil
}

// DeleteMany removes every object whose query tags match query.
// An empty query is rejected rather than deleting everything.
func (c *Client) DeleteMany(ctx context.Context, query map[string]string, opts RequestOptions) error {
	const op = "delete many"
	if len(query) == 0 {
		return internalError(op, ErrEmptyQuery)
	}

	resp, err := c.do(ctx, op, http.MethodDelete, c.collectionURL(query), opts, nil, nil)
	if err != nil {
		return err
	}
	discard(resp)
	return nil
}

// Find lists the objects whose query tags match query.
func (c *Client) Find(ctx context.Context, query map[string]string, opts RequestOptions) ([]ObjectInfo, error) {
	const op = "find"
	if len(query) == 0 {
		return nil, internalError(op, ErrEmptyQuery)
	}

	resp, err := c.do(ctx, op, http.MethodGet, c.collectionURL(query), opts, nil, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var items []ObjectInfo
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, streamError(op, fmt.Errorf("decode response: %w", err))
	}
	return items, nil
}

// do resolves headers once, then runs the attempts through the retryer.
// Credentials are resolved before the first attempt so a configuration
// error never reaches the network.
func (c *Client) do(
	ctx context.Context,
	op, method, target string,
	ro RequestOptions,
	body BodyFactory,
	prepare func(http.Header),
) (*http.Response, error) {
	base := make(http.Header)
	if prepare != nil {
		prepare(base)
	}
	for k, v := range ro.Header {
		base[http.CanonicalHeaderKey(k)] = v
	}

	cred := ro.Credentials
	if cred.Token == "" && cred.Claims == nil {
		cred = c.defaults
	}

	header, err := c.creds.Headers(cred, base)
	if err != nil {
		if errors.Is(err, ErrCredentialsMissing) {
			return nil, credentialsError(op)
		}
		return nil, internalError(op, err)
	}

	requestID := header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
		header.Set(HeaderRequestID, requestID)
	}
	logger := c.logger.With("request_id", requestID, "method", method)

	return c.retryer.withLogger(logger).Do(ctx, op, func(ctx context.Context, attempt int) (*http.Response, error) {
		logger.Debug("sending request", "op", op, "attempt", attempt)
		return c.send(ctx, method, target, header, body)
	})
}

// send performs a single HTTP call, materializing a fresh body if needed.
func (c *Client) send(ctx context.Context, method, target string, header http.Header, body BodyFactory) (*http.Response, error) {
	var (
		reqBody io.ReadCloser
		src     *sourceReader
		length  int64
	)

	if body != nil {
		raw, err := body()
		if err != nil {
			return nil, internalError("", fmt.Errorf("open body: %w", err))
		}

		length = -1
		if c.pipeline.Len() == 0 {
			length = bodyLength(raw)
		}

		fwd, err := c.pipeline.Forward(raw)
		if err != nil {
			return nil, internalError("", err)
		}
		src = &sourceReader{rc: fwd}
		reqBody = src
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		if reqBody != nil {
			_ = reqBody.Close()
		}
		return nil, internalError("", fmt.Errorf("create request: %w", err))
	}
	req.Header = header.Clone()
	if reqBody != nil {
		req.ContentLength = length
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if src != nil {
			if srcErr := src.Err(); srcErr != nil {
				return nil, internalError("", fmt.Errorf("read request body: %w", srcErr))
			}
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) objectURL(id string) string {
	u := *c.baseURL
	escaped := strings.TrimSuffix(u.EscapedPath(), "/")
	u.Path = strings.TrimSuffix(u.Path, "/") + "/objects/" + id
	u.RawPath = escaped + "/objects/" + url.PathEscape(id)
	u.RawQuery = ""
	return u.String()
}

func (c *Client) collectionURL(query map[string]string) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/objects"
	u.RawPath = ""
	u.RawQuery = QueryValues(query).Encode()
	return u.String()
}

// QueryValues formats query tags as query[key]=value parameters.
func QueryValues(query map[string]string) url.Values {
	v := make(url.Values, len(query))
	for k, val := range query {
		v.Set("query["+k+"]", val)
	}
	return v
}

func decodeInfo(op string, resp *http.Response, id string) (ObjectInfo, error) {
	defer func() { _ = resp.Body.Close() }()

	var info ObjectInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil && !errors.Is(err, io.EOF) {
		return ObjectInfo{}, streamError(op, fmt.Errorf("decode response: %w", err))
	}
	if info.ObjectID == "" {
		info.ObjectID = id
	}
	return info, nil
}

// streamError classifies a failure while consuming a successful response.
// The body cannot be replayed, so nothing is retried. A plain io.EOF means
// the body was empty, which is a decode failure rather than a broken stream.
func streamError(op string, err error) *Error {
	if isTransportError(err) && !isSyntaxError(err) && !errors.Is(err, io.EOF) {
		return &Error{Kind: KindServer, Op: op, Err: err}
	}
	return internalError(op, err)
}

func isSyntaxError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
