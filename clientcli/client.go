package clientcli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sagarc03/eiostore"
	"github.com/sagarc03/eiostore/transform"
)

// DefaultConcurrency is the number of objects deleted in parallel.
const DefaultConcurrency = 4

// Client performs CLI operations against an object storage service.
type Client struct {
	store       *eiostore.Client
	storeOpts   []eiostore.Option
	concurrency int
	gzip        bool
	encryptKey  string
	stdin       io.Reader
}

// Option configures a Client.
type Option func(*Client)

// WithStoreOptions passes options through to the underlying eiostore client.
func WithStoreOptions(opts ...eiostore.Option) Option {
	return func(c *Client) {
		c.storeOpts = append(c.storeOpts, opts...)
	}
}

// WithConcurrency sets how many deletes run in parallel.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		c.concurrency = n
	}
}

// WithGzip compresses uploads and decompresses downloads.
func WithGzip() Option {
	return func(c *Client) {
		c.gzip = true
	}
}

// WithEncryption encrypts uploads and decrypts downloads with a key
// derived from passphrase. Encryption is applied after compression.
func WithEncryption(passphrase string) Option {
	return func(c *Client) {
		c.encryptKey = passphrase
	}
}

// WithStdin replaces the reader used for the "-" upload path.
func WithStdin(r io.Reader) Option {
	return func(c *Client) {
		c.stdin = r
	}
}

// New creates a new Client with the given config and options.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	cfg = cfg.WithDefaults()

	c := &Client{
		concurrency: DefaultConcurrency,
		stdin:       os.Stdin,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.concurrency < 1 {
		c.concurrency = 1
	}

	storeOpts := append([]eiostore.Option(nil), c.storeOpts...)
	if cfg.Secret != "" {
		storeOpts = append(storeOpts, eiostore.WithSecret(cfg.Secret))
	}
	if cfg.Token != "" {
		storeOpts = append(storeOpts, eiostore.WithCredentials(eiostore.Token(cfg.Token)))
	}

	store, err := eiostore.New(cfg.Endpoint, storeOpts...)
	if err != nil {
		return nil, err
	}
	if c.gzip {
		store.Use(transform.GzipPair())
	}
	if c.encryptKey != "" {
		store.Use(transform.EncryptPair(c.encryptKey))
	}
	c.store = store

	return c, nil
}

// Store returns the underlying eiostore client.
func (c *Client) Store() *eiostore.Client {
	return c.store
}

// Upload stores a local file, or standard input when LocalPath is "-".
// With an ID the object is replaced, otherwise a new object is created.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) (UploadResult, error) {
	if opts.LocalPath == "" {
		return UploadResult{}, fmt.Errorf("upload: %w", ErrEmptyPath)
	}

	var body eiostore.BodyFactory
	if opts.LocalPath == "-" {
		// Standard input cannot be reopened per attempt, so it is buffered.
		data, err := io.ReadAll(c.stdin)
		if err != nil {
			return UploadResult{}, fmt.Errorf("read stdin: %w", err)
		}
		body = eiostore.BytesBody(data)
	} else {
		info, err := os.Stat(opts.LocalPath)
		if err != nil {
			return UploadResult{}, fmt.Errorf("stat local path: %w", err)
		}
		if info.IsDir() {
			return UploadResult{}, fmt.Errorf("upload: %s is a directory", opts.LocalPath)
		}
		body = eiostore.FileBody(opts.LocalPath)
	}

	contentType := opts.ContentType
	if contentType == "" && opts.LocalPath != "-" {
		contentType = detectContentType(opts.LocalPath)
	}

	wopts := eiostore.WriteOptions{
		ContentType: contentType,
		TTL:         opts.TTL,
		Meta:        opts.Meta,
		Query:       opts.Query,
	}

	var (
		info eiostore.ObjectInfo
		err  error
	)
	if opts.ID != "" {
		info, err = c.store.Put(ctx, opts.ID, body, wopts)
	} else {
		info, err = c.store.Post(ctx, body, wopts)
	}
	if err != nil {
		return UploadResult{}, err
	}

	return UploadResult{
		LocalPath:   opts.LocalPath,
		ID:          info.ObjectID,
		ContentType: info.ContentType,
		MD5:         info.MD5,
		Size:        info.ContentLength,
		CreatedAt:   info.CreatedAt,
	}, nil
}

// Download fetches an object.
// If opts.LocalPath is "-", the content is returned via the io.ReadCloser and must be closed by the caller.
// Otherwise, the content is written to the file and the io.ReadCloser is nil.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (*DownloadResult, io.ReadCloser, error) {
	if opts.ID == "" {
		return nil, nil, fmt.Errorf("download: %w", ErrEmptyID)
	}

	obj, err := c.store.Get(ctx, opts.ID, eiostore.GetOptions{})
	if err != nil {
		return nil, nil, err
	}

	result := &DownloadResult{
		ID:          opts.ID,
		ContentType: obj.ContentType(),
		Size:        obj.ContentLength(),
	}
	if meta := obj.Meta(); len(meta) > 0 {
		result.Meta = meta
	}

	if opts.LocalPath == "-" {
		result.LocalPath = "-"
		return result, obj.Body, nil
	}

	localPath := opts.LocalPath
	if localPath == "" {
		localPath = filepath.Base(opts.ID)
	}
	result.LocalPath = localPath

	if dir := filepath.Dir(localPath); dir != "" && dir != "." {
		if mkdirErr := os.MkdirAll(dir, 0o750); mkdirErr != nil {
			_ = obj.Close()
			return nil, nil, fmt.Errorf("create directory: %w", mkdirErr)
		}
	}

	file, createErr := os.Create(localPath) //#nosec G304 -- localPath is user-provided input
	if createErr != nil {
		_ = obj.Close()
		return nil, nil, fmt.Errorf("create file: %w", createErr)
	}

	written, copyErr := io.Copy(file, obj.Body)
	_ = obj.Close()
	if copyErr != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("write file: %w", copyErr)
	}

	if closeErr := file.Close(); closeErr != nil {
		return nil, nil, fmt.Errorf("close file: %w", closeErr)
	}

	result.Size = written
	return result, nil, nil
}

// Delete deletes one or more objects in parallel.
// Continues on error, collecting results for all ids in input order.
func (c *Client) Delete(ctx context.Context, ids []string) ([]DeleteResult, error) {
	if len(ids) == 0 {
		return nil, ErrNoIDs
	}

	results := make([]DeleteResult, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = DeleteResult{ID: id, Err: err}
				return err
			}
			err := c.store.Delete(gctx, id, eiostore.RequestOptions{})
			results[i] = DeleteResult{ID: id, Deleted: err == nil, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	return results, nil
}

// HasDeleteErrors returns true if any delete operation failed.
func HasDeleteErrors(results []DeleteResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// DeleteMany deletes every object matching query.
func (c *Client) DeleteMany(ctx context.Context, query map[string]string) error {
	if len(query) == 0 {
		return ErrEmptyQuery
	}
	return c.store.DeleteMany(ctx, query, eiostore.RequestOptions{})
}

// Find lists the objects matching query.
func (c *Client) Find(ctx context.Context, query map[string]string) (*FindResult, error) {
	if len(query) == 0 {
		return nil, ErrEmptyQuery
	}
	items, err := c.store.Find(ctx, query, eiostore.RequestOptions{})
	if err != nil {
		return nil, err
	}
	return &FindResult{Items: items}, nil
}

// SignToken mints a bearer token for claims with the configured secret.
func SignToken(cfg *Config, claims map[string]any) (string, error) {
	if cfg == nil || cfg.Secret == "" {
		return "", ErrCredentialsRequired
	}
	return eiostore.NewCredentialProvider(cfg.Secret).Sign(claims)
}

// ParsePairs parses key=value arguments into a map. Later keys win.
func ParsePairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPair, p)
		}
		out[k] = v
	}
	return out, nil
}

// LogValue describes the client for structured logs without credentials.
func (c *Client) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("gzip", c.gzip),
		slog.Bool("encrypt", c.encryptKey != ""),
		slog.Int("concurrency", c.concurrency),
	)
}

// detectContentType returns MIME type based on file extension.
func detectContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return eiostore.DefaultContentType
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return eiostore.DefaultContentType
	}

	return mimeType
}
