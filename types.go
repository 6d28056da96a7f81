package eiostore

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Header names understood by the object storage service.
const (
	HeaderTTL          = "X-Eio-Ttl"
	HeaderRequestID    = "X-Request-Id"
	MetaHeaderPrefix   = "X-Meta-"
	QueryHeaderPrefix  = "X-Query-"
	DefaultContentType = "application/octet-stream"
)

// ObjectMetadata exposes the object headers of a response. Headers other
// than the ones with accessors are passed through untouched.
type ObjectMetadata struct {
	Header http.Header
}

// ContentType returns the stored content type.
func (m ObjectMetadata) ContentType() string {
	return m.Header.Get("Content-Type")
}

// ContentLength returns the declared length, or -1 when unknown.
func (m ObjectMetadata) ContentLength() int64 {
	n, err := strconv.ParseInt(m.Header.Get("Content-Length"), 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// TTL returns the expiry hint, or zero when absent.
func (m ObjectMetadata) TTL() time.Duration {
	secs, err := strconv.ParseInt(m.Header.Get(HeaderTTL), 10, 64)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Meta returns the user metadata, keyed without the x-meta- prefix.
func (m ObjectMetadata) Meta() map[string]string {
	return prefixed(m.Header, MetaHeaderPrefix)
}

// Query returns the indexed query tags, keyed without the x-query- prefix.
func (m ObjectMetadata) Query() map[string]string {
	return prefixed(m.Header, QueryHeaderPrefix)
}

func prefixed(h http.Header, prefix string) map[string]string {
	out := make(map[string]string)
	for k, v := range h {
		if len(v) == 0 || !strings.HasPrefix(k, prefix) {
			continue
		}
		out[strings.ToLower(strings.TrimPrefix(k, prefix))] = v[0]
	}
	return out
}

// ObjectInfo is the JSON description of a stored object.
type ObjectInfo struct {
	ObjectID      string            `json:"objectId"`
	ContentType   string            `json:"contentType,omitempty"`
	ContentLength int64             `json:"contentLength,omitempty"`
	MD5           string            `json:"md5,omitempty"`
	CreatedAt     time.Time         `json:"createdAt,omitzero"`
	Meta          map[string]string `json:"metaHeaders,omitempty"`
	Query         map[string]string `json:"queriableFields,omitempty"`
}

// Object is a downloaded object. Body yields the bytes after the reverse
// pipeline and must be closed.
type Object struct {
	ObjectMetadata
	Body io.ReadCloser
}

// Close closes the object body.
func (o *Object) Close() error {
	return o.Body.Close()
}

// RequestOptions holds the per-request settings shared by all operations.
type RequestOptions struct {
	Credentials Credentials
	// Header entries are sent as-is, except Authorization which is always
	// derived from Credentials.
	Header http.Header
}

// GetOptions configures Get.
type GetOptions struct {
	RequestOptions
}

// WriteOptions configures Post and Put.
type WriteOptions struct {
	RequestOptions
	// ContentType defaults to application/octet-stream.
	ContentType string
	// TTL sets the x-eio-ttl expiry hint when positive.
	TTL time.Duration
	// Meta becomes x-meta-<key> headers.
	Meta map[string]string
	// Query becomes x-query-<key> headers, indexed for Find and DeleteMany.
	Query map[string]string
}

func (o WriteOptions) apply(h http.Header) {
	contentType := o.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}
	h.Set("Content-Type", contentType)

	if o.TTL > 0 {
		secs := (o.TTL + time.Second - 1) / time.Second
		h.Set(HeaderTTL, strconv.FormatInt(int64(secs), 10))
	}
	for k, v := range o.Meta {
		h.Set(MetaHeaderPrefix+k, v)
	}
	for k, v := range o.Query {
		h.Set(QueryHeaderPrefix+k, v)
	}
}
