package eiostore

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObjectMetadata_Accessors(t *testing.T) {
	m := ObjectMetadata{Header: http.Header{
		"Content-Type":   {"text/plain"},
		"Content-Length": {"42"},
		"X-Eio-Ttl":      {"60"},
		"X-Meta-Owner":   {"ops"},
		"X-Query-Tenant": {"acme"},
		"X-Other":        {"kept"},
	}}

	assert.Equal(t, "text/plain", m.ContentType())
	assert.Equal(t, int64(42), m.ContentLength())
	assert.Equal(t, time.Minute, m.TTL())
	assert.Equal(t, map[string]string{"owner": "ops"}, m.Meta())
	assert.Equal(t, map[string]string{"tenant": "acme"}, m.Query())
	assert.Equal(t, "kept", m.Header.Get("X-Other"))
}

func TestObjectMetadata_Missing(t *testing.T) {
	m := ObjectMetadata{Header: http.Header{"X-Eio-Ttl": {"-5"}}}

	assert.Equal(t, int64(-1), m.ContentLength())
	assert.Zero(t, m.TTL())
	assert.Empty(t, m.Meta())
}

func TestWriteOptions_Apply(t *testing.T) {
	tests := []struct {
		name string
		opts WriteOptions
		want http.Header
	}{
		{
			name: "defaults",
			opts: WriteOptions{},
			want: http.Header{"Content-Type": {DefaultContentType}},
		},
		{
			name: "ttl rounds up to whole seconds",
			opts: WriteOptions{ContentType: "text/csv", TTL: 1500 * time.Millisecond},
			want: http.Header{"Content-Type": {"text/csv"}, "X-Eio-Ttl": {"2"}},
		},
		{
			name: "meta and query",
			opts: WriteOptions{
				TTL:   time.Hour,
				Meta:  map[string]string{"owner": "ops"},
				Query: map[string]string{"tenant": "acme"},
			},
			want: http.Header{
				"Content-Type":   {DefaultContentType},
				"X-Eio-Ttl":      {"3600"},
				"X-Meta-Owner":   {"ops"},
				"X-Query-Tenant": {"acme"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := make(http.Header)
			tt.opts.apply(h)
			assert.Equal(t, tt.want, h)
		})
	}
}
