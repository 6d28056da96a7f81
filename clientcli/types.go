package clientcli

import (
	"time"

	"github.com/sagarc03/eiostore"
)

// UploadOptions configures an upload operation.
type UploadOptions struct {
	LocalPath   string // "-" reads standard input
	ID          string // empty creates a new object
	ContentType string // optional, auto-detect if empty
	TTL         time.Duration
	Meta        map[string]string
	Query       map[string]string
}

// UploadResult represents the result of uploading a single file.
type UploadResult struct {
	LocalPath   string    `json:"local_path" yaml:"local_path"`
	ID          string    `json:"id" yaml:"id"`
	ContentType string    `json:"content_type" yaml:"content_type"`
	MD5         string    `json:"md5,omitempty" yaml:"md5,omitempty"`
	Size        int64     `json:"size_bytes" yaml:"size_bytes"`
	CreatedAt   time.Time `json:"created_at,omitzero" yaml:"created_at,omitempty"`
}

// DownloadOptions configures a download operation.
type DownloadOptions struct {
	ID        string
	LocalPath string // empty = object id, "-" = stdout
}

// DownloadResult represents the result of downloading an object.
type DownloadResult struct {
	ID          string            `json:"id" yaml:"id"`
	LocalPath   string            `json:"local_path" yaml:"local_path"`
	ContentType string            `json:"content_type" yaml:"content_type"`
	Size        int64             `json:"size_bytes" yaml:"size_bytes"`
	Meta        map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// DeleteResult represents the result of deleting a single object.
type DeleteResult struct {
	ID      string `json:"id" yaml:"id"`
	Deleted bool   `json:"deleted" yaml:"deleted"`
	Err     error  `json:"-" yaml:"-"` // nil on success
}

// FindResult contains the objects matching a query.
type FindResult struct {
	Items []eiostore.ObjectInfo `json:"items" yaml:"items"`
}

// TotalSize calculates the total size of all items in bytes.
func (r *FindResult) TotalSize() int64 {
	var total int64
	for _, item := range r.Items {
		total += item.ContentLength
	}
	return total
}
