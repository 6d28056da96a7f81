package transform

import (
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/sagarc03/eiostore"
)

// Gzip returns a compressing stage factory at the default level.
func Gzip() eiostore.TransformFactory {
	return GzipLevel(gzip.DefaultCompression)
}

// GzipLevel returns a compressing stage factory at the given level.
func GzipLevel(level int) eiostore.TransformFactory {
	return func() eiostore.Transform {
		return func(src io.ReadCloser) (io.ReadCloser, error) {
			return writerStage(src, func(w io.Writer) (io.WriteCloser, error) {
				return gzip.NewWriterLevel(w, level)
			})
		}
	}
}

// Gunzip returns a decompressing stage factory.
func Gunzip() eiostore.TransformFactory {
	return func() eiostore.Transform {
		return func(src io.ReadCloser) (io.ReadCloser, error) {
			return &lazyReader{
				src: src,
				open: func(r io.Reader) (io.Reader, error) {
					return gzip.NewReader(r)
				},
			}, nil
		}
	}
}

// GzipPair returns the gzip forward and reverse factories.
func GzipPair() (forward, reverse eiostore.TransformFactory) {
	return Gzip(), Gunzip()
}
