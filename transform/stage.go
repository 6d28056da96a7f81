// Package transform provides stream transform pairs for eiostore pipelines.
//
// Each pair is registered with Client.Use: the forward stage runs on upload,
// the reverse stage on download.
//
//	fwd, rev := transform.GzipPair()
//	client.Use(fwd, rev)
//
//	fwd, rev = transform.EncryptPair("passphrase")
//	client.Use(fwd, rev)
package transform

import (
	"errors"
	"io"
	"sync"
)

// stageReader exposes a stage's output and tears the stage down on Close.
type stageReader struct {
	r       io.Reader
	closeFn func() error
	once    sync.Once
	err     error
}

func (s *stageReader) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

func (s *stageReader) Close() error {
	s.once.Do(func() { s.err = s.closeFn() })
	return s.err
}

// writerStage runs a write-side encoder in its own goroutine and exposes the
// encoded bytes as a reader. Closing the reader stops the goroutine.
func writerStage(src io.ReadCloser, wrap func(w io.Writer) (io.WriteCloser, error)) (io.ReadCloser, error) {
	pr, pw := io.Pipe()
	w, err := wrap(pw)
	if err != nil {
		_ = pw.Close()
		return nil, err
	}

	go func() {
		_, copyErr := io.Copy(w, src)
		if closeErr := w.Close(); copyErr == nil {
			copyErr = closeErr
		}
		_ = pw.CloseWithError(copyErr)
	}()

	return &stageReader{
		r: pr,
		closeFn: func() error {
			return errors.Join(pr.Close(), src.Close())
		},
	}, nil
}

// lazyReader defers decoder construction to the first Read so header
// errors surface while the caller consumes the stream.
type lazyReader struct {
	src  io.ReadCloser
	open func(r io.Reader) (io.Reader, error)

	r   io.Reader
	err error
}

func (l *lazyReader) Read(p []byte) (int, error) {
	if l.err != nil {
		return 0, l.err
	}
	if l.r == nil {
		r, err := l.open(l.src)
		if err != nil {
			l.err = err
			return 0, err
		}
		l.r = r
	}
	return l.r.Read(p)
}

func (l *lazyReader) Close() error {
	var err error
	if c, ok := l.r.(io.Closer); ok {
		err = c.Close()
	}
	return errors.Join(err, l.src.Close())
}
