package eiostore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// BodyFactory returns a fresh, unread request body. It is invoked once per
// attempt because a consumed stream cannot be rewound for a retry.
type BodyFactory func() (io.ReadCloser, error)

// BytesBody serves b on every attempt. b must not be modified while in use.
func BytesBody(b []byte) BodyFactory {
	return func() (io.ReadCloser, error) {
		return bytesBody{bytes.NewReader(b)}, nil
	}
}

// StringBody serves s on every attempt.
func StringBody(s string) BodyFactory {
	return func() (io.ReadCloser, error) {
		return stringBody{strings.NewReader(s)}, nil
	}
}

// JSONBody encodes v once and serves the encoding on every attempt.
func JSONBody(v any) (BodyFactory, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json body: %w", err)
	}
	return BytesBody(b), nil
}

// FileBody reopens the file at path on every attempt.
func FileBody(path string) BodyFactory {
	return func() (io.ReadCloser, error) {
		f, err := os.Open(path) //#nosec G304 -- path is caller-provided input
		if err != nil {
			return nil, fmt.Errorf("open body file: %w", err)
		}
		return f, nil
	}
}

// ReaderFunc adapts a function returning a plain reader.
func ReaderFunc(fn func() io.Reader) BodyFactory {
	return func() (io.ReadCloser, error) {
		r := fn()
		if rc, ok := r.(io.ReadCloser); ok {
			return rc, nil
		}
		return io.NopCloser(r), nil
	}
}

// bodyLength reports the remaining length of rc when it is cheaply known.
func bodyLength(rc io.ReadCloser) int64 {
	type lener interface{ Len() int }

	if f, ok := rc.(*os.File); ok {
		info, err := f.Stat()
		if err != nil || !info.Mode().IsRegular() {
			return -1
		}
		return info.Size()
	}
	if l, ok := rc.(lener); ok {
		return int64(l.Len())
	}
	return -1
}

type bytesBody struct{ *bytes.Reader }

func (bytesBody) Close() error { return nil }

type stringBody struct{ *strings.Reader }

func (stringBody) Close() error { return nil }

// sourceReader records errors coming from the caller's body so they can be
// told apart from network failures when the request fails.
type sourceReader struct {
	rc io.ReadCloser

	mu  sync.Mutex
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.rc.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}
	return n, err
}

func (s *sourceReader) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *sourceReader) Close() error {
	return s.rc.Close()
}
