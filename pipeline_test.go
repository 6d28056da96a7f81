package eiostore_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/eiostore"
)

// wrap tags the stream as name(...) on the way out and strips the tag on
// the way back, failing if the tag is not the outermost one.
func wrap(name string) (forward, reverse eiostore.TransformFactory) {
	forward = func() eiostore.Transform {
		return func(src io.ReadCloser) (io.ReadCloser, error) {
			b, err := io.ReadAll(src)
			if err != nil {
				return nil, err
			}
			return io.NopCloser(strings.NewReader(name + "(" + string(b) + ")")), src.Close()
		}
	}
	reverse = func() eiostore.Transform {
		return func(src io.ReadCloser) (io.ReadCloser, error) {
			b, err := io.ReadAll(src)
			if err != nil {
				return nil, err
			}
			s, ok := strings.CutPrefix(string(b), name+"(")
			if !ok || !strings.HasSuffix(s, ")") {
				return nil, errors.New("not wrapped by " + name)
			}
			return io.NopCloser(strings.NewReader(strings.TrimSuffix(s, ")"))), src.Close()
		}
	}
	return forward, reverse
}

func run(t *testing.T, fn func(io.ReadCloser) (io.ReadCloser, error), in string) string {
	t.Helper()
	rc, err := fn(io.NopCloser(strings.NewReader(in)))
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	return string(b)
}

func TestPipeline_Order(t *testing.T) {
	var p eiostore.Pipeline
	p.Use(wrap("a")).Use(wrap("b")).Use(wrap("c"))

	assert.Equal(t, 3, p.Len())
	assert.Equal(t, "c(b(a(x)))", run(t, p.Forward, "x"))
	assert.Equal(t, "x", run(t, p.Reverse, "c(b(a(x)))"))
}

func TestPipeline_RoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 4} {
		var p eiostore.Pipeline
		for i := range n {
			p.Use(wrap(string(rune('a' + i))))
		}

		payload := "payload"
		assert.Equal(t, payload, run(t, p.Reverse, run(t, p.Forward, payload)), "%d pairs", n)
	}
}

func TestPipeline_NilIsIdentity(t *testing.T) {
	var p *eiostore.Pipeline
	assert.Zero(t, p.Len())
	assert.Equal(t, "x", run(t, p.Forward, "x"))
	assert.Equal(t, "x", run(t, p.Reverse, "x"))
}

type closeSpy struct {
	io.Reader
	closed bool
}

func (c *closeSpy) Close() error {
	c.closed = true
	return nil
}

func TestPipeline_StageErrorClosesSource(t *testing.T) {
	var p eiostore.Pipeline
	_, rev := wrap("a")
	p.Use(rev, rev)

	src := &closeSpy{Reader: bytes.NewReader([]byte("plain"))}
	_, err := p.Forward(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transform stage 0")
	assert.True(t, src.closed)
}
