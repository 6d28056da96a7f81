package eiostore

import (
	"errors"
	"fmt"
	"io"
)

// Transform wraps src and returns a reader producing the transformed bytes.
// Closing the returned reader must close src. On error src is left open and
// the caller closes it.
type Transform func(src io.ReadCloser) (io.ReadCloser, error)

// TransformFactory builds a fresh Transform. It is called once per request so
// stateful stages, such as ciphers, never share state across requests.
type TransformFactory func() Transform

// Pipeline is an ordered chain of invertible transforms.
//
// Use must not be called concurrently with Forward or Reverse; register every
// pair during setup, before issuing requests.
type Pipeline struct {
	forward []TransformFactory
	reverse []TransformFactory
}

// Use registers a transform pair. The forward stage runs after all previously
// registered forward stages, the reverse stage before all previously
// registered reverse stages.
func (p *Pipeline) Use(forward, reverse TransformFactory) *Pipeline {
	p.forward = append(p.forward, forward)
	p.reverse = append([]TransformFactory{reverse}, p.reverse...)
	return p
}

// Len returns the number of registered pairs.
func (p *Pipeline) Len() int {
	if p == nil {
		return 0
	}
	return len(p.forward)
}

// Forward applies the forward stages in registration order.
func (p *Pipeline) Forward(src io.ReadCloser) (io.ReadCloser, error) {
	if p == nil {
		return src, nil
	}
	return fold(src, p.forward)
}

// Reverse applies the reverse stages in reverse registration order.
func (p *Pipeline) Reverse(src io.ReadCloser) (io.ReadCloser, error) {
	if p == nil {
		return src, nil
	}
	return fold(src, p.reverse)
}

func fold(src io.ReadCloser, stages []TransformFactory) (io.ReadCloser, error) {
	cur := src
	for i, factory := range stages {
		next, err := factory()(cur)
		if err != nil {
			closeErr := cur.Close()
			return nil, errors.Join(fmt.Errorf("transform stage %d: %w", i, err), closeErr)
		}
		cur = next
	}
	return cur, nil
}
