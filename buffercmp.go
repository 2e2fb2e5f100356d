// Package buffercmp compares two device-resident buffers of the same shape for
// approximate equality, on the device itself: it emits a small StableHLO
// program per (element type, shape) pair, compiles it through PJRT and runs it
// over the two buffers, returning a single boolean verdict.
//
// It is meant to validate accelerator kernel outputs against reference
// results, where bit-exact equality is too strict:
//
//   - NaN compares equal to NaN, regardless of payload.
//   - Infinity compares equal to the same-signed maximum finite magnitude of
//     the element type (saturation adjacency).
//   - Finite values pass if abs(a-b) <= atol + rtol*max(abs(a), abs(b)), with
//     per-type tolerances (looser for reduced-precision types).
//   - Complex values must pass component-wise.
//
// The verdict is all-or-nothing: a single mismatching element makes the whole
// comparison false. Malformed comparisons (shape or dtype disagreement, device
// failures) return errors, never a false verdict.
//
// Supported element types: Int8, Float16, BFloat16, Float32, Float64,
// F8E4M3FN, F8E5M2, Complex64 and Complex128.
package buffercmp

import (
	"sync"

	"github.com/gomlx/buffercmp/types/shapes"
	"github.com/gomlx/gopjrt/pjrt"
)

// Comparator compares pairs of device buffers of one fixed (element type,
// shape) pair. It is immutable after construction and safe for concurrent use.
//
// Construction builds the StableHLO program but does no device work;
// compilation happens lazily on the first CompareEqual per client and is
// cached. Call Destroy to release the cached executables.
type Comparator struct {
	shape   shapes.Shape
	params  typeParams
	program []byte

	mu    sync.Mutex
	execs map[*pjrt.Client]*pjrt.LoadedExecutable
}

// Option configures a Comparator at construction. The defaults come from the
// per-element-type tolerance table.
type Option func(*typeParams)

// WithAbsoluteTolerance overrides the element type's default absolute tolerance.
// For Int8 the value is rounded to an integer tolerance.
func WithAbsoluteTolerance(atol float64) Option {
	return func(p *typeParams) { p.Atol = atol }
}

// WithRelativeTolerance overrides the element type's default relative tolerance.
func WithRelativeTolerance(rtol float64) Option {
	return func(p *typeParams) { p.Rtol = rtol }
}

// Exact sets both tolerances to zero: only bit-identical values (plus the NaN
// and Infinity-saturation rules, which still apply) compare equal.
func Exact() Option {
	return func(p *typeParams) {
		p.Atol = 0
		p.Rtol = 0
	}
}

// New creates a Comparator for buffers of the given shape.
//
// It returns a *PreconditionError if the shape is invalid or its element type
// is not in the supported enumeration.
func New(shape shapes.Shape, opts ...Option) (*Comparator, error) {
	if !shape.Ok() {
		return nil, preconditionErrorf("cannot create a comparator for an invalid shape")
	}
	params, ok := defaultTypeParams[shape.DType]
	if !ok {
		return nil, preconditionErrorf("unsupported element type %s (shape %s)", shape.DType, shape)
	}
	for _, opt := range opts {
		opt(&params)
	}
	program, err := buildProgram(shape, params)
	if err != nil {
		return nil, err
	}
	return &Comparator{
		shape:   shape,
		params:  params,
		program: program,
		execs:   make(map[*pjrt.Client]*pjrt.LoadedExecutable),
	}, nil
}

// NewForValue creates a Comparator for buffers shaped like the given host Go
// value: a scalar or (nested) slices of a supported POD type.
//
// It is a convenience over New for callers holding the reference results as a
// Go value, e.g. NewForValue([][]float32{{0, 0, 0}, {0, 0, 0}}) builds a
// comparator for Float32 buffers of dimensions [2, 3].
func NewForValue(value any, opts ...Option) (*Comparator, error) {
	shape, err := shapes.FromAnyValue(value)
	if err != nil {
		return nil, &PreconditionError{err: err}
	}
	return New(shape, opts...)
}

// Shape returns the shape the comparator was built for.
func (c *Comparator) Shape() shapes.Shape {
	return c.shape
}

// Program returns the StableHLO program text of the comparison kernel.
// Useful for debugging; the returned slice must not be modified.
func (c *Comparator) Program() []byte {
	return c.program
}

// Destroy releases the executables compiled so far. The Comparator must not be
// used afterward. It returns the first destruction error, if any.
func (c *Comparator) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for client, exec := range c.execs {
		if err := exec.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.execs, client)
	}
	return firstErr
}
