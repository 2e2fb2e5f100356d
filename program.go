package buffercmp

import (
	"math"

	"github.com/gomlx/buffercmp/internal/hlo"
	"github.com/gomlx/buffercmp/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// emitter accumulates ops into a function, capturing the first error so the
// program construction reads linearly, same as the w()/we() writer closures of
// the emitter package.
type emitter struct {
	fn  *hlo.Function
	err error
}

// v returns the value, recording the first error encountered.
func (e *emitter) v(value *hlo.Value, err error) *hlo.Value {
	if e.err == nil && err != nil {
		e.err = err
	}
	return value
}

// constFull emits a scalar constant of the compute dtype broadcast to the given dimensions.
func (e *emitter) constFull(compute dtypes.DType, value float64, dimensions []int) *hlo.Value {
	var scalar *hlo.Value
	switch compute {
	case dtypes.Float32:
		scalar = e.v(e.fn.Constant(float32(value)))
	case dtypes.Float64:
		scalar = e.v(e.fn.Constant(value))
	default:
		if e.err == nil {
			e.err = errors.Errorf("unsupported compute dtype %s for a float constant", compute)
		}
		return nil
	}
	return e.v(e.fn.BroadcastInDim(scalar, shapes.Make(compute, dimensions...), nil))
}

// buildProgram emits the StableHLO comparison kernel for the given shape and
// rule-table parameters.
//
// The program takes the two buffers as inputs and returns a scalar int32: the
// number of mismatching elements (0 means the buffers compare equal).
func buildProgram(shape shapes.Shape, params typeParams) ([]byte, error) {
	b := hlo.New("buffer_comparator")
	fn := b.Main()
	e := &emitter{fn: fn}
	lhs := fn.NamedInput("lhs", shape)
	rhs := fn.NamedInput("rhs", shape)

	var equal *hlo.Value
	switch {
	case shape.DType.IsComplex():
		// Components are compared independently, each with the component
		// type's parameters.
		equalRe := e.floatPairEqual(params, shape.Dimensions,
			e.v(fn.Real(lhs)), e.v(fn.Real(rhs)))
		equalIm := e.floatPairEqual(params, shape.Dimensions,
			e.v(fn.Imag(lhs)), e.v(fn.Imag(rhs)))
		equal = e.v(fn.And(equalRe, equalIm))

	case shape.DType == dtypes.Int8:
		// Absolute integer tolerance, differences computed in wide integers
		// so they never wrap.
		a := e.v(fn.Convert(lhs, params.Compute))
		bWide := e.v(fn.Convert(rhs, params.Compute))
		diff := e.v(fn.Abs(e.v(fn.Subtract(a, bWide))))
		atol := e.v(fn.Constant(int32(math.Round(params.Atol))))
		atolFull := e.v(fn.BroadcastInDim(atol, shapes.Make(params.Compute, shape.Dimensions...), nil))
		equal = e.v(fn.Compare(diff, atolFull, hlo.CompareLE, hlo.CompareSigned))

	default:
		a := e.v(fn.Convert(lhs, params.Compute))
		bWide := e.v(fn.Convert(rhs, params.Compute))
		equal = e.floatPairEqual(params, shape.Dimensions, a, bWide)
	}

	// Mismatch count: not(equal) -> int32, flattened and reduce-summed to a scalar.
	counts := e.v(fn.Convert(e.v(fn.Not(equal)), dtypes.Int32))
	if shape.Rank() != 1 {
		counts = e.v(fn.Reshape(counts, shape.Size()))
	}
	zero := e.v(fn.Constant(int32(0)))
	sum := fn.Closure()
	acc := sum.NamedInput("acc", shapes.Make(dtypes.Int32))
	x := sum.NamedInput("x", shapes.Make(dtypes.Int32))
	e.v(nil, sum.Return(e.v(sum.Add(acc, x))))
	total := e.v(fn.Reduce(counts, zero, sum, 0))
	e.v(nil, fn.Return(total))

	if e.err != nil {
		return nil, e.err
	}
	return b.Build()
}

// floatPairEqual emits the per-element float equality test over two operands
// already converted to the compute dtype:
//
//   - both NaN: equal, whatever the payloads;
//   - if the element type has an Infinity encoding, non-finite values are first
//     canonicalized to the signed max finite magnitude, so Infinity equals the
//     saturated max (NaN survives canonicalization, since sign(NaN) is NaN);
//   - otherwise abs(a-b) <= atol + rtol*max(abs(a), abs(b)).
func (e *emitter) floatPairEqual(params typeParams, dimensions []int, a, b *hlo.Value) *hlo.Value {
	fn := e.fn
	aNaN := e.v(fn.Compare(a, a, hlo.CompareNE, hlo.CompareFloat))
	bNaN := e.v(fn.Compare(b, b, hlo.CompareNE, hlo.CompareFloat))
	bothNaN := e.v(fn.And(aNaN, bNaN))

	if params.HasInfinity {
		a = e.canonicalize(params, dimensions, a)
		b = e.canonicalize(params, dimensions, b)
	}

	diff := e.v(fn.Abs(e.v(fn.Subtract(a, b))))
	maxMag := e.v(fn.Maximum(e.v(fn.Abs(a)), e.v(fn.Abs(b))))
	atol := e.constFull(params.Compute, params.Atol, dimensions)
	rtol := e.constFull(params.Compute, params.Rtol, dimensions)
	bound := e.v(fn.Add(atol, e.v(fn.Multiply(rtol, maxMag))))
	close := e.v(fn.Compare(diff, bound, hlo.CompareLE, hlo.CompareFloat))
	return e.v(fn.Or(bothNaN, close))
}

// canonicalize replaces non-finite values with the signed max finite magnitude
// of the element type. NaN stays NaN: sign(NaN)*MaxFinite is NaN.
func (e *emitter) canonicalize(params typeParams, dimensions []int, x *hlo.Value) *hlo.Value {
	fn := e.fn
	finite := e.v(fn.IsFinite(x))
	maxFinite := e.constFull(params.Compute, params.MaxFinite, dimensions)
	saturated := e.v(fn.Multiply(e.v(fn.Sign(x)), maxFinite))
	return e.v(fn.Select(finite, x, saturated))
}
