package buffercmp

import (
	"math"

	"github.com/gomlx/buffercmp/internal/fp8"
	"github.com/gomlx/gopjrt/dtypes"
)

// typeParams is the closed per-element-type rule table: the tolerances of the
// numeric-closeness test, the special-value flags and the dtype the device
// program compares in.
//
// For complex types the entries describe the component (real) type: each
// component is compared independently with these parameters.
type typeParams struct {
	// Atol and Rtol are the absolute and relative tolerances of the combined
	// closeness test: abs(a-b) <= Atol + Rtol*max(abs(a), abs(b)).
	// For Int8, Atol is an absolute integer tolerance and Rtol is 0.
	Atol, Rtol float64

	// MaxFinite is the largest finite magnitude of the element type (of the
	// component type for complex). Infinities are canonicalized to ±MaxFinite
	// before the closeness test, making Infinity equal to the saturated max.
	MaxFinite float64

	// HasInfinity indicates the element type encodes Infinity.
	HasInfinity bool

	// InfinityIsNaN is the F8E4M3FN quirk: the type has no Infinity encoding
	// and its would-be Infinity bit pattern is its NaN, so an Infinity supplied
	// through a host conversion saturates to NaN and compares equal to NaN.
	// It is a rule-table flag, never inferred from bit patterns.
	InfinityIsNaN bool

	// Compute is the dtype the device program converts both operands to before
	// comparing: Float32 for the narrow floats and Int8, Float64 for
	// Float64/Complex128.
	Compute dtypes.DType
}

// defaultTypeParams enumerates the supported element types. Reduced-precision
// types get looser tolerances.
var defaultTypeParams = map[dtypes.DType]typeParams{
	dtypes.Float64: {
		Atol: 1e-7, Rtol: 0.1,
		MaxFinite: math.MaxFloat64, HasInfinity: true,
		Compute: dtypes.Float64,
	},
	dtypes.Float32: {
		Atol: 1e-4, Rtol: 0.1,
		MaxFinite: math.MaxFloat32, HasInfinity: true,
		Compute: dtypes.Float32,
	},
	dtypes.Float16: {
		Atol: 1e-3, Rtol: 0.1,
		MaxFinite: 65504, HasInfinity: true,
		Compute: dtypes.Float32,
	},
	dtypes.BFloat16: {
		Atol: 1e-2, Rtol: 0.1,
		MaxFinite: 3.38953139e38, HasInfinity: true,
		Compute: dtypes.Float32,
	},
	dtypes.F8E4M3FN: {
		Atol: 0.125, Rtol: 0.1,
		MaxFinite: fp8.MaxFiniteE4M3FN, HasInfinity: false, InfinityIsNaN: true,
		Compute: dtypes.Float32,
	},
	dtypes.F8E5M2: {
		Atol: 0.25, Rtol: 0.1,
		MaxFinite: fp8.MaxFiniteE5M2, HasInfinity: true,
		Compute: dtypes.Float32,
	},
	dtypes.Int8: {
		Atol: 2, Rtol: 0,
		Compute: dtypes.Int32,
	},
	dtypes.Complex64: {
		Atol: 1e-4, Rtol: 0.1,
		MaxFinite: math.MaxFloat32, HasInfinity: true,
		Compute: dtypes.Float32,
	},
	dtypes.Complex128: {
		Atol: 1e-7, Rtol: 0.1,
		MaxFinite: math.MaxFloat64, HasInfinity: true,
		Compute: dtypes.Float64,
	},
}
