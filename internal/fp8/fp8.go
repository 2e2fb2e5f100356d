// Package fp8 implements host-side conversions for the two 8-bit float formats
// accelerators use: F8E4M3FN (4 exponent bits, 3 mantissa bits, finite-only:
// the format has no Infinity, its would-be Infinity bit pattern is its NaN) and
// F8E5M2 (5 exponent bits, 2 mantissa bits, with Infinity, a truncated IEEE
// half-precision).
//
// Conversions from float32 round to nearest, ties to even. Values that overflow
// F8E4M3FN (including ±Inf) become NaN; values that overflow F8E5M2 become ±Inf.
package fp8

import "math"

// E4M3FN is a float8 with a 4-bit exponent (bias 7) and 3-bit mantissa, no Infinity.
type E4M3FN uint8

// E5M2 is a float8 with a 5-bit exponent (bias 15) and 2-bit mantissa.
type E5M2 uint8

const (
	e4m3NaN  = 0x7f // S.1111.111
	e5m2Inf  = 0x7c // S.11111.00
	e5m2NaN  = 0x7e // S.11111.10, canonical quiet NaN
	signMask = 0x80
)

// e4m3Values[i] is the magnitude encoded by the positive bit pattern i.
// Index 0x7f is the would-be next value after the max finite (448): rounding
// that selects it means overflow, which saturates to NaN.
var e4m3Values = buildTable(4, 3, 7, 0x80)

// e5m2Values stops at 0x7c, the Infinity pattern, kept as the would-be next
// value after the max finite (57344): rounding that selects it means overflow
// to Infinity.
var e5m2Values = buildTable(5, 2, 15, 0x7d)

func buildTable(expBits, mantBits uint, bias int, size int) []float64 {
	values := make([]float64, size)
	mantDiv := float64(int(1) << mantBits)
	for i := range values {
		exp := (i >> mantBits) & ((1 << expBits) - 1)
		mant := i & ((1 << mantBits) - 1)
		if exp == 0 {
			// Subnormal.
			values[i] = float64(mant) / mantDiv * math.Pow(2, float64(1-bias))
		} else {
			values[i] = (1 + float64(mant)/mantDiv) * math.Pow(2, float64(exp-bias))
		}
	}
	return values
}

// roundToNearest returns the index of the table value nearest to the magnitude,
// ties going to the even bit pattern.
func roundToNearest(values []float64, magnitude float64) int {
	if magnitude >= values[len(values)-1] {
		return len(values) - 1
	}
	// Binary search for the first value > magnitude.
	lo, hi := 0, len(values)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if values[mid] <= magnitude {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	below, above := lo-1, lo
	dBelow, dAbove := magnitude-values[below], values[above]-magnitude
	switch {
	case dBelow < dAbove:
		return below
	case dAbove < dBelow:
		return above
	case below%2 == 0:
		return below
	default:
		return above
	}
}

// E4M3FNFromFloat32 converts a float32 to the nearest E4M3FN value.
// NaN, ±Inf and overflowing magnitudes all map to NaN, the format's only
// non-finite encoding.
func E4M3FNFromFloat32(f float32) E4M3FN {
	sign := uint8(0)
	if math.Signbit(float64(f)) {
		sign = signMask
	}
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return E4M3FN(sign | e4m3NaN)
	}
	i := roundToNearest(e4m3Values, math.Abs(float64(f)))
	if i == e4m3NaN {
		// Overflow saturates to NaN: there is no Infinity to overflow to.
		return E4M3FN(sign | e4m3NaN)
	}
	return E4M3FN(sign | uint8(i))
}

// Float32 converts back to float32. The NaN pattern yields a float32 NaN.
func (v E4M3FN) Float32() float32 {
	magnitude := v & 0x7f
	var f float64
	if magnitude == e4m3NaN {
		f = math.NaN()
	} else {
		f = e4m3Values[magnitude]
	}
	if v&signMask != 0 {
		f = -f
	}
	return float32(f)
}

// IsNaN reports whether the value is the format's NaN pattern.
func (v E4M3FN) IsNaN() bool {
	return v&0x7f == e4m3NaN
}

// E5M2FromFloat32 converts a float32 to the nearest E5M2 value.
// Overflowing magnitudes become ±Inf; NaN stays NaN.
func E5M2FromFloat32(f float32) E5M2 {
	sign := uint8(0)
	if math.Signbit(float64(f)) {
		sign = signMask
	}
	if math.IsNaN(float64(f)) {
		return E5M2(sign | e5m2NaN)
	}
	if math.IsInf(float64(f), 0) {
		return E5M2(sign | e5m2Inf)
	}
	i := roundToNearest(e5m2Values, math.Abs(float64(f)))
	return E5M2(sign | uint8(i))
}

// Float32 converts back to float32.
func (v E5M2) Float32() float32 {
	magnitude := v & 0x7f
	var f float64
	switch {
	case magnitude == e5m2Inf:
		f = math.Inf(1)
	case magnitude > e5m2Inf:
		f = math.NaN()
	default:
		f = e5m2Values[magnitude]
	}
	if v&signMask != 0 {
		f = -f
	}
	return float32(f)
}

// IsNaN reports whether the value is one of the format's NaN patterns.
func (v E5M2) IsNaN() bool {
	return v&0x7f > e5m2Inf
}

// IsInf reports whether the value is ±Inf.
func (v E5M2) IsInf() bool {
	return v&0x7f == e5m2Inf
}

// MaxFiniteE4M3FN and MaxFiniteE5M2 are the largest finite magnitudes of each format.
const (
	MaxFiniteE4M3FN = 448
	MaxFiniteE5M2   = 57344
)
