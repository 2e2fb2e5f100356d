package buffercmp

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gomlx/buffercmp/internal/fp8"
	"github.com/gomlx/buffercmp/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func mustNew(t *testing.T, dtype dtypes.DType, dimensions ...int) *Comparator {
	t.Helper()
	c, err := New(shapes.Make(dtype, dimensions...))
	require.NoError(t, err)
	return c
}

// bfloat16Bits encodes a float32 as bfloat16 bits, round-to-nearest-even.
func bfloat16Bits(f float32) uint16 {
	if f != f {
		return 0x7fc0
	}
	b := math.Float32bits(f)
	return uint16((b + 0x7fff + ((b >> 16) & 1)) >> 16)
}

// encode packs values into the raw little-endian representation of the dtype.
func encode(t *testing.T, dtype dtypes.DType, values []float64) []byte {
	t.Helper()
	var buf []byte
	for _, v := range values {
		switch dtype {
		case dtypes.Int8:
			buf = append(buf, byte(int8(v)))
		case dtypes.F8E4M3FN:
			buf = append(buf, byte(fp8.E4M3FNFromFloat32(float32(v))))
		case dtypes.F8E5M2:
			buf = append(buf, byte(fp8.E5M2FromFloat32(float32(v))))
		case dtypes.Float16:
			buf = binary.LittleEndian.AppendUint16(buf, float16.Fromfloat32(float32(v)).Bits())
		case dtypes.BFloat16:
			buf = binary.LittleEndian.AppendUint16(buf, bfloat16Bits(float32(v)))
		case dtypes.Float32:
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v)))
		case dtypes.Float64:
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		default:
			t.Fatalf("encode does not support %s", dtype)
		}
	}
	return buf
}

// encodeComplex packs complex values as interleaved components.
func encodeComplex(t *testing.T, dtype dtypes.DType, values []complex128) []byte {
	t.Helper()
	components := make([]float64, 0, 2*len(values))
	for _, v := range values {
		components = append(components, real(v), imag(v))
	}
	switch dtype {
	case dtypes.Complex64:
		return encode(t, dtypes.Float32, components)
	case dtypes.Complex128:
		return encode(t, dtypes.Float64, components)
	}
	t.Fatalf("encodeComplex does not support %s", dtype)
	return nil
}

// compareHost runs CompareHost over encoded values and returns the verdict.
func compareHost(t *testing.T, c *Comparator, lhs, rhs []byte) bool {
	t.Helper()
	equal, _, err := c.CompareHost(lhs, rhs)
	require.NoError(t, err)
	return equal
}

var hostFloatDTypes = []dtypes.DType{
	dtypes.Float16, dtypes.BFloat16, dtypes.Float32, dtypes.Float64,
	dtypes.F8E4M3FN, dtypes.F8E5M2,
}

func TestNaNEqualsNaN(t *testing.T) {
	nan := math.NaN()
	for _, dtype := range hostFloatDTypes {
		t.Run(dtype.String(), func(t *testing.T) {
			c := mustNew(t, dtype, 2)
			lhs := encode(t, dtype, []float64{nan, 1})
			rhs := encode(t, dtype, []float64{nan, 1})
			assert.True(t, compareHost(t, c, lhs, rhs), "NaN should equal NaN")
			assert.True(t, compareHost(t, c, lhs, lhs), "buffer with NaNs should equal itself")

			rhs = encode(t, dtype, []float64{1, 1})
			assert.False(t, compareHost(t, c, lhs, rhs), "NaN should not equal a number")
			assert.False(t, compareHost(t, c, rhs, lhs), "a number should not equal NaN")
		})
	}
}

func TestNaNPayloadIndependence(t *testing.T) {
	// Same NaN class, different payload bits.
	payloads := map[dtypes.DType][2][]byte{
		dtypes.Float16:  {{0x00, 0x7e}, {0x01, 0x7e}},
		dtypes.BFloat16: {{0xc0, 0x7f}, {0xc1, 0x7f}},
		dtypes.Float32:  {{0x00, 0x00, 0xc0, 0x7f}, {0x34, 0x12, 0xc0, 0x7f}},
		dtypes.Float64:  {{0, 0, 0, 0, 0, 0, 0xf8, 0x7f}, {1, 0, 0, 0, 0, 0, 0xf8, 0x7f}},
		dtypes.F8E4M3FN: {{0x7f}, {0xff}}, // the sign bit is the only free bit of its NaN
		dtypes.F8E5M2:   {{0x7d}, {0x7f}},
	}
	for dtype, pair := range payloads {
		t.Run(dtype.String(), func(t *testing.T) {
			c := mustNew(t, dtype, 1)
			assert.True(t, compareHost(t, c, pair[0], pair[1]))
		})
	}
}

func TestInfinitySaturation(t *testing.T) {
	cases := []struct {
		dtype     dtypes.DType
		maxFinite float64
	}{
		{dtypes.Float16, 65504},
		{dtypes.BFloat16, 3.38953139e38},
		{dtypes.Float32, math.MaxFloat32},
		{dtypes.Float64, math.MaxFloat64},
		{dtypes.F8E5M2, 57344},
	}
	inf := math.Inf(1)
	for _, test := range cases {
		t.Run(test.dtype.String(), func(t *testing.T) {
			c := mustNew(t, test.dtype, 1)
			enc := func(v float64) []byte { return encode(t, test.dtype, []float64{v}) }

			assert.True(t, compareHost(t, c, enc(inf), enc(test.maxFinite)), "+Inf should equal the max finite magnitude")
			assert.True(t, compareHost(t, c, enc(-inf), enc(-test.maxFinite)), "-Inf should equal the min finite magnitude")
			assert.True(t, compareHost(t, c, enc(inf), enc(inf)))
			assert.False(t, compareHost(t, c, enc(inf), enc(-inf)), "opposite-signed infinities differ")
			assert.False(t, compareHost(t, c, enc(inf), enc(20)), "+Inf should not equal a small finite value")
			assert.False(t, compareHost(t, c, enc(inf), enc(math.NaN())))
		})
	}
}

func TestF8E4M3FNInfinityIsNaN(t *testing.T) {
	// The format has no Infinity: the host conversion saturates Inf to NaN, so
	// Inf compares equal to NaN (and to an opposite-signed Inf) for this kind only.
	c := mustNew(t, dtypes.F8E4M3FN, 1)
	inf := math.Inf(1)
	enc := func(v float64) []byte { return encode(t, dtypes.F8E4M3FN, []float64{v}) }

	assert.True(t, compareHost(t, c, enc(inf), enc(math.NaN())))
	assert.True(t, compareHost(t, c, enc(inf), enc(-inf)))
	assert.False(t, compareHost(t, c, enc(inf), enc(448)), "Inf saturates to NaN, not to the max finite")
	assert.True(t, compareHost(t, c, enc(448), enc(448)))
}

func TestToleranceScaling(t *testing.T) {
	for _, dtype := range []dtypes.DType{dtypes.Float16, dtypes.BFloat16, dtypes.Float32, dtypes.Float64} {
		t.Run(dtype.String(), func(t *testing.T) {
			c := mustNew(t, dtype, 1)
			enc := func(v float64) []byte { return encode(t, dtype, []float64{v}) }

			assert.True(t, compareHost(t, c, enc(20), enc(20.1)))
			assert.True(t, compareHost(t, c, enc(0.9), enc(1)))
			assert.True(t, compareHost(t, c, enc(9), enc(10)))
			assert.False(t, compareHost(t, c, enc(0), enc(1)))
		})
	}
}

func TestSixteenBitScenario(t *testing.T) {
	for _, dtype := range []dtypes.DType{dtypes.Float16, dtypes.BFloat16} {
		t.Run(dtype.String(), func(t *testing.T) {
			c := mustNew(t, dtype, 5)
			lhs := encode(t, dtype, []float64{20, 30, 40, 50, 60})
			rhs := encode(t, dtype, []float64{20.1, 30.1, 40.1, 50.1, 60.1})
			assert.True(t, compareHost(t, c, lhs, rhs))
		})
	}
}

func TestInt8Tolerance(t *testing.T) {
	c := mustNew(t, dtypes.Int8, 1)
	enc := func(v float64) []byte { return encode(t, dtypes.Int8, []float64{v}) }

	assert.True(t, compareHost(t, c, enc(100), enc(101)))
	assert.True(t, compareHost(t, c, enc(9), enc(10)))
	assert.False(t, compareHost(t, c, enc(0), enc(10)))
	// The difference is computed in wide integers: it exceeds the tolerance
	// instead of wrapping around.
	assert.False(t, compareHost(t, c, enc(-128), enc(127)))
}

func TestComplexComponentIndependence(t *testing.T) {
	for _, dtype := range []dtypes.DType{dtypes.Complex64, dtypes.Complex128} {
		t.Run(dtype.String(), func(t *testing.T) {
			c := mustNew(t, dtype, 1)
			lhs := encodeComplex(t, dtype, []complex128{complex(0.1, 0.2)})
			same := encodeComplex(t, dtype, []complex128{complex(0.1, 0.2)})
			assert.True(t, compareHost(t, c, lhs, same))

			rhs := encodeComplex(t, dtype, []complex128{complex(0.1, 6)})
			equal, mismatches, err := c.CompareHost(lhs, rhs)
			require.NoError(t, err)
			assert.False(t, equal, "matching real parts must not mask a mismatching imaginary part")
			require.Len(t, mismatches, 1)
			assert.Equal(t, 0, mismatches[0].Index)
			assert.Equal(t, "imag", mismatches[0].Component)
		})
	}
}

func TestMultiElementSensitivity(t *testing.T) {
	const n = 200
	c := mustNew(t, dtypes.Float32, n)
	base := make([]float64, n)
	for i := range base {
		base[i] = float64(i) * 0.5
	}
	lhs := encode(t, dtypes.Float32, base)
	require.True(t, compareHost(t, c, lhs, encode(t, dtypes.Float32, base)))

	for i := 0; i < n; i++ {
		perturbed := make([]float64, n)
		copy(perturbed, base)
		perturbed[i] = perturbed[i]*1.3 + 1 // beyond atol + rtol*max for any magnitude
		rhs := encode(t, dtypes.Float32, perturbed)

		equal, mismatches, err := c.CompareHost(lhs, rhs)
		require.NoError(t, err)
		require.False(t, equal, "perturbing element %d must flip the verdict", i)
		require.Len(t, mismatches, 1)
		assert.Equal(t, i, mismatches[0].Index)

		// Restoring the element flips it back.
		perturbed[i] = base[i]
		assert.True(t, compareHost(t, c, lhs, encode(t, dtypes.Float32, perturbed)))
	}
}

func TestOptions(t *testing.T) {
	t.Run("exact", func(t *testing.T) {
		c, err := New(shapes.Make(dtypes.Float32, 1), Exact())
		require.NoError(t, err)
		enc := func(v float64) []byte { return encode(t, dtypes.Float32, []float64{v}) }
		assert.True(t, compareHost(t, c, enc(20), enc(20)))
		assert.False(t, compareHost(t, c, enc(20), enc(20.1)))
		// The NaN and saturation rules still apply in exact mode.
		assert.True(t, compareHost(t, c, enc(math.NaN()), enc(math.NaN())))
		assert.True(t, compareHost(t, c, enc(math.Inf(1)), enc(math.MaxFloat32)))
	})

	t.Run("absolute tolerance", func(t *testing.T) {
		c, err := New(shapes.Make(dtypes.Float32, 1), WithAbsoluteTolerance(1), WithRelativeTolerance(0))
		require.NoError(t, err)
		enc := func(v float64) []byte { return encode(t, dtypes.Float32, []float64{v}) }
		assert.True(t, compareHost(t, c, enc(0), enc(1)))
		assert.False(t, compareHost(t, c, enc(0), enc(1.5)))
	})
}

func TestCompareHostErrors(t *testing.T) {
	c := mustNew(t, dtypes.Float32, 4)
	_, _, err := c.CompareHost(make([]byte, 16), make([]byte, 12))
	require.Error(t, err)
	var precondition *PreconditionError
	assert.ErrorAs(t, err, &precondition)
}
