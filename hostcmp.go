package buffercmp

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gomlx/buffercmp/internal/fp8"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/x448/float16"
)

// Mismatch reports one element pair that failed the comparison, with the values
// lifted to float64. For complex buffers, Component names the failing component.
type Mismatch struct {
	// Index is the flat element index in the buffer.
	Index int

	// Component is "" for real buffers, "real" or "imag" for complex ones.
	Component string

	// Lhs and Rhs are the decoded values of the pair.
	Lhs, Rhs float64
}

// String implements fmt.Stringer.
func (m Mismatch) String() string {
	if m.Component == "" {
		return fmt.Sprintf("index %d", m.Index)
	}
	return fmt.Sprintf("index %d (%s)", m.Index, m.Component)
}

// CompareHost evaluates the comparison on host over the raw (little-endian,
// row-major) bytes of the two buffers, mirroring the device kernel's rules.
// It returns the verdict and the list of mismatching elements.
//
// It is used to report individual mismatches after a device comparison failed,
// and works as an independent oracle for the device kernel.
func (c *Comparator) CompareHost(lhsRaw, rhsRaw []byte) (bool, []Mismatch, error) {
	want := int(c.shape.Memory())
	if len(lhsRaw) != want || len(rhsRaw) != want {
		return false, nil, preconditionErrorf("CompareHost requires %d bytes per buffer for shape %s, got %d and %d",
			want, c.shape, len(lhsRaw), len(rhsRaw))
	}
	lhs, err := decodeBuffer(c.shape.DType, lhsRaw)
	if err != nil {
		return false, nil, err
	}
	rhs, err := decodeBuffer(c.shape.DType, rhsRaw)
	if err != nil {
		return false, nil, err
	}

	var mismatches []Mismatch
	if c.shape.DType.IsComplex() {
		// decodeBuffer returns interleaved (real, imag) components.
		components := [2]string{"real", "imag"}
		for i := 0; i < len(lhs); i += 2 {
			for k := 0; k < 2; k++ {
				if !scalarsClose(c.params, lhs[i+k], rhs[i+k]) {
					mismatches = append(mismatches, Mismatch{
						Index: i / 2, Component: components[k],
						Lhs: lhs[i+k], Rhs: rhs[i+k],
					})
				}
			}
		}
	} else {
		for i := range lhs {
			if !scalarsClose(c.params, lhs[i], rhs[i]) {
				mismatches = append(mismatches, Mismatch{Index: i, Lhs: lhs[i], Rhs: rhs[i]})
			}
		}
	}
	return len(mismatches) == 0, mismatches, nil
}

// scalarsClose is the host mirror of the device per-element policy.
func scalarsClose(p typeParams, a, b float64) bool {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	if aNaN || bNaN {
		return aNaN && bNaN
	}
	if p.HasInfinity {
		a = saturate(p, a)
		b = saturate(p, b)
	}
	return math.Abs(a-b) <= p.Atol+p.Rtol*math.Max(math.Abs(a), math.Abs(b))
}

// saturate canonicalizes an Infinity to the signed max finite magnitude.
func saturate(p typeParams, x float64) float64 {
	if math.IsInf(x, 0) {
		return math.Copysign(p.MaxFinite, x)
	}
	return x
}

// decodeBuffer lifts the raw buffer bytes to float64 values. Complex buffers
// decode to interleaved (real, imag) components, twice the element count.
func decodeBuffer(dtype dtypes.DType, raw []byte) ([]float64, error) {
	switch dtype {
	case dtypes.Int8:
		out := make([]float64, len(raw))
		for i, b := range raw {
			out[i] = float64(int8(b))
		}
		return out, nil
	case dtypes.F8E4M3FN:
		out := make([]float64, len(raw))
		for i, b := range raw {
			out[i] = float64(fp8.E4M3FN(b).Float32())
		}
		return out, nil
	case dtypes.F8E5M2:
		out := make([]float64, len(raw))
		for i, b := range raw {
			out[i] = float64(fp8.E5M2(b).Float32())
		}
		return out, nil
	case dtypes.Float16:
		out := make([]float64, len(raw)/2)
		for i := range out {
			bits := binary.LittleEndian.Uint16(raw[2*i:])
			out[i] = float64(float16.Frombits(bits).Float32())
		}
		return out, nil
	case dtypes.BFloat16:
		out := make([]float64, len(raw)/2)
		for i := range out {
			bits := binary.LittleEndian.Uint16(raw[2*i:])
			out[i] = float64(math.Float32frombits(uint32(bits) << 16))
		}
		return out, nil
	case dtypes.Float32:
		out := make([]float64, len(raw)/4)
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:])))
		}
		return out, nil
	case dtypes.Float64:
		out := make([]float64, len(raw)/8)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
		}
		return out, nil
	case dtypes.Complex64:
		return decodeBuffer(dtypes.Float32, raw)
	case dtypes.Complex128:
		return decodeBuffer(dtypes.Float64, raw)
	}
	return nil, preconditionErrorf("unsupported element type %s", dtype)
}
