// Package shapes defines the Shape type, the combination of an element type
// (a dtypes.DType from gopjrt) and the dimensions of a tensor.
//
// A Shape describes both device-resident buffers (pjrt.Buffer) and the values
// of a comparison program under construction.
//
// Go float16 support uses the github.com/x448/float16 implementation, and
// bfloat16 uses the simple implementation in github.com/gomlx/gopjrt/dtypes/bfloat16.
package shapes

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Shape represents the shape of a tensor: its element type (DType) and its
// dimensions. A rank-0 shape (no dimensions) is a scalar.
//
// Use Make to create a new Shape.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
}

// Make returns a Shape with the given element type and dimensions.
// All dimensions must be > 0, otherwise the returned shape is invalid.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{DType: dtype, Dimensions: slices.Clone(dimensions)}
	for _, dim := range dimensions {
		if dim <= 0 {
			return Invalid()
		}
	}
	return s
}

// Invalid returns an invalid shape: Invalid().Ok() == false.
func Invalid() Shape { return Shape{DType: dtypes.InvalidDType} }

// Ok returns whether this is a valid Shape. The zero value of Shape is invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank returns the number of axes of the shape. Scalars have rank 0.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape is valid and has rank 0.
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// Dim returns the dimension of the given axis. A negative axis counts from
// the end, so Dim(-1) is the dimension of the last axis.
// It panics if axis is out of range.
func (s Shape) Dim(axis int) int {
	adjusted := axis
	if adjusted < 0 {
		adjusted += s.Rank()
	}
	if adjusted < 0 || adjusted >= s.Rank() {
		panic(errors.Errorf("shape %s has no axis %d", s, axis))
	}
	return s.Dimensions[adjusted]
}

// Size returns the total number of elements of the shape.
// Scalars have size 1.
func (s Shape) Size() int {
	size := 1
	for _, dim := range s.Dimensions {
		size *= dim
	}
	return size
}

// Memory returns the number of bytes needed to store the shape's data.
func (s Shape) Memory() uintptr {
	return uintptr(s.DType.Size()) * uintptr(s.Size())
}

// Equal compares DType and dimensions.
func (s Shape) Equal(s2 Shape) bool {
	return s.DType == s2.DType && slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() Shape {
	return Shape{DType: s.DType, Dimensions: slices.Clone(s.Dimensions)}
}

// Check returns an error if the shape doesn't have the given dtype and dimensions.
func (s Shape) Check(dtype dtypes.DType, dimensions ...int) error {
	if !s.Equal(Make(dtype, dimensions...)) {
		return errors.Errorf("shape %s doesn't match expected %s", s, Make(dtype, dimensions...))
	}
	return nil
}

// String implements fmt.Stringer.
func (s Shape) String() string {
	if !s.Ok() {
		return "(invalid shape)"
	}
	if s.IsScalar() {
		return fmt.Sprintf("(%s)", s.DType)
	}
	return fmt.Sprintf("(%s)%v", s.DType, s.Dimensions)
}

// ToStableHLO returns the StableHLO tensor type for the shape,
// e.g. "tensor<4x3xf32>" or "tensor<f64>" for a scalar.
func (s Shape) ToStableHLO() string {
	var sb strings.Builder
	sb.WriteString("tensor<")
	for _, dim := range s.Dimensions {
		fmt.Fprintf(&sb, "%dx", dim)
	}
	sb.WriteString(dtypeToStableHLO(s.DType))
	sb.WriteString(">")
	return sb.String()
}

// dtypeToStableHLO maps the supported dtypes to their StableHLO type names.
func dtypeToStableHLO(dtype dtypes.DType) string {
	switch dtype {
	case dtypes.F64:
		return "f64"
	case dtypes.F32:
		return "f32"
	case dtypes.F16:
		return "f16"
	case dtypes.BFloat16:
		return "bf16"
	case dtypes.F8E4M3FN:
		return "f8E4M3FN"
	case dtypes.F8E5M2:
		return "f8E5M2"
	case dtypes.S64:
		return "i64"
	case dtypes.S32:
		return "i32"
	case dtypes.S16:
		return "i16"
	case dtypes.S8:
		return "i8"
	case dtypes.U64:
		return "ui64"
	case dtypes.U32:
		return "ui32"
	case dtypes.U16:
		return "ui16"
	case dtypes.U8:
		return "ui8"
	case dtypes.Bool:
		return "i1"
	case dtypes.Complex64:
		return "complex<f32>"
	case dtypes.Complex128:
		return "complex<f64>"
	default:
		return fmt.Sprintf("unknown_dtype<%s>", dtype.String())
	}
}
