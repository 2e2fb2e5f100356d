package hlo

import (
	"fmt"

	"github.com/gomlx/buffercmp/internal/utils"
)

// OpType enumerates the operations the emitter knows how to render.
type OpType int

const (
	Invalid OpType = iota
	FuncReturn
	Constant

	Abs
	Add
	And
	BroadcastInDim
	Compare
	Convert
	Imag
	IsFinite
	Maximum
	Multiply
	Not
	Or
	Real
	Reduce
	Reshape
	Select
	Sign
	Subtract

	// Last is kept the last, it is used as a counter/marker.
	Last
)

var opTypeNames = [...]string{
	Invalid:        "Invalid",
	FuncReturn:     "FuncReturn",
	Constant:       "Constant",
	Abs:            "Abs",
	Add:            "Add",
	And:            "And",
	BroadcastInDim: "BroadcastInDim",
	Compare:        "Compare",
	Convert:        "Convert",
	Imag:           "Imag",
	IsFinite:       "IsFinite",
	Maximum:        "Maximum",
	Multiply:       "Multiply",
	Not:            "Not",
	Or:             "Or",
	Real:           "Real",
	Reduce:         "Reduce",
	Reshape:        "Reshape",
	Select:         "Select",
	Sign:           "Sign",
	Subtract:       "Subtract",
	Last:           "Last",
}

// String implements fmt.Stringer.
func (op OpType) String() string {
	if op < 0 || int(op) >= len(opTypeNames) {
		return fmt.Sprintf("OpType(%d)", int(op))
	}
	return opTypeNames[op]
}

// ToStableHLO returns the StableHLO name of the operation.
// Most names are the snake-case version of the OpType name; func.return is the exception.
func (op OpType) ToStableHLO() string {
	if op == FuncReturn {
		return "func.return"
	}
	return fmt.Sprintf("stablehlo.%s", utils.ToSnakeCase(op.String()))
}

// ComparisonType enum defined for the Compare op.
type ComparisonType int

const (
	// CompareFloat is used for floating point comparisons.
	CompareFloat ComparisonType = iota

	// CompareTotalOrder version of the operation enforces `-NaN < -Inf < -Finite < -0 < +0 < +Finite < +Inf < +NaN`.
	CompareTotalOrder

	CompareSigned
	CompareUnsigned
)

// ToStableHLO returns the StableHLO representation of the comparison type.
func (c ComparisonType) ToStableHLO() string {
	switch c {
	case CompareFloat:
		return "#stablehlo<comparison_type FLOAT>"
	case CompareTotalOrder:
		return "#stablehlo<comparison_type TOTALORDER>"
	case CompareSigned:
		return "#stablehlo<comparison_type SIGNED>"
	case CompareUnsigned:
		return "#stablehlo<comparison_type UNSIGNED>"
	}
	return fmt.Sprintf("#stablehlo<comparison_type UNKNOWN %d>", c)
}

// ComparisonDirection enum defined for the Compare op.
type ComparisonDirection int

const (
	CompareEQ ComparisonDirection = iota
	CompareGE
	CompareGT
	CompareLE
	CompareLT
	CompareNE
)

// ToStableHLO returns the StableHLO representation of the comparison direction.
func (c ComparisonDirection) ToStableHLO() string {
	switch c {
	case CompareEQ:
		return "#stablehlo<comparison_direction EQ>"
	case CompareGE:
		return "#stablehlo<comparison_direction GE>"
	case CompareGT:
		return "#stablehlo<comparison_direction GT>"
	case CompareLE:
		return "#stablehlo<comparison_direction LE>"
	case CompareLT:
		return "#stablehlo<comparison_direction LT>"
	case CompareNE:
		return "#stablehlo<comparison_direction NE>"
	}
	return fmt.Sprintf("#stablehlo<comparison_direction UNKNOWN %d>", c)
}
