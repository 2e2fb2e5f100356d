package hlo

import (
	"slices"

	"github.com/gomlx/buffercmp/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// addOp adds a new operation to the function.
func (fn *Function) addOp(opType OpType, outputShape shapes.Shape, inputs ...*Value) *Statement {
	stmt := &Statement{
		fn:      fn,
		OpType:  opType,
		Inputs:  inputs,
		Outputs: []*Value{fn.newValue(outputShape)},
	}
	fn.Statements = append(fn.Statements, stmt)
	return stmt
}

// opCheck validates that the function is still open and that all operands belong to it.
func (fn *Function) opCheck(op OpType, operands ...*Value) error {
	if fn.Returned {
		return errors.Errorf("cannot add operation %s after returning, in function %q",
			op, fn.Name)
	}
	for _, operand := range operands {
		if operand == nil {
			return errors.Errorf("cannot add operation %s to function %q with a nil operand (a previous operation failed?)",
				op, fn.Name)
		}
		if operand.fn != fn {
			return errors.Errorf("cannot add operation %s to function %q, because operand %s belongs to function %q",
				op, fn.Name, operand, operand.fn.Name)
		}
	}
	return nil
}

// binaryOp adds a new element-wise binary operation to the function.
// Both operands must have the same shape: there is no implicit broadcasting in
// StableHLO, use BroadcastInDim first.
func (fn *Function) binaryOp(op OpType, lhs, rhs *Value) (*Value, error) {
	if err := fn.opCheck(op, lhs, rhs); err != nil {
		return nil, err
	}
	if !lhs.shape.Equal(rhs.shape) {
		return nil, errors.Errorf("operation %s requires operands with the same shape, got %s and %s",
			op, lhs.shape, rhs.shape)
	}
	return fn.addOp(op, lhs.shape, lhs, rhs).Outputs[0], nil
}

// Add implements the corresponding element-wise binary operation.
func (fn *Function) Add(lhs, rhs *Value) (*Value, error) {
	return fn.binaryOp(Add, lhs, rhs)
}

// Subtract implements the corresponding element-wise binary operation.
func (fn *Function) Subtract(lhs, rhs *Value) (*Value, error) {
	return fn.binaryOp(Subtract, lhs, rhs)
}

// Multiply implements the corresponding element-wise binary operation.
func (fn *Function) Multiply(lhs, rhs *Value) (*Value, error) {
	return fn.binaryOp(Multiply, lhs, rhs)
}

// Maximum implements the corresponding element-wise binary operation.
func (fn *Function) Maximum(lhs, rhs *Value) (*Value, error) {
	return fn.binaryOp(Maximum, lhs, rhs)
}

// And implements the element-wise logical and. Operands must be booleans.
func (fn *Function) And(lhs, rhs *Value) (*Value, error) {
	if err := fn.opCheck(And, lhs, rhs); err != nil {
		return nil, err
	}
	if lhs.shape.DType != dtypes.Bool || rhs.shape.DType != dtypes.Bool {
		return nil, errors.Errorf("operation %s requires boolean operands, got %s and %s",
			And, lhs.shape, rhs.shape)
	}
	return fn.binaryOp(And, lhs, rhs)
}

// Or implements the element-wise logical or. Operands must be booleans.
func (fn *Function) Or(lhs, rhs *Value) (*Value, error) {
	if err := fn.opCheck(Or, lhs, rhs); err != nil {
		return nil, err
	}
	if lhs.shape.DType != dtypes.Bool || rhs.shape.DType != dtypes.Bool {
		return nil, errors.Errorf("operation %s requires boolean operands, got %s and %s",
			Or, lhs.shape, rhs.shape)
	}
	return fn.binaryOp(Or, lhs, rhs)
}

// Not implements the element-wise logical not. The operand must be boolean.
func (fn *Function) Not(x *Value) (*Value, error) {
	if err := fn.opCheck(Not, x); err != nil {
		return nil, err
	}
	if x.shape.DType != dtypes.Bool {
		return nil, errors.Errorf("operation %s requires a boolean operand, got %s", Not, x.shape)
	}
	return fn.addOp(Not, x.shape, x).Outputs[0], nil
}

// Abs implements the element-wise absolute value. The operand must be a float or
// signed integer (for complex values, compare Real and Imag components instead).
func (fn *Function) Abs(x *Value) (*Value, error) {
	if err := fn.opCheck(Abs, x); err != nil {
		return nil, err
	}
	dtype := x.shape.DType
	if !dtype.IsFloat() && !dtype.IsInt() {
		return nil, errors.Errorf("operation %s requires a float or integer operand, got %s", Abs, x.shape)
	}
	return fn.addOp(Abs, x.shape, x).Outputs[0], nil
}

// Sign implements the element-wise sign. Sign(NaN) is NaN.
func (fn *Function) Sign(x *Value) (*Value, error) {
	if err := fn.opCheck(Sign, x); err != nil {
		return nil, err
	}
	dtype := x.shape.DType
	if !dtype.IsFloat() && !dtype.IsInt() {
		return nil, errors.Errorf("operation %s requires a float or integer operand, got %s", Sign, x.shape)
	}
	return fn.addOp(Sign, x.shape, x).Outputs[0], nil
}

// IsFinite returns a boolean tensor indicating, element-wise, whether the operand
// is neither an infinity nor a NaN. The operand must be a float.
func (fn *Function) IsFinite(x *Value) (*Value, error) {
	if err := fn.opCheck(IsFinite, x); err != nil {
		return nil, err
	}
	if !x.shape.DType.IsFloat() {
		return nil, errors.Errorf("operation %s requires a float operand, got %s", IsFinite, x.shape)
	}
	return fn.addOp(IsFinite, shapes.Make(dtypes.Bool, x.shape.Dimensions...), x).Outputs[0], nil
}

// Convert implements the element-wise conversion to the given dtype.
func (fn *Function) Convert(x *Value, dtype dtypes.DType) (*Value, error) {
	if err := fn.opCheck(Convert, x); err != nil {
		return nil, err
	}
	if dtype == dtypes.InvalidDType {
		return nil, errors.Errorf("operation %s given an invalid target dtype", Convert)
	}
	return fn.addOp(Convert, shapes.Make(dtype, x.shape.Dimensions...), x).Outputs[0], nil
}

// Real returns the element-wise real component of a complex operand.
func (fn *Function) Real(x *Value) (*Value, error) {
	return fn.complexComponent(Real, x)
}

// Imag returns the element-wise imaginary component of a complex operand.
func (fn *Function) Imag(x *Value) (*Value, error) {
	return fn.complexComponent(Imag, x)
}

func (fn *Function) complexComponent(op OpType, x *Value) (*Value, error) {
	if err := fn.opCheck(op, x); err != nil {
		return nil, err
	}
	var component dtypes.DType
	switch x.shape.DType {
	case dtypes.Complex64:
		component = dtypes.Float32
	case dtypes.Complex128:
		component = dtypes.Float64
	default:
		return nil, errors.Errorf("operation %s requires a complex operand, got %s", op, x.shape)
	}
	return fn.addOp(op, shapes.Make(component, x.shape.Dimensions...), x).Outputs[0], nil
}

// Compare implements the corresponding element-wise comparison, returning a boolean
// tensor. The comparison direction and type are given as attributes.
//
// For boolean operands use CompareUnsigned.
func (fn *Function) Compare(lhs, rhs *Value, direction ComparisonDirection, compareType ComparisonType) (*Value, error) {
	op := Compare
	if err := fn.opCheck(op, lhs, rhs); err != nil {
		return nil, err
	}
	if !lhs.shape.Equal(rhs.shape) {
		return nil, errors.Errorf("operation %s requires operands with the same shape, got %s and %s",
			op, lhs.shape, rhs.shape)
	}
	stmt := fn.addOp(op, shapes.Make(dtypes.Bool, lhs.shape.Dimensions...), lhs, rhs)
	stmt.Attributes = map[string]any{
		"compare_type":         compareType,
		"comparison_direction": direction,
	}
	return stmt.Outputs[0], nil
}

// Select takes element-wise values from onTrue or onFalse depending on the value
// of pred.
//
// The pred must be boolean, either a scalar or with the same dimensions as onTrue
// and onFalse; onTrue and onFalse must have the same shape.
func (fn *Function) Select(pred, onTrue, onFalse *Value) (*Value, error) {
	op := Select
	if err := fn.opCheck(op, pred, onTrue, onFalse); err != nil {
		return nil, err
	}
	if pred.shape.DType != dtypes.Bool {
		return nil, errors.Errorf("operation %s requires a boolean predicate, got %s", op, pred.shape)
	}
	if !onTrue.shape.Equal(onFalse.shape) {
		return nil, errors.Errorf("operation %s requires branches with the same shape, got %s and %s",
			op, onTrue.shape, onFalse.shape)
	}
	if !pred.shape.IsScalar() && !slices.Equal(pred.shape.Dimensions, onTrue.shape.Dimensions) {
		return nil, errors.Errorf("operation %s predicate must be a scalar or match the branch dimensions, got pred=%s, branches=%s",
			op, pred.shape, onTrue.shape)
	}
	return fn.addOp(op, onTrue.shape, pred, onTrue, onFalse).Outputs[0], nil
}

// Reshape the operand to the given dimensions. The total size must match the
// operand's, and the dtype is unchanged. No data is moved.
func (fn *Function) Reshape(x *Value, dimensions ...int) (*Value, error) {
	op := Reshape
	if err := fn.opCheck(op, x); err != nil {
		return nil, err
	}
	shape := shapes.Make(x.shape.DType, dimensions...)
	if !shape.Ok() {
		return nil, errors.Errorf("operation %s given invalid dimensions %v", op, dimensions)
	}
	if shape.Size() != x.shape.Size() {
		return nil, errors.Errorf("operation %s requires the total size to be preserved, got operand=%s and target dimensions %v",
			op, x.shape, dimensions)
	}
	return fn.addOp(op, shape, x).Outputs[0], nil
}

// BroadcastInDim broadcasts dimensions from the operand to the target shape.
//
// axesMapping has one value per operand axis, mapping it to the corresponding
// axis of the target shape. A scalar operand takes an empty mapping.
func (fn *Function) BroadcastInDim(x *Value, target shapes.Shape, axesMapping []int) (*Value, error) {
	op := BroadcastInDim
	if err := fn.opCheck(op, x); err != nil {
		return nil, err
	}
	if target.DType != x.shape.DType {
		return nil, errors.Errorf("operation %s cannot change the dtype, got operand=%s and target=%s",
			op, x.shape, target)
	}
	if len(axesMapping) != x.shape.Rank() {
		return nil, errors.Errorf("operation %s requires one mapping per operand axis, got %d mappings for operand %s",
			op, len(axesMapping), x.shape)
	}
	for axis, targetAxis := range axesMapping {
		if targetAxis < 0 || targetAxis >= target.Rank() {
			return nil, errors.Errorf("operation %s axesMapping[%d]=%d out of range for target %s",
				op, axis, targetAxis, target)
		}
		if dim := x.shape.Dim(axis); dim != 1 && dim != target.Dim(targetAxis) {
			return nil, errors.Errorf("operation %s cannot broadcast axis %d (dimension %d) to target axis %d (dimension %d)",
				op, axis, dim, targetAxis, target.Dim(targetAxis))
		}
	}
	stmt := fn.addOp(op, target, x)
	stmt.Attributes = map[string]any{"broadcast_dimensions": intSliceToArrayI64(axesMapping)}
	return stmt.Outputs[0], nil
}

// Reduce reduces x along the given axes, combining elements with the reduction
// closure, starting from initialValue (e.g., 0 for a sum).
//
// The reduction closure must be created with Function.Closure, take two scalar
// inputs and return one scalar of the same dtype.
func (fn *Function) Reduce(x, initialValue *Value, reduction *Function, axes ...int) (*Value, error) {
	op := Reduce
	if err := fn.opCheck(op, x, initialValue); err != nil {
		return nil, err
	}
	if reduction.Parent != fn {
		return nil, errors.Errorf("cannot add operation %s because the reduction function is not a closure of %q",
			op, fn.Name)
	}
	if !reduction.Returned {
		return nil, errors.Errorf("cannot add operation %s because the reduction closure has no return statement", op)
	}
	if len(reduction.Inputs) != 2 || len(reduction.Outputs) != 1 {
		return nil, errors.Errorf("operation %s requires a closure with two inputs and one output, got %d inputs and %d outputs",
			op, len(reduction.Inputs), len(reduction.Outputs))
	}
	if !initialValue.shape.IsScalar() {
		return nil, errors.Errorf("operation %s requires a scalar initial value, got %s", op, initialValue.shape)
	}
	if len(axes) == 0 {
		return nil, errors.Errorf("operation %s requires at least one axis to reduce", op)
	}
	seen := make(map[int]bool, len(axes))
	for _, axis := range axes {
		if axis < 0 || axis >= x.shape.Rank() {
			return nil, errors.Errorf("operation %s axis %d out of range for operand %s", op, axis, x.shape)
		}
		if seen[axis] {
			return nil, errors.Errorf("operation %s given duplicate axis %d", op, axis)
		}
		seen[axis] = true
	}

	outputDType := reduction.Outputs[0].DType
	var outputDims []int
	for axis, dim := range x.shape.Dimensions {
		if !seen[axis] {
			outputDims = append(outputDims, dim)
		}
	}
	stmt := fn.addOp(op, shapes.Make(outputDType, outputDims...), x, initialValue)
	stmt.Attributes = map[string]any{"dimensions": intSliceToArrayI64(axes)}
	stmt.Region = reduction
	return stmt.Outputs[0], nil
}
