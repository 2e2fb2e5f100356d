package hlo

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gomlx/buffercmp/internal/utils"
	"github.com/gomlx/buffercmp/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Function represents a `func.func` in a StableHLO program, or a closure used
// as the region of an operation like reduce.
type Function struct {
	Builder *Builder

	// Name of the function. It should not include the "@" prefix.
	Name string

	// Inputs to the function.
	Inputs []*Value

	// Outputs types of the function.
	Outputs []shapes.Shape

	// Statements in the function body.
	Statements []*Statement

	// values holds all the values (e.g., %0, %lhs) created in the function's scope.
	values []*Value

	// Parent is only set if the function is a closure, and it's the function that created it.
	Parent *Function

	// nextArgID is the next ID to be assigned to new input arguments.
	nextArgID int

	// nextTmpID is the next ID to be assigned to new intermediary values.
	nextTmpID int

	// nextClosureID is the next ID to be assigned to new closures.
	nextClosureID int

	// Returned indicates if the function has a return statement, so it can no longer be changed.
	Returned bool
}

// findRootFn returns the root function of a function tree.
// Closures are never more than one level deep, but this would work for more.
func (fn *Function) findRootFn() *Function {
	rootFn := fn
	for rootFn.Parent != nil {
		rootFn = rootFn.Parent
	}
	return rootFn
}

// newValue creates a new value with the given shape and assigns it the next available id.
// Ids are taken from the root function, so values in closure regions never collide
// with values of the enclosing function.
func (fn *Function) newValue(shape shapes.Shape) (v *Value) {
	rootFn := fn.findRootFn()
	v = &Value{
		fn:    fn,
		name:  strconv.Itoa(rootFn.nextTmpID),
		shape: shape,
	}
	rootFn.nextTmpID++
	fn.values = append(fn.values, v)
	return v
}

// Input creates a new input parameter for a function.
//
// The order matters: during execution of a compiled program, the input buffers must be
// given in the same order the inputs were created.
//
// It picks a default unique name for the input parameter; you can also
// provide a name with NamedInput.
func (fn *Function) Input(shape shapes.Shape) *Value {
	rootFn := fn.findRootFn()
	value := fn.NamedInput(fmt.Sprintf("arg%d", rootFn.nextArgID), shape)
	rootFn.nextArgID++
	return value
}

// NamedInput creates a new input parameter for a function with the given name -- it
// must be a unique input name.
//
// The name is normalized: any character that is not a digit, ASCII letter or underscore
// is replaced with an underscore.
func (fn *Function) NamedInput(name string, shape shapes.Shape) *Value {
	value := &Value{
		fn:    fn,
		name:  utils.NormalizeIdentifier(name),
		shape: shape,
	}
	fn.Inputs = append(fn.Inputs, value)
	fn.values = append(fn.values, value)
	return value
}

// Constant creates a new scalar constant statement and returns the resulting value.
// The dtype of the constant is inferred from the Go type of value.
func (fn *Function) Constant(value any) (*Value, error) {
	if fn.Returned {
		return nil, errors.Errorf("cannot add operation %s after returning, in function %q", Constant, fn.Name)
	}
	dtype := dtypes.FromAny(value)
	if dtype == dtypes.InvalidDType {
		return nil, errors.Errorf("unsupported constant value type %T", value)
	}
	shape := shapes.Make(dtype)
	rendered, err := scalarToDense(value)
	if err != nil {
		return nil, err
	}
	c := &Statement{
		fn:     fn,
		OpType: Constant,
		Attributes: map[string]any{
			"value": literalStrF("dense<%s> : %s", rendered, shape.ToStableHLO()),
		},
		Outputs: []*Value{fn.newValue(shape)},
	}
	fn.Statements = append(fn.Statements, c)
	return c.Outputs[0], nil
}

// scalarToDense renders a scalar Go value the way it appears inside a dense<> literal.
func scalarToDense(value any) (string, error) {
	switch v := value.(type) {
	case float32:
		return formatFloat(float64(v), 32), nil
	case float64:
		return formatFloat(v, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	return "", errors.Errorf("unsupported constant value type %T", value)
}

// Return adds a return statement to the function with the given return values.
// There must be at least one return value.
//
// There can be only one return statement from a Function, and it must be the last
// operation of a function.
func (fn *Function) Return(firstValue *Value, otherValues ...*Value) error {
	if fn.Returned {
		return errors.Errorf("Function.Return already called for %q", fn.Name)
	}
	fn.Returned = true
	allValues := make([]*Value, 1, len(otherValues)+1)
	allValues[0] = firstValue
	allValues = append(allValues, otherValues...)
	outputShapes := make([]shapes.Shape, len(allValues))
	for i, value := range allValues {
		if value == nil {
			return errors.New("Function.Return given a nil value (a previous operation failed?)")
		}
		if value.fn != fn {
			return errors.New("Function.Return given values that are not owned by the function")
		}
		outputShapes[i] = value.shape
	}
	fn.Outputs = outputShapes

	stmt := &Statement{
		fn:     fn,
		OpType: FuncReturn,
		Inputs: allValues,
	}
	fn.Statements = append(fn.Statements, stmt)
	return nil
}

// Closure creates an unnamed closure function that can be used as the region of
// operations like Reduce.
//
// Once used by an operation, the closure should not be changed. It can be used
// multiple times within the same parent function.
//
// The closure body is defined by calling ops on the returned object, as with a
// usual Function.
func (fn *Function) Closure() *Function {
	rootFn := fn.findRootFn()

	// The name never shows up in the StableHLO code (closures are rendered inline
	// as regions), it's just for debugging purposes.
	name := fmt.Sprintf("closure%d", rootFn.nextClosureID)
	rootFn.nextClosureID++
	closureFn := fn.Builder.NewFunction(name)
	closureFn.Parent = fn
	return closureFn
}

// Write the function as StableHLO code, with the given indentation.
// Only top-level functions are written this way; closures are rendered inline by
// the statement that uses them.
func (fn *Function) Write(writer io.Writer, indentation string) error {
	var err error
	w := func(format string, args ...any) {
		if err != nil {
			// No op if an error was encountered earlier
			return
		}
		_, err = fmt.Fprintf(writer, format, args...)
	}
	nextIndent := indentation + IndentationStep

	w("%sfunc.func @%s(", indentation, fn.Name)
	for i, input := range fn.Inputs {
		if i > 0 {
			w(", ")
		}
		if err == nil {
			err = input.Write(writer)
		}
		w(": %s", input.shape.ToStableHLO())
	}
	w(") -> ")
	if len(fn.Outputs) > 1 {
		w("(")
	}
	for i, output := range fn.Outputs {
		if i > 0 {
			w(", ")
		}
		w("%s", output.ToStableHLO())
	}
	if len(fn.Outputs) > 1 {
		w(")")
	}
	w(" {\n")

	for _, stmt := range fn.Statements {
		if err != nil {
			return err
		}
		err = stmt.Write(writer, nextIndent)
		w("\n")
	}

	w("%s}", indentation)
	return err
}
