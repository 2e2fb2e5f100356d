package hlo

import (
	"fmt"
	"testing"

	"github.com/gomlx/buffercmp/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func must[T any](value T, err error) T {
	if err != nil {
		panic(err)
	}
	return value
}

func TestBuilder(t *testing.T) {
	t.Run("no inputs", func(t *testing.T) {
		b := New(t.Name())
		fn := b.Main()
		c1 := must(fn.Constant(1.0))
		c2 := must(fn.Constant(2.0))
		sum := must(fn.Add(c1, c2))
		require.NoError(t, fn.Return(sum))
		program := string(must(b.Build()))
		fmt.Printf("%s program:\n%s", t.Name(), program)
		assert.Contains(t, program,
			`func.func @main() -> tensor<f64> {
  %0 = "stablehlo.constant"() {value = dense<1.0> : tensor<f64>} : () -> tensor<f64>
  %1 = "stablehlo.constant"() {value = dense<2.0> : tensor<f64>} : () -> tensor<f64>
  %2 = "stablehlo.add"(%0, %1) : (tensor<f64>, tensor<f64>) -> tensor<f64>
  "func.return"(%2) : (tensor<f64>) -> ()
}`)
	})

	t.Run("with inputs", func(t *testing.T) {
		b := New(t.Name())
		fn := b.Main()
		shape := shapes.Make(dtypes.Float64, 3)
		lhs := fn.NamedInput("lhs", shape)
		rhs := fn.NamedInput("rhs", shape)
		diff := must(fn.Subtract(lhs, rhs))
		require.NoError(t, fn.Return(diff))
		program := string(must(b.Build()))
		fmt.Printf("%s program:\n%s", t.Name(), program)
		assert.Contains(t, program,
			`func.func @main(%lhs: tensor<3xf64>, %rhs: tensor<3xf64>) -> tensor<3xf64> {
  %0 = "stablehlo.subtract"(%lhs, %rhs) : (tensor<3xf64>, tensor<3xf64>) -> tensor<3xf64>
  "func.return"(%0) : (tensor<3xf64>) -> ()
}`)
	})
}

func TestCompareSelectBroadcast(t *testing.T) {
	b := New(t.Name())
	fn := b.Main()
	shape := shapes.Make(dtypes.Float32, 4)
	lhs := fn.NamedInput("lhs", shape)
	rhs := fn.NamedInput("rhs", shape)
	diff := must(fn.Subtract(lhs, rhs))
	absDiff := must(fn.Abs(diff))
	atol := must(fn.Constant(float32(0.5)))
	atolB := must(fn.BroadcastInDim(atol, shape, nil))
	close := must(fn.Compare(absDiff, atolB, CompareLE, CompareFloat))
	picked := must(fn.Select(close, lhs, rhs))
	require.NoError(t, fn.Return(picked))
	program := string(must(b.Build()))
	fmt.Printf("%s program:\n%s", t.Name(), program)
	assert.Contains(t, program,
		`%2 = "stablehlo.constant"() {value = dense<0.5> : tensor<f32>} : () -> tensor<f32>`)
	assert.Contains(t, program,
		`%3 = "stablehlo.broadcast_in_dim"(%2) {broadcast_dimensions = array<i64>} : (tensor<f32>) -> tensor<4xf32>`)
	assert.Contains(t, program,
		`%4 = "stablehlo.compare"(%1, %3) {compare_type = #stablehlo<comparison_type FLOAT>, comparison_direction = #stablehlo<comparison_direction LE>} : (tensor<4xf32>, tensor<4xf32>) -> tensor<4xi1>`)
	assert.Contains(t, program,
		`%5 = "stablehlo.select"(%4, %lhs, %rhs) : (tensor<4xi1>, tensor<4xf32>, tensor<4xf32>) -> tensor<4xf32>`)
}

func TestReduceWithClosure(t *testing.T) {
	b := New(t.Name())
	fn := b.Main()
	shape := shapes.Make(dtypes.Bool, 4)
	mask := fn.NamedInput("mask", shape)
	counts := must(fn.Convert(mask, dtypes.Int32))
	zero := must(fn.Constant(int32(0)))

	reduction := fn.Closure()
	acc := reduction.NamedInput("acc", shapes.Make(dtypes.Int32))
	x := reduction.NamedInput("x", shapes.Make(dtypes.Int32))
	sum := must(reduction.Add(acc, x))
	require.NoError(t, reduction.Return(sum))

	total := must(fn.Reduce(counts, zero, reduction, 0))
	require.NoError(t, fn.Return(total))
	program := string(must(b.Build()))
	fmt.Printf("%s program:\n%s", t.Name(), program)
	assert.Contains(t, program,
		`  %3 = "stablehlo.reduce"(%0, %1) ({
  ^bb0(%acc: tensor<i32>, %x: tensor<i32>):
    %2 = "stablehlo.add"(%acc, %x) : (tensor<i32>, tensor<i32>) -> tensor<i32>
    "stablehlo.return"(%2) : (tensor<i32>) -> ()
  }) {dimensions = array<i64: 0>} : (tensor<4xi32>, tensor<i32>) -> tensor<i32>`)
}

func TestBuilderErrors(t *testing.T) {
	t.Run("no main", func(t *testing.T) {
		b := New("test_program")
		fn := b.NewFunction("not_main")
		c1 := must(fn.Constant(1.0))
		require.NoError(t, fn.Return(c1))
		_, err := b.Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "program must have a main function")
	})

	t.Run("op after return", func(t *testing.T) {
		b := New("test_program")
		fn := b.Main()
		c1 := must(fn.Constant(1.0))
		require.NoError(t, fn.Return(c1))
		_, err := fn.Add(c1, c1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after returning")
	})

	t.Run("shape mismatch", func(t *testing.T) {
		b := New("test_program")
		fn := b.Main()
		lhs := fn.NamedInput("lhs", shapes.Make(dtypes.Float32, 2))
		rhs := fn.NamedInput("rhs", shapes.Make(dtypes.Float32, 3))
		_, err := fn.Add(lhs, rhs)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "same shape")
	})

	t.Run("operand from another function", func(t *testing.T) {
		b := New("test_program")
		fn1 := b.Main()
		other := b.NewFunction("other")
		c1 := must(fn1.Constant(1.0))
		c2 := must(other.Constant(2.0))
		_, err := fn1.Add(c1, c2)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "belongs to function")
	})
}
