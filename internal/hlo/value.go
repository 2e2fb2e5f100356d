package hlo

import (
	"fmt"
	"io"

	"github.com/gomlx/buffercmp/types/shapes"
)

// Value represents a value in a StableHLO program, like `%0` or `%lhs`.
// Values are owned by the function (or closure) that created them.
type Value struct {
	fn    *Function
	name  string
	shape shapes.Shape
}

// Shape returns the shape of the value.
func (v *Value) Shape() shapes.Shape {
	return v.shape
}

// Write writes the value in StableHLO text format to the given writer.
func (v *Value) Write(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%%%s", v.name)
	return err
}

// String implements fmt.Stringer.
func (v *Value) String() string {
	return "%" + v.name
}
