package hlo

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Statement represents a single operation line in a StableHLO function body.
type Statement struct {
	fn *Function

	// OpType is the type of the operation.
	OpType OpType

	// Inputs to the operation.
	Inputs []*Value

	// Attributes of the operation.
	Attributes map[string]any

	// Outputs of the operation. It may be nil for operations like func.return.
	Outputs []*Value

	// Region is the closure rendered inline as the operation's region (e.g., the
	// reduction function of a stablehlo.reduce). Nil for ordinary operations.
	Region *Function
}

// opName returns the rendered operation name. Return statements inside a closure
// region must use stablehlo.return instead of func.return.
func (s *Statement) opName() string {
	if s.OpType == FuncReturn && s.fn.Parent != nil {
		return "stablehlo.return"
	}
	return s.OpType.ToStableHLO()
}

// Write writes a string representation of the statement to the given writer.
func (s *Statement) Write(writer io.Writer, indentation string) error {
	var err error
	w := func(format string, args ...any) {
		if err != nil {
			// No op if an error was encountered earlier
			return
		}
		_, err = fmt.Fprintf(writer, format, args...)
	}
	we := func(v *Value) {
		if err != nil {
			// No op if an error was encountered earlier
			return
		}
		err = v.Write(writer)
	}

	// Output values are written first:
	w("%s", indentation)
	if len(s.Outputs) > 0 {
		for i, output := range s.Outputs {
			if i > 0 {
				w(", ")
			}
			we(output)
		}
		w(" = ")
	}

	// Write op name and arguments:
	w("%q(", s.opName())
	for i, input := range s.Inputs {
		if i > 0 {
			w(", ")
		}
		we(input)
	}
	w(")")

	// Write the region (closure body), if any:
	if s.Region != nil {
		w(" ({\n%s^bb0(", indentation)
		for i, input := range s.Region.Inputs {
			if i > 0 {
				w(", ")
			}
			we(input)
			w(": %s", input.shape.ToStableHLO())
		}
		w("):\n")
		for _, stmt := range s.Region.Statements {
			if err != nil {
				return err
			}
			err = stmt.Write(writer, indentation+IndentationStep)
			w("\n")
		}
		w("%s})", indentation)
	}

	// Write attributes, in deterministic (sorted) order:
	if len(s.Attributes) > 0 {
		w(" {")
		keys := make([]string, 0, len(s.Attributes))
		for key := range s.Attributes {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for i, key := range keys {
			if i > 0 {
				w(", ")
			}
			w("%s = %s", key, literalToStableHLO(s.Attributes[key]))
		}
		w("}")
	}

	// Write signature:
	w(" : (")
	for i, input := range s.Inputs {
		if i > 0 {
			w(", ")
		}
		w("%s", input.shape.ToStableHLO())
	}
	w(")")
	w(" -> ")
	if len(s.Outputs) == 0 {
		w("()")
	} else {
		// There are outputs: we use "(" and ")" only if there are more than one.
		if len(s.Outputs) > 1 {
			w("(")
		}
		for i, output := range s.Outputs {
			if i > 0 {
				w(", ")
			}
			w("%s", output.shape.ToStableHLO())
		}
		if len(s.Outputs) > 1 {
			w(")")
		}
	}

	return err
}

// literalStr is an attribute value already rendered in its StableHLO form.
type literalStr string

// literalStrF formats a literalStr like fmt.Sprintf.
func literalStrF(format string, args ...any) literalStr {
	return literalStr(fmt.Sprintf(format, args...))
}

type hasToStableHLO interface {
	ToStableHLO() string
}

// literalToStableHLO converts a literal value, usually used in attributes, to its StableHLO string representation.
func literalToStableHLO(attr any) string {
	switch v := attr.(type) {
	case literalStr:
		return string(v)
	case string:
		return fmt.Sprintf("%q", v)
	case int, int8, int16, int32, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d : i64", v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case hasToStableHLO:
		// For types that implement their own conversion to stablehlo, use that.
		return v.ToStableHLO()
	default:
		return fmt.Sprintf("unknown literal type %T: %#v", v, v)
	}
}

// formatFloat renders a float in a form MLIR accepts in dense<> literals:
// integral values get an explicit decimal point.
func formatFloat(f float64, bitSize int) string {
	s := strconv.FormatFloat(f, 'g', -1, bitSize)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// intSliceToArrayI64 renders an int slice as an array<i64: ...> attribute.
func intSliceToArrayI64(values []int) literalStr {
	if len(values) == 0 {
		return "array<i64>"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return literalStrF("array<i64: %s>", strings.Join(parts, ", "))
}
