// Package hlo is a compact StableHLO text emitter: it builds the textual MLIR
// form of a program (`module` / `func.func` / `"stablehlo.xxx"(...)` statements)
// that PJRT plugins accept for compilation.
//
// It covers the element-wise, comparison and reduction operations a buffer
// comparison kernel needs, with per-operation shape validation.
package hlo

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gomlx/buffercmp/internal/utils"
	"github.com/pkg/errors"
)

// Builder is used to construct a StableHLO program (or "Module").
// See details in New.
type Builder struct {
	name string

	// functions holds all the functions created in the builder's scope,
	// including closures.
	functions []*Function
}

// New creates a new Builder object holding a program in construction.
//
// From a builder you create functions, and for each function you create
// operations (ops) one by one, until you defined the desired computation.
//
// Every program must define a "main" function: use Builder.Main, or
// Builder.NewFunction("main", ...), it's the same.
//
// Once you are all set, call Builder.Build and it will return the StableHLO
// program as a []byte that can be used with PJRT.
func New(name string) *Builder {
	return &Builder{
		name: name,
	}
}

// NewFunction creates a new function and adds it to the program.
// The function outputs are determined by its Return statement.
//
// The function name must be unique in the program.
//
// Inputs are added with Function.Input or Function.NamedInput, and the body is
// defined by calling ops on the function object.
func (b *Builder) NewFunction(name string) *Function {
	fn := &Function{
		Builder: b,
		Name:    name,
	}
	b.functions = append(b.functions, fn)
	return fn
}

const MainFunctionName = "main"

// Main creates the main function of the program.
// It is an alias to Builder.NewFunction("main").
//
// The main function is the entry point of the program, and it's the only
// function that can be called from outside the program.
func (b *Builder) Main() *Function {
	return b.NewFunction(MainFunctionName)
}

const IndentationStep = "  "

// Write the StableHLO program (a readable string) to the given writer.
//
// It will write incomplete programs (without a main function or empty
// statements) without an error, to help debugging.
//
// See Builder.Build to check and output the program.
func (b *Builder) Write(writer io.Writer) error {
	var err error
	w := func(format string, args ...any) {
		if err != nil {
			// No op if an error was encountered earlier
			return
		}
		_, err = fmt.Fprintf(writer, format, args...)
	}

	w("module @%s {\n", utils.NormalizeIdentifier(b.name))

	// Closures are rendered inline by the statements using them.
	var count int
	for _, fn := range b.functions {
		if fn.Parent != nil {
			continue
		}
		if count > 0 {
			w("\n\n")
		}
		if err == nil {
			err = fn.Write(writer, "")
		}
		count++
	}
	w("\n}\n")
	return err
}

// Build checks the validity and builds the StableHLO program.
//
// If you want the output of an incomplete program (without the checking), use
// Builder.Write instead.
func (b *Builder) Build() ([]byte, error) {
	hasMain := false
	for _, fn := range b.functions {
		if fn.Name == MainFunctionName {
			hasMain = true
		}
		if len(fn.Statements) == 0 {
			return nil, errors.Errorf("function %q has no statements", fn.Name)
		}
		if !fn.Returned {
			return nil, errors.Errorf("function %q has no return statement", fn.Name)
		}
	}
	if !hasMain {
		return nil, errors.New("program must have a main function")
	}

	var buf bytes.Buffer
	err := b.Write(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
