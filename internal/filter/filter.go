// Package filter evaluates subscription filters against message attributes
// without touching the payload.
package filter

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/cel-go/cel"
)

// AttributeFilter is a compiled CEL expression over the `attributes` map.
// A disabled filter matches every message.
type AttributeFilter struct {
	expr    string
	prog    cel.Program
	enabled bool
}

// Compile parses and type-checks expr, e.g. `attributes.source == "json_upload"`.
// An empty expression yields a filter that matches everything.
func Compile(expr string) (*AttributeFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &AttributeFilter{}, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("attributes", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("filter: building environment: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("filter: compiling %q: %w", expr, iss.Err())
	}
	if !reflect.DeepEqual(ast.OutputType(), cel.BoolType) {
		return nil, fmt.Errorf("filter: %q must evaluate to bool, got %s", expr, ast.OutputType())
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("filter: planning %q: %w", expr, err)
	}
	return &AttributeFilter{expr: expr, prog: prog, enabled: true}, nil
}

// Enabled reports whether the filter has an expression
func (f *AttributeFilter) Enabled() bool {
	return f != nil && f.enabled
}

// String returns the source expression
func (f *AttributeFilter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match evaluates the filter. Evaluation errors (such as a missing key) count
// as no match.
func (f *AttributeFilter) Match(attributes map[string]string) bool {
	if !f.Enabled() {
		return true
	}
	if attributes == nil {
		attributes = map[string]string{}
	}
	out, _, err := f.prog.Eval(map[string]any{"attributes": attributes})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
