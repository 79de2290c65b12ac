// Package evaluator implements the Zeal tree-walking evaluator.
package evaluator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/thomasrohde/zeal/pkg/ast"
)

// ZValue is the interface for all Zeal runtime values.
// Use the sealed marker method to restrict implementations to this package.
type ZValue interface {
	zvalue() // sealed marker
}

// ZUnit is the result of constructs that produce no value: blocks, loops,
// declarations and an if without a taken branch.
type ZUnit struct{}

func (ZUnit) zvalue() {}

// ZInt is a signed 32-bit integer.
type ZInt struct {
	Value int32
}

func (ZInt) zvalue() {}

// ZBool represents a boolean value.
type ZBool struct {
	Value bool
}

func (ZBool) zvalue() {}

// ZString represents a string value.
type ZString struct {
	Value string
}

func (ZString) zvalue() {}

// ZLambda is a closure: parameter names, body statements and the scope that
// was active when the lambda expression was evaluated.
type ZLambda struct {
	Params  []string
	Body    []ast.Expr
	Closure *Env
}

func (ZLambda) zvalue() {}

// ZBuiltin is a reference to a builtin function such as print.
type ZBuiltin struct {
	Name string
}

func (ZBuiltin) zvalue() {}

// NewUnit creates the unit value.
func NewUnit() ZValue {
	return ZUnit{}
}

// NewInt creates an integer value.
func NewInt(n int32) ZValue {
	return ZInt{Value: n}
}

// NewBool creates a boolean value.
func NewBool(b bool) ZValue {
	return ZBool{Value: b}
}

// NewString creates a string value.
func NewString(s string) ZValue {
	return ZString{Value: s}
}

// TypeName returns the user-facing type name of a value.
func TypeName(v ZValue) string {
	switch v.(type) {
	case ZUnit:
		return "Unit"
	case ZInt:
		return "Int"
	case ZBool:
		return "Bool"
	case ZString:
		return "String"
	case ZLambda:
		return "Lambda"
	case ZBuiltin:
		return "Builtin"
	}
	return "unknown"
}

// Display renders a value the way print shows it.
func Display(v ZValue) string {
	switch val := v.(type) {
	case ZUnit:
		return "()"
	case ZInt:
		return strconv.FormatInt(int64(val.Value), 10)
	case ZBool:
		return strconv.FormatBool(val.Value)
	case ZString:
		return val.Value
	case ZLambda:
		if len(val.Params) == 0 {
			return "<fn>"
		}
		return "<fn " + strings.Join(val.Params, " ") + ">"
	case ZBuiltin:
		return "<builtin " + val.Name + ">"
	}
	return "<unknown>"
}

// Debug renders a value with its type tag, e.g. Int(1) or String("x").
func Debug(v ZValue) string {
	switch val := v.(type) {
	case ZUnit:
		return "Unit"
	case ZInt:
		return fmt.Sprintf("Int(%d)", val.Value)
	case ZBool:
		return fmt.Sprintf("Bool(%t)", val.Value)
	case ZString:
		return fmt.Sprintf("String(%q)", val.Value)
	case ZLambda:
		return fmt.Sprintf("Lambda(%s)", strings.Join(val.Params, " "))
	case ZBuiltin:
		return fmt.Sprintf("Builtin(%s)", val.Name)
	}
	return "<unknown>"
}

// ValuesEqual compares two values for ==. The second result is false when
// the operands are not both Int, both Bool or both String.
func ValuesEqual(a, b ZValue) (equal bool, comparable bool) {
	switch av := a.(type) {
	case ZInt:
		if bv, ok := b.(ZInt); ok {
			return av.Value == bv.Value, true
		}
	case ZBool:
		if bv, ok := b.(ZBool); ok {
			return av.Value == bv.Value, true
		}
	case ZString:
		if bv, ok := b.(ZString); ok {
			return av.Value == bv.Value, true
		}
	}
	return false, false
}

