package evaluator

import (
	"fmt"
	"math"
	"strings"

	"github.com/thomasrohde/zeal/pkg/ast"
	"github.com/thomasrohde/zeal/pkg/diagnostics"
)

// OverflowMode selects what happens when integer arithmetic leaves the
// int32 range.
type OverflowMode int

const (
	// OverflowFail reports E_OVERFLOW.
	OverflowFail OverflowMode = iota
	// OverflowWrap wraps around in two's complement.
	OverflowWrap
	// OverflowSaturate clamps to math.MinInt32 or math.MaxInt32.
	OverflowSaturate
)

func (m OverflowMode) String() string {
	switch m {
	case OverflowWrap:
		return "wrap"
	case OverflowSaturate:
		return "saturate"
	default:
		return "fail"
	}
}

// ParseOverflowMode parses "fail", "wrap" or "saturate". The empty string
// selects OverflowFail.
func ParseOverflowMode(s string) (OverflowMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return OverflowFail, nil
	case "wrap":
		return OverflowWrap, nil
	case "saturate":
		return OverflowSaturate, nil
	}
	return OverflowFail, fmt.Errorf("unknown overflow mode %q (want fail, wrap or saturate)", s)
}

// narrow converts a widened result back to int32 according to the mode.
func (ev *evaluator) narrow(result int64, what string, span *ast.Span) (ZValue, error) {
	if result >= math.MinInt32 && result <= math.MaxInt32 {
		return ZInt{Value: int32(result)}, nil
	}
	switch ev.opts.Overflow {
	case OverflowWrap:
		return ZInt{Value: int32(result)}, nil
	case OverflowSaturate:
		if result > math.MaxInt32 {
			return ZInt{Value: math.MaxInt32}, nil
		}
		return ZInt{Value: math.MinInt32}, nil
	}
	return nil, &RuntimeError{
		Code:    diagnostics.EOverflow,
		Message: fmt.Sprintf("integer overflow in %s", what),
		Span:    span,
	}
}

func (ev *evaluator) arith(op ast.BinaryOp, a, b int32, span *ast.Span) (ZValue, error) {
	x, y := int64(a), int64(b)
	what := fmt.Sprintf("%d %s %d", a, op, b)

	switch op {
	case ast.OpAdd:
		return ev.narrow(x+y, what, span)
	case ast.OpSub:
		return ev.narrow(x-y, what, span)
	case ast.OpMul:
		return ev.narrow(x*y, what, span)
	case ast.OpDiv:
		if y == 0 {
			return nil, &RuntimeError{Code: diagnostics.EDivZero, Message: "division by zero", Span: span}
		}
		return ev.narrow(x/y, what, span)
	case ast.OpMod:
		if y == 0 {
			return nil, &RuntimeError{Code: diagnostics.EDivZero, Message: "modulo by zero", Span: span}
		}
		return ZInt{Value: int32(x % y)}, nil
	}
	return nil, &RuntimeError{
		Code:    diagnostics.EType,
		Message: fmt.Sprintf("unknown arithmetic operator '%s'", op),
		Span:    span,
	}
}

func compare(op ast.BinaryOp, a, b int32) bool {
	switch op {
	case ast.OpGt:
		return a > b
	case ast.OpLt:
		return a < b
	case ast.OpGtEq:
		return a >= b
	case ast.OpLtEq:
		return a <= b
	}
	return false
}
