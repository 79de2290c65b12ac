package evaluator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/thomasrohde/zeal/pkg/ast"
	"github.com/thomasrohde/zeal/pkg/diagnostics"
)

// TraceEventType identifies the type of a trace event.
type TraceEventType string

const (
	TraceStmtStart TraceEventType = "stmt_start"
	TraceStmtEnd   TraceEventType = "stmt_end"
	TraceCallStart TraceEventType = "call_start"
	TraceCallEnd   TraceEventType = "call_end"
	TraceLoopStart TraceEventType = "loop_start"
	TraceLoopEnd   TraceEventType = "loop_end"
)

// TraceEvent represents a single trace event emitted during evaluation.
type TraceEvent struct {
	Timestamp string            `json:"ts"`
	Event     TraceEventType    `json:"event"`
	Span      *ast.Span         `json:"span,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// BuiltinFn defines a builtin function available to Zeal programs.
// Execute receives the session's output sink and the evaluated arguments.
type BuiltinFn struct {
	Name    string
	Execute func(out io.Writer, args []ZValue) (ZValue, error)
}

// Options configures an evaluation session.
type Options struct {
	// Output is the sink handed to builtins. Nil discards output.
	Output   io.Writer
	Builtins map[string]*BuiltinFn
	Overflow OverflowMode
	// MaxCallDepth bounds nested lambda calls; zero selects DefaultMaxCallDepth.
	MaxCallDepth int
	// MaxIterations bounds the total number of while iterations per
	// Evaluate call; zero means unbounded.
	MaxIterations int64
	Trace         func(event TraceEvent)
}

// RuntimeError represents a runtime error during Zeal evaluation.
type RuntimeError struct {
	Code    string
	Message string
	Span    *ast.Span
}

func (e *RuntimeError) Error() string {
	return e.Message
}

// Diagnostic converts the error to a diagnostic for reporting.
func (e *RuntimeError) Diagnostic() diagnostics.Diagnostic {
	return diagnostics.MakeDiag(e.Code, e.Message, e.Span, "")
}

// Interpreter is an evaluation session. Its root scope persists across
// Evaluate calls, so a REPL can feed it one statement list at a time.
type Interpreter struct {
	opts  Options
	root  *Env
	calls int64
}

// NewInterpreter creates a session with an empty root scope.
func NewInterpreter(opts Options) *Interpreter {
	if opts.MaxCallDepth <= 0 {
		opts.MaxCallDepth = DefaultMaxCallDepth
	}
	return &Interpreter{opts: opts, root: NewEnv(nil)}
}

// Env returns the session's root scope.
func (in *Interpreter) Env() *Env {
	return in.root
}

// Calls returns the number of lambda calls made so far in the session.
func (in *Interpreter) Calls() int64 {
	return in.calls
}

// Evaluate evaluates top-level statements in order and returns one value per
// statement. On error the values of the statements that completed are
// returned along with a *RuntimeError.
func (in *Interpreter) Evaluate(ctx context.Context, stmts []ast.Expr) ([]ZValue, error) {
	ev := &evaluator{
		ctx:  ctx,
		opts: in.opts,
		budget: Budget{
			MaxCallDepth:  in.opts.MaxCallDepth,
			MaxIterations: in.opts.MaxIterations,
		},
	}
	defer func() { in.calls += ev.tracker.Calls }()

	values := make([]ZValue, 0, len(stmts))
	for _, stmt := range stmts {
		span := stmt.NodeSpan()
		ev.emit(TraceStmtStart, &span, nil)

		val, err := ev.evalExpr(stmt, in.root)
		if err != nil {
			return values, err
		}
		values = append(values, val)

		ev.emit(TraceStmtEnd, &span, map[string]string{"value": Debug(val)})
	}
	return values, nil
}

type evaluator struct {
	ctx     context.Context
	opts    Options
	budget  Budget
	tracker BudgetTracker
}

func (ev *evaluator) emit(event TraceEventType, span *ast.Span, data map[string]string) {
	if ev.opts.Trace != nil {
		ev.opts.Trace(TraceEvent{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Event:     event,
			Span:      span,
			Data:      data,
		})
	}
}

func spanOf(n ast.Node) *ast.Span {
	s := n.NodeSpan()
	return &s
}

func (ev *evaluator) checkCancelled(span *ast.Span) error {
	if err := ev.ctx.Err(); err != nil {
		return &RuntimeError{
			Code:    diagnostics.ECancelled,
			Message: fmt.Sprintf("evaluation cancelled: %v", err),
			Span:    span,
		}
	}
	return nil
}

func typeError(span *ast.Span, format string, args ...any) error {
	return &RuntimeError{Code: diagnostics.EType, Message: fmt.Sprintf(format, args...), Span: span}
}

func (ev *evaluator) evalExpr(expr ast.Expr, env *Env) (ZValue, error) {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		return NewInt(e.Value), nil

	case *ast.BoolLiteral:
		return NewBool(e.Value), nil

	case *ast.StrLiteral:
		return NewString(e.Value), nil

	case *ast.Ident:
		val, ok := env.Get(e.Name)
		if !ok {
			return nil, &RuntimeError{
				Code:    diagnostics.EUnbound,
				Message: fmt.Sprintf("undefined variable '%s'", e.Name),
				Span:    spanOf(e),
			}
		}
		return val, nil

	case *ast.GroupExpr:
		return ev.evalExpr(e.Inner, env)

	case *ast.UnaryExpr:
		return ev.evalUnary(e, env)

	case *ast.BinaryExpr:
		return ev.evalBinary(e, env)

	case *ast.GetExpr:
		recv, err := ev.evalExpr(e.Receiver, env)
		if err != nil {
			return nil, err
		}
		return nil, &RuntimeError{
			Code:    diagnostics.EField,
			Message: fmt.Sprintf("cannot read field '%s' of %s", e.Name, TypeName(recv)),
			Span:    spanOf(e),
		}

	case *ast.CallExpr:
		return ev.evalCall(e, env)

	case *ast.BuiltinExpr:
		if _, ok := ev.opts.Builtins[e.Name]; !ok {
			return nil, &RuntimeError{
				Code:    diagnostics.EUnknownBuiltin,
				Message: fmt.Sprintf("unknown builtin '%s'", e.Name),
				Span:    spanOf(e),
			}
		}
		return ZBuiltin{Name: e.Name}, nil

	case *ast.LambdaExpr:
		return ZLambda{Params: e.Params, Body: e.Body, Closure: env}, nil

	case *ast.DeclExpr:
		var val ZValue = NewUnit()
		if e.Value != nil {
			v, err := ev.evalExpr(e.Value, env)
			if err != nil {
				return nil, err
			}
			val = v
		}
		env.Define(e.Target.Name, val)
		return NewUnit(), nil

	case *ast.AssignExpr:
		val, err := ev.evalExpr(e.Value, env)
		if err != nil {
			return nil, err
		}
		if !env.Assign(e.Target.Name, val) {
			return nil, &RuntimeError{
				Code:    diagnostics.EAssignUndefined,
				Message: fmt.Sprintf("cannot assign to undefined variable '%s'", e.Target.Name),
				Span:    spanOf(e.Target),
			}
		}
		return val, nil

	case *ast.BlockExpr:
		scope := env.Child()
		for _, stmt := range e.Statements {
			if _, err := ev.evalExpr(stmt, scope); err != nil {
				return nil, err
			}
		}
		return NewUnit(), nil

	case *ast.WhileExpr:
		return ev.evalWhile(e, env)

	case *ast.IfExpr:
		return ev.evalIf(e, env)

	default:
		return nil, &RuntimeError{
			Code:    diagnostics.EType,
			Message: fmt.Sprintf("unsupported expression type: %T", expr),
			Span:    spanOf(expr),
		}
	}
}

func (ev *evaluator) evalUnary(e *ast.UnaryExpr, env *Env) (ZValue, error) {
	operand, err := ev.evalExpr(e.Operand, env)
	if err != nil {
		return nil, err
	}
	span := spanOf(e)

	switch e.Op {
	case ast.OpNeg:
		n, ok := operand.(ZInt)
		if !ok {
			return nil, typeError(span, "operator '-' expects Int, got %s", TypeName(operand))
		}
		return ev.narrow(-int64(n.Value), fmt.Sprintf("-(%d)", n.Value), span)
	case ast.OpNot:
		b, ok := operand.(ZBool)
		if !ok {
			return nil, typeError(span, "operator '!' expects Bool, got %s", TypeName(operand))
		}
		return NewBool(!b.Value), nil
	}
	return nil, typeError(span, "unknown unary operator '%s'", e.Op)
}

func (ev *evaluator) evalBinary(e *ast.BinaryExpr, env *Env) (ZValue, error) {
	if e.Op == ast.OpAndAnd || e.Op == ast.OpOrOr {
		return ev.evalLogical(e, env)
	}

	left, err := ev.evalExpr(e.Left, env)
	if err != nil {
		return nil, err
	}
	right, err := ev.evalExpr(e.Right, env)
	if err != nil {
		return nil, err
	}
	span := spanOf(e)

	switch e.Op {
	case ast.OpEqEq, ast.OpNeq:
		eq, ok := ValuesEqual(left, right)
		if !ok {
			return nil, typeError(span, "cannot compare %s with %s using '%s'", TypeName(left), TypeName(right), e.Op)
		}
		if e.Op == ast.OpNeq {
			eq = !eq
		}
		return NewBool(eq), nil
	}

	l, lok := left.(ZInt)
	r, rok := right.(ZInt)
	if !lok || !rok {
		return nil, typeError(span, "operator '%s' expects Int operands, got %s and %s", e.Op, TypeName(left), TypeName(right))
	}

	switch e.Op {
	case ast.OpGt, ast.OpLt, ast.OpGtEq, ast.OpLtEq:
		return NewBool(compare(e.Op, l.Value, r.Value)), nil
	}
	return ev.arith(e.Op, l.Value, r.Value, span)
}

// evalLogical evaluates && and || left to right, skipping the right operand
// once the result is known.
func (ev *evaluator) evalLogical(e *ast.BinaryExpr, env *Env) (ZValue, error) {
	left, err := ev.evalExpr(e.Left, env)
	if err != nil {
		return nil, err
	}
	l, ok := left.(ZBool)
	if !ok {
		return nil, typeError(spanOf(e.Left), "operator '%s' expects Bool operands, got %s", e.Op, TypeName(left))
	}
	if e.Op == ast.OpAndAnd && !l.Value {
		return NewBool(false), nil
	}
	if e.Op == ast.OpOrOr && l.Value {
		return NewBool(true), nil
	}

	right, err := ev.evalExpr(e.Right, env)
	if err != nil {
		return nil, err
	}
	r, ok := right.(ZBool)
	if !ok {
		return nil, typeError(spanOf(e.Right), "operator '%s' expects Bool operands, got %s", e.Op, TypeName(right))
	}
	return r, nil
}

func (ev *evaluator) evalIf(e *ast.IfExpr, env *Env) (ZValue, error) {
	cond, err := ev.evalExpr(e.Cond, env)
	if err != nil {
		return nil, err
	}
	b, ok := cond.(ZBool)
	if !ok {
		return nil, typeError(spanOf(e.Cond), "if condition must be Bool, got %s", TypeName(cond))
	}
	if b.Value {
		return ev.evalExpr(e.Then, env)
	}
	if e.Else != nil {
		return ev.evalExpr(e.Else, env)
	}
	return NewUnit(), nil
}

func (ev *evaluator) evalWhile(e *ast.WhileExpr, env *Env) (ZValue, error) {
	span := spanOf(e)
	ev.emit(TraceLoopStart, span, nil)

	var iterations int64
	for {
		if err := ev.checkCancelled(span); err != nil {
			return nil, err
		}
		cond, err := ev.evalExpr(e.Cond, env)
		if err != nil {
			return nil, err
		}
		b, ok := cond.(ZBool)
		if !ok {
			return nil, typeError(spanOf(e.Cond), "while condition must be Bool, got %s", TypeName(cond))
		}
		if !b.Value {
			break
		}

		ev.tracker.Iterations++
		iterations++
		if ev.budget.MaxIterations > 0 && ev.tracker.Iterations > ev.budget.MaxIterations {
			return nil, &RuntimeError{
				Code:    diagnostics.EBudget,
				Message: fmt.Sprintf("iteration budget exceeded (max %d)", ev.budget.MaxIterations),
				Span:    span,
			}
		}

		if _, err := ev.evalExpr(e.Body, env); err != nil {
			return nil, err
		}
	}

	ev.emit(TraceLoopEnd, span, map[string]string{"iterations": strconv.FormatInt(iterations, 10)})
	return NewUnit(), nil
}

func (ev *evaluator) evalCall(e *ast.CallExpr, env *Env) (ZValue, error) {
	callee, err := ev.evalExpr(e.Callee, env)
	if err != nil {
		return nil, err
	}
	span := spanOf(e)

	switch callee.(type) {
	case ZLambda, ZBuiltin:
	default:
		return nil, &RuntimeError{
			Code:    diagnostics.ENotCallable,
			Message: fmt.Sprintf("cannot call a value of type %s", TypeName(callee)),
			Span:    spanOf(e.Callee),
		}
	}

	args := make([]ZValue, len(e.Args))
	for i, arg := range e.Args {
		val, err := ev.evalExpr(arg, env)
		if err != nil {
			return nil, err
		}
		args[i] = val
	}

	if fn, ok := callee.(ZBuiltin); ok {
		return ev.callBuiltin(fn, args, span)
	}
	return ev.callLambda(callee.(ZLambda), args, span)
}

func (ev *evaluator) callLambda(fn ZLambda, args []ZValue, span *ast.Span) (ZValue, error) {
	if len(args) != len(fn.Params) {
		return nil, &RuntimeError{
			Code:    diagnostics.EArity,
			Message: fmt.Sprintf("function expects %d argument(s), got %d", len(fn.Params), len(args)),
			Span:    span,
		}
	}
	if len(fn.Body) == 0 {
		return nil, &RuntimeError{Code: diagnostics.EEmptyBody, Message: "function body is empty", Span: span}
	}
	if err := ev.checkCancelled(span); err != nil {
		return nil, err
	}
	if ev.tracker.Depth >= ev.budget.MaxCallDepth {
		return nil, &RuntimeError{
			Code:    diagnostics.EDepth,
			Message: fmt.Sprintf("maximum call depth exceeded (%d)", ev.budget.MaxCallDepth),
			Span:    span,
		}
	}

	frame := fn.Closure.Child()
	for i, name := range fn.Params {
		frame.Define(name, args[i])
	}

	ev.tracker.Depth++
	ev.tracker.Calls++
	defer func() { ev.tracker.Depth-- }()

	ev.emit(TraceCallStart, span, map[string]string{"depth": strconv.Itoa(ev.tracker.Depth)})

	var result ZValue
	for _, stmt := range fn.Body {
		val, err := ev.evalExpr(stmt, frame)
		if err != nil {
			return nil, err
		}
		result = val
	}

	ev.emit(TraceCallEnd, span, map[string]string{"value": Debug(result)})
	return result, nil
}

func (ev *evaluator) callBuiltin(fn ZBuiltin, args []ZValue, span *ast.Span) (ZValue, error) {
	def, ok := ev.opts.Builtins[fn.Name]
	if !ok {
		return nil, &RuntimeError{
			Code:    diagnostics.EUnknownBuiltin,
			Message: fmt.Sprintf("unknown builtin '%s'", fn.Name),
			Span:    span,
		}
	}

	out := ev.opts.Output
	if out == nil {
		out = io.Discard
	}

	ev.emit(TraceCallStart, span, map[string]string{"builtin": fn.Name})
	val, err := def.Execute(out, args)
	if err != nil {
		var rtErr *RuntimeError
		if errors.As(err, &rtErr) {
			if rtErr.Span == nil {
				rtErr.Span = span
			}
			return nil, rtErr
		}
		return nil, &RuntimeError{
			Code:    diagnostics.EIO,
			Message: fmt.Sprintf("builtin '%s' failed: %v", fn.Name, err),
			Span:    span,
		}
	}
	ev.emit(TraceCallEnd, span, map[string]string{"builtin": fn.Name, "value": Debug(val)})
	return val, nil
}
