package evaluator_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/thomasrohde/zeal/pkg/ast"
	"github.com/thomasrohde/zeal/pkg/builtins"
	"github.com/thomasrohde/zeal/pkg/diagnostics"
	"github.com/thomasrohde/zeal/pkg/evaluator"
	"github.com/thomasrohde/zeal/pkg/parser"
)

// --- helpers ---

// defaultOpts returns Options with the default builtins writing to out.
func defaultOpts(out *bytes.Buffer) evaluator.Options {
	reg := builtins.NewRegistry()
	builtins.RegisterDefaults(reg, builtins.StylePlain)
	return evaluator.Options{
		Output:   out,
		Builtins: reg.EvaluatorMap(),
	}
}

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, diags := parser.Parse(src, "test.zl")
	if len(diags) > 0 {
		t.Fatalf("parse errors: %s", diagnostics.FormatDiagnostics(diags, true))
	}
	return prog
}

// runWith parses and evaluates source, returning values, printed output and
// the evaluation error.
func runWith(t *testing.T, src string, opts evaluator.Options) ([]evaluator.ZValue, error) {
	t.Helper()
	return evaluator.NewInterpreter(opts).Evaluate(context.Background(), parse(t, src).Statements)
}

func run(t *testing.T, src string) ([]evaluator.ZValue, string, error) {
	t.Helper()
	var out bytes.Buffer
	vals, err := runWith(t, src, defaultOpts(&out))
	return vals, out.String(), err
}

// mustRun is like run but fails on runtime errors.
func mustRun(t *testing.T, src string) ([]evaluator.ZValue, string) {
	t.Helper()
	vals, out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	return vals, out
}

func last(t *testing.T, vals []evaluator.ZValue) evaluator.ZValue {
	t.Helper()
	if len(vals) == 0 {
		t.Fatal("expected at least one value")
	}
	return vals[len(vals)-1]
}

func expectInt(t *testing.T, val evaluator.ZValue, expected int32) {
	t.Helper()
	n, ok := val.(evaluator.ZInt)
	if !ok {
		t.Fatalf("expected Int, got %s", evaluator.Debug(val))
	}
	if n.Value != expected {
		t.Errorf("expected %d, got %d", expected, n.Value)
	}
}

func expectBool(t *testing.T, val evaluator.ZValue, expected bool) {
	t.Helper()
	b, ok := val.(evaluator.ZBool)
	if !ok {
		t.Fatalf("expected Bool, got %s", evaluator.Debug(val))
	}
	if b.Value != expected {
		t.Errorf("expected %v, got %v", expected, b.Value)
	}
}

func expectRuntimeError(t *testing.T, err error, code string) *evaluator.RuntimeError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected runtime error %s, got none", code)
	}
	var rtErr *evaluator.RuntimeError
	if !errors.As(err, &rtErr) {
		t.Fatalf("expected *RuntimeError, got %T: %v", err, err)
	}
	if rtErr.Code != code {
		t.Errorf("expected code %s, got %s (%s)", code, rtErr.Code, rtErr.Message)
	}
	return rtErr
}

func lines(s ...string) string {
	return strings.Join(s, "\n") + "\n"
}

// --- end-to-end programs ---

func TestDeclareAndPrint(t *testing.T) {
	vals, out := mustRun(t, "i := 1; print i;")
	if out != "1\n" {
		t.Errorf("got output %q", out)
	}
	if len(vals) != 2 {
		t.Fatalf("expected 2 values, got %d", len(vals))
	}
	if _, ok := vals[0].(evaluator.ZUnit); !ok {
		t.Errorf("expected declaration to yield unit, got %s", evaluator.Debug(vals[0]))
	}
	expectInt(t, vals[1], 1)
}

func TestFizzBuzz(t *testing.T) {
	src := `i := 1
while i <= 15:
    if i % 3 == 0 && i % 5 == 0:
        print! "fizzbuzz"
    else if i % 5 == 0:
        print! "buzz"
    else if i % 3 == 0:
        print! "fizz"
    else:
        print! i
    i = i + 1
`
	_, out := mustRun(t, src)
	want := lines("1", "2", "fizz", "4", "buzz", "fizz", "7", "8", "fizz", "buzz", "11", "fizz", "13", "14", "fizzbuzz")
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestLambdaPipeline(t *testing.T) {
	src := `is_even := fn x -> x % 2 == 0
is_even! 2 |> print
is_even! 1 |> print
(fn x -> x % 2 == 0)! 3 |> print!
`
	_, out := mustRun(t, src)
	if out != lines("true", "false", "false") {
		t.Errorf("got output %q", out)
	}
}

func TestNestedShadowing(t *testing.T) {
	src := `a := 0
if true:
    print! a
    a = a + 1
    print! a
    a := 10
    print! a
    if true:
        print! a
        a = a + 1
        print! a
        a := 100
        print! a
    print! a
print! a
`
	_, out := mustRun(t, src)
	want := lines("0", "1", "10", "10", "11", "100", "11", "1")
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestStatementValues(t *testing.T) {
	vals, _ := mustRun(t, "i := 1\ni + 1 == 2\n-i\ni = i + 1\n")
	want := []evaluator.ZValue{
		evaluator.NewUnit(),
		evaluator.NewBool(true),
		evaluator.NewInt(-1),
		evaluator.NewInt(2),
	}
	if diff := cmp.Diff(want, vals); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestLineContinuation(t *testing.T) {
	src := "false\n    || true\n    && true\n    |> print!"
	_, out := mustRun(t, src)
	if out != "true\n" {
		t.Errorf("got output %q", out)
	}
}

func TestBangArgumentsOnFollowingLines(t *testing.T) {
	src := `add := fn a b -> a + b
false
    || true
    && true
    |> print!

add!
    1
    1 
|> print!

add!
    add! 1 1
    add! 1 1
|> print!
`
	var out bytes.Buffer
	reg := builtins.NewRegistry()
	builtins.RegisterDefaults(reg, builtins.StyleDebug)
	if _, err := runWith(t, src, evaluator.Options{Output: &out, Builtins: reg.EvaluatorMap()}); err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if diff := cmp.Diff("[Bool(true)]\n[Int(2)]\n[Int(4)]\n", out.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

// --- closures and scoping ---

func TestClosureSharesCapturedScope(t *testing.T) {
	src := `count := 0
inc := fn -> count = count + 1
inc!
inc!
count
`
	vals, _ := mustRun(t, src)
	expectInt(t, last(t, vals), 2)
}

func TestClosureOutlivesFrame(t *testing.T) {
	src := `make := fn ->
    n := 0
    fn -> n = n + 1
c := make!
d := make!
c!
c!
c!
d!
`
	vals, _ := mustRun(t, src)
	// c and d each own a separate n
	expectInt(t, vals[len(vals)-2], 3)
	expectInt(t, vals[len(vals)-1], 1)
}

func TestLexicalScoping(t *testing.T) {
	src := `x := 1
get := fn -> x
f := fn x -> get!
f 99
`
	vals, _ := mustRun(t, src)
	expectInt(t, last(t, vals), 1)
}

func TestParametersShadowOuterNames(t *testing.T) {
	src := `x := 5
f := fn x -> x = x * 2
f 7
x
`
	vals, _ := mustRun(t, src)
	expectInt(t, vals[2], 14)
	expectInt(t, vals[3], 5)
}

func TestBlockScopeEndsWithBlock(t *testing.T) {
	src := `i := 0
while i < 3:
    j := i
    i = i + 1
j
`
	_, _, err := run(t, src)
	expectRuntimeError(t, err, diagnostics.EUnbound)
}

func TestRecursion(t *testing.T) {
	src := `fact := fn n -> if n <= 1: 1 else: n * fact! (n - 1)
fact 10
`
	vals, _ := mustRun(t, src)
	expectInt(t, last(t, vals), 3628800)
}

// --- calls ---

func TestPipelineEquivalence(t *testing.T) {
	src := `add := fn a b -> a + b
1 |> add 2
add 1 2
4 |> add! 1 |> add 10
`
	vals, _ := mustRun(t, src)
	expectInt(t, vals[1], 3)
	expectInt(t, vals[2], 3)
	expectInt(t, vals[3], 15)
}

func TestMethodCallSugar(t *testing.T) {
	src := `add := fn a b -> a + b
x := 4
x.add 5
`
	vals, _ := mustRun(t, src)
	expectInt(t, last(t, vals), 9)
}

func TestFirstClassBuiltin(t *testing.T) {
	vals, out := mustRun(t, "p := print\np! 1 2\n")
	if out != "1 2\n" {
		t.Errorf("got output %q", out)
	}
	expectInt(t, last(t, vals), 2)
}

func TestPrintWithoutArgs(t *testing.T) {
	vals, out := mustRun(t, "print!")
	if out != "\n" {
		t.Errorf("got output %q", out)
	}
	if _, ok := last(t, vals).(evaluator.ZUnit); !ok {
		t.Errorf("expected unit, got %s", evaluator.Debug(last(t, vals)))
	}
}

func TestBarePrintIsAValue(t *testing.T) {
	vals, out := mustRun(t, "print\n")
	if out != "" {
		t.Errorf("a bare print should not write, got %q", out)
	}
	if b, ok := last(t, vals).(evaluator.ZBuiltin); !ok || b.Name != "print" {
		t.Errorf("expected the print builtin, got %s", evaluator.Debug(last(t, vals)))
	}
}

func TestArityMismatch(t *testing.T) {
	for _, src := range []string{
		"f := fn a b -> a\nf! 1",
		"f := fn a b -> a\nf! 1 2 3",
		"f := fn -> 1\nf 1",
	} {
		_, _, err := run(t, src)
		expectRuntimeError(t, err, diagnostics.EArity)
	}
}

func TestEmptyBody(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Expr{
		&ast.CallExpr{Callee: &ast.LambdaExpr{}},
	}}
	_, err := evaluator.NewInterpreter(evaluator.Options{}).Evaluate(context.Background(), prog.Statements)
	expectRuntimeError(t, err, diagnostics.EEmptyBody)
}

func TestNotCallable(t *testing.T) {
	_, _, err := run(t, "x := 1\nx! 2")
	expectRuntimeError(t, err, diagnostics.ENotCallable)

	_, _, err = run(t, `"s" 1`)
	expectRuntimeError(t, err, diagnostics.ENotCallable)
}

func TestUnknownBuiltin(t *testing.T) {
	_, err := runWith(t, "print 1", evaluator.Options{})
	expectRuntimeError(t, err, diagnostics.EUnknownBuiltin)
}

func TestFieldAccess(t *testing.T) {
	_, _, err := run(t, "x := 1\nx.y")
	rtErr := expectRuntimeError(t, err, diagnostics.EField)
	if !strings.Contains(rtErr.Message, "'y'") {
		t.Errorf("got message %q", rtErr.Message)
	}
}

// --- operators ---

func TestIntegerArithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want int32
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 - 4 - 3", 3},
		{"7 // 2", 3},
		{"-7 // 2", -3},
		{"7 // -2", -3},
		{"-7 % 2", -1},
		{"7 % -2", 1},
		{"- -5", 5},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			vals, _ := mustRun(t, tt.src)
			expectInt(t, last(t, vals), tt.want)
		})
	}
}

func TestComparisonAndEquality(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"1 < 2", true},
		{"2 <= 2", true},
		{"3 > 4", false},
		{"4 >= 5", false},
		{"1 == 1", true},
		{"1 != 1", false},
		{"true == false", false},
		{`"a" == "a"`, true},
		{`"a" != "b"`, true},
		{"!true", false},
		{"true && false || true", true},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			vals, _ := mustRun(t, tt.src)
			expectBool(t, last(t, vals), tt.want)
		})
	}
}

func TestTypeErrors(t *testing.T) {
	for _, src := range []string{
		"1 + true",
		`"a" * 2`,
		`1 == "1"`,
		"true == 1",
		"1 < true",
		"!1",
		"-true",
		"true && 1",
		"1 || true",
		"if 1: 2",
		"while 1: 2",
		"f := fn -> 1\nf == f",
	} {
		t.Run(src, func(t *testing.T) {
			_, _, err := run(t, src)
			expectRuntimeError(t, err, diagnostics.EType)
		})
	}
}

func TestShortCircuit(t *testing.T) {
	vals, _ := mustRun(t, "false && missing")
	expectBool(t, last(t, vals), false)

	vals, _ = mustRun(t, "true || missing")
	expectBool(t, last(t, vals), true)

	_, _, err := run(t, "true && missing")
	expectRuntimeError(t, err, diagnostics.EUnbound)
}

func TestDivisionByZero(t *testing.T) {
	for _, src := range []string{"1 // 0", "1 % 0"} {
		_, _, err := run(t, src)
		expectRuntimeError(t, err, diagnostics.EDivZero)
	}
}

func TestOverflowModes(t *testing.T) {
	const minInt = "m := -2147483647 - 1\n"
	exprs := []string{
		"2147483647 + 1",
		"-2147483647 - 2",
		"2147483647 * 2",
		minInt + "m // -1",
		minInt + "-m",
	}

	t.Run("fail", func(t *testing.T) {
		for _, src := range exprs {
			var out bytes.Buffer
			_, err := runWith(t, src, defaultOpts(&out))
			expectRuntimeError(t, err, diagnostics.EOverflow)
		}
	})

	modes := []struct {
		name string
		mode evaluator.OverflowMode
		want []int32
	}{
		{"wrap", evaluator.OverflowWrap, []int32{math.MinInt32, math.MaxInt32, -2, math.MinInt32, math.MinInt32}},
		{"saturate", evaluator.OverflowSaturate, []int32{math.MaxInt32, math.MinInt32, math.MaxInt32, math.MaxInt32, math.MaxInt32}},
	}
	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			for i, src := range exprs {
				var out bytes.Buffer
				opts := defaultOpts(&out)
				opts.Overflow = m.mode
				vals, err := runWith(t, src, opts)
				if err != nil {
					t.Fatalf("%q: unexpected error: %v", src, err)
				}
				expectInt(t, last(t, vals), m.want[i])
			}
		})
	}
}

func TestParseOverflowMode(t *testing.T) {
	for in, want := range map[string]evaluator.OverflowMode{
		"":         evaluator.OverflowFail,
		"fail":     evaluator.OverflowFail,
		"Wrap":     evaluator.OverflowWrap,
		"saturate": evaluator.OverflowSaturate,
	} {
		got, err := evaluator.ParseOverflowMode(in)
		if err != nil || got != want {
			t.Errorf("ParseOverflowMode(%q) = %v, %v; want %v", in, got, err, want)
		}
		if in != "" && !strings.EqualFold(got.String(), in) {
			t.Errorf("String() = %q, want %q", got.String(), in)
		}
	}
	if _, err := evaluator.ParseOverflowMode("explode"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

// --- bindings ---

func TestAssignUndefined(t *testing.T) {
	_, _, err := run(t, "y = 1")
	expectRuntimeError(t, err, diagnostics.EAssignUndefined)
}

func TestUnboundVariable(t *testing.T) {
	_, _, err := run(t, "y")
	rtErr := expectRuntimeError(t, err, diagnostics.EUnbound)
	if rtErr.Span == nil || rtErr.Span.StartLine != 1 || rtErr.Span.StartCol != 1 {
		t.Errorf("unexpected span %+v", rtErr.Span)
	}
}

func TestBareDeclarationBindsUnit(t *testing.T) {
	vals, _ := mustRun(t, "x :;\nx")
	if _, ok := last(t, vals).(evaluator.ZUnit); !ok {
		t.Errorf("expected unit, got %s", evaluator.Debug(last(t, vals)))
	}
}

func TestBareDeclarationAtEndOfLine(t *testing.T) {
	_, out := mustRun(t, "x :\nprint x\n")
	if out != "()\n" {
		t.Errorf("got output %q", out)
	}
}

// --- control flow ---

func TestIfValues(t *testing.T) {
	vals, _ := mustRun(t, "x := if 1 < 2: 10 else: 20\nx")
	expectInt(t, last(t, vals), 10)

	vals, _ = mustRun(t, "if false: 1")
	if _, ok := last(t, vals).(evaluator.ZUnit); !ok {
		t.Errorf("expected unit for a missing else, got %s", evaluator.Debug(last(t, vals)))
	}

	vals, _ = mustRun(t, "n := 5\nif n < 0: 0 - 1 else if n == 0: 0 else: 1")
	expectInt(t, last(t, vals), 1)
}

func TestBlockAndWhileYieldUnit(t *testing.T) {
	vals, _ := mustRun(t, "i := 0\nwhile i < 2: i = i + 1\nif true:\n    i\n")
	if diff := cmp.Diff([]evaluator.ZValue{evaluator.NewUnit(), evaluator.NewUnit(), evaluator.NewUnit()}, vals); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

// --- errors and budgets ---

func TestPartialValuesOnError(t *testing.T) {
	vals, _, err := run(t, "a := 1\na + 1\nb\nc")
	expectRuntimeError(t, err, diagnostics.EUnbound)
	if len(vals) != 2 {
		t.Fatalf("expected 2 completed values, got %d", len(vals))
	}
	expectInt(t, vals[1], 2)
}

func TestMaxCallDepth(t *testing.T) {
	var out bytes.Buffer
	opts := defaultOpts(&out)
	opts.MaxCallDepth = 50
	_, err := runWith(t, "f := fn n -> f! n\nf 1", opts)
	expectRuntimeError(t, err, diagnostics.EDepth)
}

func TestMaxIterations(t *testing.T) {
	var out bytes.Buffer
	opts := defaultOpts(&out)
	opts.MaxIterations = 10
	_, err := runWith(t, "while true: 1", opts)
	expectRuntimeError(t, err, diagnostics.EBudget)

	// exactly at the limit is fine
	vals, err := runWith(t, "i := 0\nwhile i < 10: i = i + 1\ni", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectInt(t, last(t, vals), 10)
}

func TestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	_, err := evaluator.NewInterpreter(defaultOpts(&out)).Evaluate(ctx, parse(t, "while true: 1").Statements)
	expectRuntimeError(t, err, diagnostics.ECancelled)
}

func TestRuntimeErrorDiagnostic(t *testing.T) {
	_, _, err := run(t, "1 + true")
	rtErr := expectRuntimeError(t, err, diagnostics.EType)
	d := rtErr.Diagnostic()
	if d.Code != diagnostics.EType || d.Span == nil {
		t.Errorf("unexpected diagnostic %+v", d)
	}
}

// --- sessions and tracing ---

func TestInterpreterSessionPersists(t *testing.T) {
	var out bytes.Buffer
	in := evaluator.NewInterpreter(defaultOpts(&out))
	ctx := context.Background()

	if _, err := in.Evaluate(ctx, parse(t, "x := 41").Statements); err != nil {
		t.Fatal(err)
	}
	vals, err := in.Evaluate(ctx, parse(t, "x = x + 1\nprint x").Statements)
	if err != nil {
		t.Fatal(err)
	}
	expectInt(t, last(t, vals), 42)
	if out.String() != "42\n" {
		t.Errorf("got output %q", out.String())
	}
	if diff := cmp.Diff([]string{"x"}, in.Env().Names()); diff != "" {
		t.Errorf("root names mismatch (-want +got):\n%s", diff)
	}
}

func TestInterpreterCountsCalls(t *testing.T) {
	var out bytes.Buffer
	in := evaluator.NewInterpreter(defaultOpts(&out))
	ctx := context.Background()

	src := "down := fn n -> if n == 0: 0 else: down! (n - 1)\ndown! 3"
	if _, err := in.Evaluate(ctx, parse(t, src).Statements); err != nil {
		t.Fatal(err)
	}
	if got := in.Calls(); got != 4 {
		t.Errorf("got %d calls, want 4", got)
	}

	// builtins are not lambda calls; the count accumulates across chunks
	if _, err := in.Evaluate(ctx, parse(t, "print 1\ndown! 0").Statements); err != nil {
		t.Fatal(err)
	}
	if got := in.Calls(); got != 5 {
		t.Errorf("got %d calls, want 5", got)
	}
}

func TestTraceEvents(t *testing.T) {
	var events []evaluator.TraceEventType
	var out bytes.Buffer
	opts := defaultOpts(&out)
	opts.Trace = func(ev evaluator.TraceEvent) {
		if ev.Timestamp == "" {
			t.Errorf("%s event has no timestamp", ev.Event)
		}
		events = append(events, ev.Event)
	}

	_, err := runWith(t, "f := fn -> 1\ni := 0\nwhile i < 1: i = i + f!", opts)
	if err != nil {
		t.Fatal(err)
	}

	want := []evaluator.TraceEventType{
		evaluator.TraceStmtStart, evaluator.TraceStmtEnd,
		evaluator.TraceStmtStart, evaluator.TraceStmtEnd,
		evaluator.TraceStmtStart,
		evaluator.TraceLoopStart,
		evaluator.TraceCallStart, evaluator.TraceCallEnd,
		evaluator.TraceLoopEnd,
		evaluator.TraceStmtEnd,
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
}
