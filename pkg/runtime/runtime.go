// Package runtime provides the top-level Zeal runtime orchestrator.
package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thomasrohde/zeal/pkg/ast"
	"github.com/thomasrohde/zeal/pkg/builtins"
	"github.com/thomasrohde/zeal/pkg/checker"
	"github.com/thomasrohde/zeal/pkg/config"
	"github.com/thomasrohde/zeal/pkg/diagnostics"
	"github.com/thomasrohde/zeal/pkg/evaluator"
	"github.com/thomasrohde/zeal/pkg/formatter"
	"github.com/thomasrohde/zeal/pkg/lexer"
	"github.com/thomasrohde/zeal/pkg/parser"
)

// Result holds the outcome of a program execution.
type Result struct {
	File string
	// Values holds one value per completed top-level statement.
	Values []evaluator.ZValue
	// Output is the captured print output of a batch run. Run writes to the
	// runtime's output instead and leaves it empty.
	Output string
	// Err is the batch run's error for this file, if any.
	Err error
}

// Source is one program of a batch.
type Source struct {
	Name string
	Text string
}

// Runtime wires together all Zeal components for program execution.
type Runtime struct {
	cfg         *config.Config
	builtins    *builtins.Registry
	output      io.Writer
	logger      *slog.Logger
	trace       func(event evaluator.TraceEvent)
	staticCheck bool
}

// Option is a functional option for configuring the Runtime.
type Option func(*Runtime)

// WithConfig sets the interpreter settings.
func WithConfig(cfg *config.Config) Option {
	return func(rt *Runtime) {
		rt.cfg = cfg
	}
}

// WithOutput sets where Run and sessions send print output.
func WithOutput(w io.Writer) Option {
	return func(rt *Runtime) {
		rt.output = w
	}
}

// WithLogger sets the logger for phase timings and trace events.
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) {
		rt.logger = logger
	}
}

// WithTrace sets the trace callback.
func WithTrace(fn func(event evaluator.TraceEvent)) Option {
	return func(rt *Runtime) {
		rt.trace = fn
	}
}

// WithStaticCheck makes Run reject programs the checker reports on.
func WithStaticCheck(enabled bool) Option {
	return func(rt *Runtime) {
		rt.staticCheck = enabled
	}
}

// New creates a new Runtime with the given options.
// By default the settings are config.Default(), print writes to stdout and
// nothing is logged.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		cfg:    config.Default(),
		output: os.Stdout,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.builtins = builtins.NewRegistry()
	builtins.RegisterDefaults(rt.builtins, rt.cfg.PrintStyle)
	return rt
}

// Config returns the runtime's settings.
func (rt *Runtime) Config() *config.Config {
	return rt.cfg
}

// Tokens scans source and returns its tokens.
func (rt *Runtime) Tokens(source, filename string) ([]lexer.Token, error) {
	tokens, err := lexer.Scan(source, filename)
	if err != nil {
		var le *lexer.LexError
		if errors.As(err, &le) {
			return nil, &DiagnosticError{Diagnostics: []diagnostics.Diagnostic{le.Diag}}
		}
		return nil, err
	}
	return tokens, nil
}

// Parse scans and parses source.
func (rt *Runtime) Parse(ctx context.Context, source, filename string) (*ast.Program, error) {
	start := time.Now()
	program, diags := parser.Parse(source, filename)
	if len(diags) > 0 {
		return nil, &DiagnosticError{Diagnostics: diags}
	}
	rt.logger.DebugContext(ctx, "parsed program",
		slog.String("file", filename),
		slog.Int("statements", len(program.Statements)),
		slog.Duration("elapsed", time.Since(start)))
	return program, nil
}

// Check parses and statically checks a Zeal program without executing it.
func (rt *Runtime) Check(source, filename string) []diagnostics.Diagnostic {
	program, diags := parser.Parse(source, filename)
	if len(diags) > 0 {
		return diags
	}
	return checker.Check(program)
}

// Format parses and formats a Zeal program.
func (rt *Runtime) Format(source, filename string) (string, error) {
	program, diags := parser.Parse(source, filename)
	if len(diags) > 0 {
		return "", &DiagnosticError{Diagnostics: diags}
	}
	return formatter.Format(program), nil
}

// Run parses and executes a Zeal program, writing print output to the
// runtime's output. On a runtime error the values of the statements that
// completed are returned along with the error.
func (rt *Runtime) Run(ctx context.Context, source, filename string) (*Result, error) {
	return rt.run(ctx, source, filename, rt.output)
}

func (rt *Runtime) run(ctx context.Context, source, filename string, out io.Writer) (*Result, error) {
	program, err := rt.Parse(ctx, source, filename)
	if err != nil {
		return nil, err
	}
	if rt.staticCheck {
		if diags := checker.Check(program); len(diags) > 0 {
			return nil, &DiagnosticError{Diagnostics: diags}
		}
	}

	start := time.Now()
	interp := evaluator.NewInterpreter(rt.execOptions(ctx, out, filename))
	values, err := interp.Evaluate(ctx, program.Statements)
	rt.logger.DebugContext(ctx, "evaluated program",
		slog.String("file", filename),
		slog.Int("values", len(values)),
		slog.Int64("calls", interp.Calls()),
		slog.Duration("elapsed", time.Since(start)),
		slog.Bool("ok", err == nil))

	return &Result{File: filename, Values: values}, err
}

// RunBatch runs independent programs concurrently, at most
// Config().Parallelism at a time. Each program gets its own scope and
// output buffer. Results are returned in input order with per-file errors
// in Result.Err; one failing program does not stop the others.
func (rt *Runtime) RunBatch(ctx context.Context, sources []Source) []*Result {
	results := make([]*Result, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	if rt.cfg.Parallelism > 0 {
		g.SetLimit(rt.cfg.Parallelism)
	}
	for i, src := range sources {
		g.Go(func() error {
			var buf bytes.Buffer
			res, err := rt.run(gctx, src.Text, src.Name, &buf)
			if res == nil {
				res = &Result{File: src.Name}
			}
			res.Output = buf.String()
			res.Err = err
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	rt.logger.DebugContext(ctx, "batch finished", slog.Int("programs", len(sources)))
	return results
}

// Session is an interactive evaluation session whose top-level bindings
// persist between Eval calls.
type Session struct {
	rt     *Runtime
	interp *evaluator.Interpreter
	chunks int
}

// NewSession starts a session that prints to the runtime's output.
func (rt *Runtime) NewSession(ctx context.Context) *Session {
	return &Session{
		rt:     rt,
		interp: evaluator.NewInterpreter(rt.execOptions(ctx, rt.output, "<repl>")),
	}
}

// Eval parses and evaluates one chunk of input in the session.
func (s *Session) Eval(ctx context.Context, source string) ([]evaluator.ZValue, error) {
	s.chunks++
	program, err := s.rt.Parse(ctx, source, fmt.Sprintf("<repl:%d>", s.chunks))
	if err != nil {
		return nil, err
	}
	return s.interp.Evaluate(ctx, program.Statements)
}

// Names returns the names bound at the session's top level.
func (s *Session) Names() []string {
	return s.interp.Env().Names()
}

// execOptions constructs evaluator options from the runtime's configuration.
func (rt *Runtime) execOptions(ctx context.Context, out io.Writer, filename string) evaluator.Options {
	trace := rt.trace
	if rt.logger.Enabled(ctx, slog.LevelDebug) {
		user := trace
		trace = func(ev evaluator.TraceEvent) {
			attrs := []any{slog.String("event", string(ev.Event)), slog.String("file", filename)}
			if ev.Span != nil {
				attrs = append(attrs, slog.Int("line", ev.Span.StartLine))
			}
			for k, v := range ev.Data {
				attrs = append(attrs, slog.String(k, v))
			}
			rt.logger.DebugContext(ctx, "trace", attrs...)
			if user != nil {
				user(ev)
			}
		}
	}

	return evaluator.Options{
		Output:        out,
		Builtins:      rt.builtins.EvaluatorMap(),
		Overflow:      rt.cfg.Overflow,
		MaxCallDepth:  rt.cfg.MaxCallDepth,
		MaxIterations: rt.cfg.MaxIterations,
		Trace:         trace,
	}
}

// DiagnosticError wraps diagnostics as an error.
type DiagnosticError struct {
	Diagnostics []diagnostics.Diagnostic
}

func (e *DiagnosticError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return strings.Join(msgs, "; ")
}

// Diagnose converts an error from this package, the evaluator or the config
// loader into diagnostics. Other errors become a single E_IO diagnostic.
func Diagnose(err error) []diagnostics.Diagnostic {
	var diagErr *DiagnosticError
	if errors.As(err, &diagErr) {
		return diagErr.Diagnostics
	}
	var rtErr *evaluator.RuntimeError
	if errors.As(err, &rtErr) {
		return []diagnostics.Diagnostic{rtErr.Diagnostic()}
	}
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return []diagnostics.Diagnostic{cfgErr.Diagnostic()}
	}
	return []diagnostics.Diagnostic{diagnostics.MakeDiag(diagnostics.EIO, err.Error(), nil, "")}
}
