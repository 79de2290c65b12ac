// Package cli implements the zeal command line: run, check, fmt, tokens and
// repl.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/thomasrohde/zeal/pkg/config"
	"github.com/thomasrohde/zeal/pkg/diagnostics"
	"github.com/thomasrohde/zeal/pkg/evaluator"
	"github.com/thomasrohde/zeal/pkg/formatter"
	"github.com/thomasrohde/zeal/pkg/runtime"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitUsage   = 1 // usage, I/O and config errors
	ExitStatic  = 2 // lex, parse and check errors
	ExitRuntime = 4
)

const usage = `usage: zeal <command> [options]
commands:
  run [--json] [--pretty] [--log-level L] [--config F] <file>...
  check [--pretty] <file>
  fmt [--write] <file>
  tokens <file>
  repl [--log-level L] [--config F]
  version`

// App is one invocation of the command line. Relative file names are
// resolved against Dir, or the process working directory when Dir is empty.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Dir    string
}

// New returns an App bound to the process's standard streams.
func New() *App {
	return &App{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes the command named by args[0] and returns the process exit
// code.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(a.Stderr, usage)
		return ExitUsage
	}

	switch args[0] {
	case "run":
		return a.cmdRun(ctx, args[1:])
	case "check":
		return a.cmdCheck(args[1:])
	case "fmt":
		return a.cmdFmt(args[1:])
	case "tokens":
		return a.cmdTokens(args[1:])
	case "repl":
		return a.cmdRepl(ctx, args[1:])
	case "version":
		fmt.Fprintln(a.Stdout, "zeal", config.LanguageVersion)
		return ExitOK
	case "help", "--help", "-h":
		fmt.Fprintln(a.Stdout, usage)
		return ExitOK
	default:
		fmt.Fprintf(a.Stderr, "Unknown command: %s\n", args[0])
		return ExitUsage
	}
}

// flags holds the options shared by the subcommands.
type flags struct {
	files    []string
	json     bool
	pretty   bool
	write    bool
	logLevel string
	config   string
}

// commandFlags lists the flags each command accepts, as shown in usage.
var commandFlags = map[string][]string{
	"run":    {"--json", "--pretty", "--log-level", "--config"},
	"check":  {"--pretty"},
	"fmt":    {"--write"},
	"tokens": nil,
	"repl":   {"--log-level", "--config"},
}

func parseFlags(cmd string, args []string) (*flags, error) {
	f := &flags{logLevel: "warn"}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") && arg != "-" && !slices.Contains(commandFlags[cmd], arg) {
			return nil, fmt.Errorf("unknown flag %s for %s", arg, cmd)
		}
		switch arg {
		case "--json":
			f.json = true
		case "--pretty":
			f.pretty = true
		case "--write":
			f.write = true
		case "--log-level", "--config":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s needs a value", arg)
			}
			i++
			if arg == "--config" {
				f.config = args[i]
			} else {
				f.logLevel = args[i]
			}
		default:
			f.files = append(f.files, arg)
		}
	}
	return f, nil
}

func (a *App) usageError(err error) int {
	fmt.Fprintf(a.Stderr, "error: %s\n%s\n", err, usage)
	return ExitUsage
}

// setup builds a logger and a runtime from the shared flags.
func (a *App) setup(f *flags, output io.Writer) (*runtime.Runtime, int) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		return nil, a.usageError(fmt.Errorf("invalid log level %q", f.logLevel))
	}
	logger := slog.New(slog.NewTextHandler(a.Stderr, &slog.HandlerOptions{Level: level}))

	explicit := f.config
	if explicit != "" {
		explicit = a.path(explicit)
	}
	cfg, err := config.Load(explicit, a.workDir())
	if err != nil {
		return nil, a.report(err, f.pretty)
	}
	if cfg.Source != "" {
		logger.Debug("loaded config", slog.String("path", cfg.Source),
			slog.String("overflow", cfg.Overflow.String()),
			slog.Int("parallelism", cfg.Parallelism))
	}

	return runtime.New(
		runtime.WithConfig(cfg),
		runtime.WithOutput(output),
		runtime.WithLogger(logger),
	), ExitOK
}

func (a *App) workDir() string {
	if a.Dir != "" {
		return a.Dir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func (a *App) path(name string) string {
	if a.Dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(a.Dir, name)
}

// readSource reads a program file, or standard input for "-".
func (a *App) readSource(file string) (string, string, error) {
	if file == "-" {
		data, err := io.ReadAll(a.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), "<stdin>", nil
	}
	data, err := os.ReadFile(a.path(file))
	if err != nil {
		return "", "", fmt.Errorf("cannot read file: %w", err)
	}
	return string(data), file, nil
}

// report prints err's diagnostics to stderr and returns the matching exit
// code.
func (a *App) report(err error, pretty bool) int {
	diags := runtime.Diagnose(err)
	fmt.Fprintln(a.Stderr, diagnostics.FormatDiagnostics(diags, pretty))
	return ExitCode(diags)
}

// ExitCode returns the exit code for a run that produced diags.
func ExitCode(diags []diagnostics.Diagnostic) int {
	code := ExitOK
	for _, d := range diags {
		c := ExitRuntime
		switch {
		case d.Code == diagnostics.EIO || d.Code == diagnostics.EConfig:
			c = ExitUsage
		case !diagnostics.IsRuntime(d.Code):
			c = ExitStatic
		}
		code = max(code, c)
	}
	return code
}

// ---------------------------------------------------------------------------
// run
// ---------------------------------------------------------------------------

func (a *App) cmdRun(ctx context.Context, args []string) int {
	f, err := parseFlags("run", args)
	if err != nil {
		return a.usageError(err)
	}
	if len(f.files) == 0 {
		return a.usageError(fmt.Errorf("run needs a file"))
	}

	rt, code := a.setup(f, a.Stdout)
	if code != ExitOK {
		return code
	}

	if len(f.files) == 1 {
		source, filename, err := a.readSource(f.files[0])
		if err != nil {
			return a.report(err, f.pretty)
		}
		res, err := rt.Run(ctx, source, filename)
		if err != nil {
			return a.report(err, f.pretty)
		}
		return a.printValues(res, f.json)
	}

	sources := make([]runtime.Source, 0, len(f.files))
	for _, file := range f.files {
		source, filename, err := a.readSource(file)
		if err != nil {
			return a.report(err, f.pretty)
		}
		sources = append(sources, runtime.Source{Name: filename, Text: source})
	}

	exit := ExitOK
	for _, res := range rt.RunBatch(ctx, sources) {
		io.WriteString(a.Stdout, res.Output)
		if res.Err != nil {
			exit = max(exit, a.report(res.Err, f.pretty))
			continue
		}
		exit = max(exit, a.printValues(res, f.json))
	}
	return exit
}

func (a *App) printValues(res *runtime.Result, asJSON bool) int {
	if !asJSON {
		return ExitOK
	}
	data, err := evaluator.ValuesToJSON(res.Values)
	if err != nil {
		fmt.Fprintf(a.Stderr, "error serializing result: %s\n", err)
		return ExitRuntime
	}
	fmt.Fprintln(a.Stdout, string(data))
	return ExitOK
}

// ---------------------------------------------------------------------------
// check, fmt, tokens
// ---------------------------------------------------------------------------

func (a *App) cmdCheck(args []string) int {
	f, err := parseFlags("check", args)
	if err != nil {
		return a.usageError(err)
	}
	if len(f.files) != 1 {
		return a.usageError(fmt.Errorf("check needs exactly one file"))
	}

	source, filename, err := a.readSource(f.files[0])
	if err != nil {
		return a.report(err, f.pretty)
	}

	diags := runtime.New().Check(source, filename)
	if len(diags) > 0 {
		fmt.Fprintln(a.Stderr, diagnostics.FormatDiagnostics(diags, f.pretty))
		return ExitStatic
	}

	if f.pretty {
		fmt.Fprintln(a.Stdout, "No errors found.")
	} else {
		fmt.Fprintln(a.Stdout, "[]")
	}
	return ExitOK
}

func (a *App) cmdFmt(args []string) int {
	f, err := parseFlags("fmt", args)
	if err != nil {
		return a.usageError(err)
	}
	if len(f.files) != 1 {
		return a.usageError(fmt.Errorf("fmt needs exactly one file"))
	}

	source, filename, err := a.readSource(f.files[0])
	if err != nil {
		return a.report(err, false)
	}

	formatted, err := runtime.New().Format(source, filename)
	if err != nil {
		return a.report(err, false)
	}

	if formatter.HasComments(source) {
		fmt.Fprintln(a.Stderr, "warning: comments are not preserved by the formatter")
	}

	if f.write && f.files[0] != "-" {
		if err := os.WriteFile(a.path(f.files[0]), []byte(formatted), 0o644); err != nil {
			fmt.Fprintf(a.Stderr, "error writing file: %s\n", err)
			return ExitUsage
		}
		return ExitOK
	}
	io.WriteString(a.Stdout, formatted)
	return ExitOK
}

func (a *App) cmdTokens(args []string) int {
	f, err := parseFlags("tokens", args)
	if err != nil {
		return a.usageError(err)
	}
	if len(f.files) != 1 {
		return a.usageError(fmt.Errorf("tokens needs exactly one file"))
	}

	source, filename, err := a.readSource(f.files[0])
	if err != nil {
		return a.report(err, false)
	}
	tokens, err := runtime.New().Tokens(source, filename)
	if err != nil {
		return a.report(err, false)
	}
	w := bufio.NewWriter(a.Stdout)
	for _, tok := range tokens {
		fmt.Fprintf(w, "%d:%d\t%s\n", tok.Span.StartLine, tok.Span.StartCol, tok)
	}
	w.Flush()
	return ExitOK
}
