package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/thomasrohde/zeal/pkg/diagnostics"
	"github.com/thomasrohde/zeal/pkg/evaluator"
	"github.com/thomasrohde/zeal/pkg/runtime"
)

const (
	prompt         = "zeal> "
	continuePrompt = "....> "
)

// cmdRepl reads chunks from stdin and evaluates them in one session. A line
// ending in ':' or '->' opens a block; the chunk then runs at the first
// blank line. Errors are reported and the session continues.
func (a *App) cmdRepl(ctx context.Context, args []string) int {
	f, err := parseFlags("repl", args)
	if err != nil {
		return a.usageError(err)
	}
	rt, code := a.setup(f, a.Stdout)
	if code != ExitOK {
		return code
	}
	session := rt.NewSession(ctx)

	in := bufio.NewScanner(a.Stdin)
	var chunk []string
	fmt.Fprint(a.Stdout, prompt)
	for in.Scan() {
		line := in.Text()

		if len(chunk) == 0 {
			switch strings.TrimSpace(line) {
			case "":
				fmt.Fprint(a.Stdout, prompt)
				continue
			case ":quit", ":q":
				return ExitOK
			case ":names":
				fmt.Fprintln(a.Stdout, strings.Join(session.Names(), " "))
				fmt.Fprint(a.Stdout, prompt)
				continue
			}
		}

		chunk = append(chunk, line)
		if opensBlock(chunk[0]) && strings.TrimSpace(line) != "" {
			fmt.Fprint(a.Stdout, continuePrompt)
			continue
		}

		a.evalChunk(ctx, session, strings.Join(chunk, "\n"))
		chunk = chunk[:0]
		if ctx.Err() != nil {
			return ExitRuntime
		}
		fmt.Fprint(a.Stdout, prompt)
	}
	if len(chunk) > 0 {
		a.evalChunk(ctx, session, strings.Join(chunk, "\n"))
	}
	fmt.Fprintln(a.Stdout)
	return ExitOK
}

func (a *App) evalChunk(ctx context.Context, s *runtime.Session, source string) {
	values, err := s.Eval(ctx, source)
	if err != nil {
		fmt.Fprintln(a.Stderr, diagnostics.FormatDiagnostics(runtime.Diagnose(err), true))
		return
	}
	if len(values) == 0 {
		return
	}
	last := values[len(values)-1]
	if _, unit := last.(evaluator.ZUnit); !unit {
		fmt.Fprintln(a.Stdout, "=>", evaluator.Debug(last))
	}
}

func opensBlock(line string) bool {
	line = strings.TrimRight(line, " \t")
	return strings.HasSuffix(line, ":") || strings.HasSuffix(line, "->")
}
