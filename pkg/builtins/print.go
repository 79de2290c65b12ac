package builtins

import (
	"fmt"
	"io"
	"strings"

	"github.com/thomasrohde/zeal/pkg/evaluator"
)

// Style selects how print renders its arguments.
type Style string

const (
	// StylePlain prints display forms separated by spaces: `1 fizz true`.
	StylePlain Style = "plain"
	// StyleDebug prints the argument list with type tags: `[Int(1), String("fizz")]`.
	StyleDebug Style = "debug"
)

// ParseStyle parses a print style name. The empty string selects StylePlain.
func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case "", StylePlain:
		return StylePlain, nil
	case StyleDebug:
		return StyleDebug, nil
	}
	return StylePlain, fmt.Errorf("unknown print style %q (want plain or debug)", s)
}

// RegisterDefaults adds every builtin using the given print style.
func RegisterDefaults(r *Registry, style Style) {
	r.Register(Print(style))
}

// Print returns the print builtin. It writes its arguments followed by a
// newline and returns the last argument, or unit when called without any.
func Print(style Style) Fn {
	return Fn{
		Name: "print",
		Execute: func(out io.Writer, args []evaluator.ZValue) (evaluator.ZValue, error) {
			if _, err := io.WriteString(out, FormatArgs(style, args)+"\n"); err != nil {
				return nil, err
			}
			if len(args) == 0 {
				return evaluator.NewUnit(), nil
			}
			return args[len(args)-1], nil
		},
	}
}

// FormatArgs renders a print argument list without the trailing newline.
func FormatArgs(style Style, args []evaluator.ZValue) string {
	parts := make([]string, len(args))
	if style == StyleDebug {
		for i, a := range args {
			parts[i] = evaluator.Debug(a)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	for i, a := range args {
		parts[i] = evaluator.Display(a)
	}
	return strings.Join(parts, " ")
}
