// Package diagnostics defines Zeal diagnostic types for lex/parse/check/runtime errors.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/thomasrohde/zeal/pkg/ast"
)

// Diagnostic code constants.
const (
	ELex              = "E_LEX"
	EParse            = "E_PARSE"
	EUnbound          = "E_UNBOUND"
	EAssignUndefined  = "E_ASSIGN_UNDEFINED"
	EType             = "E_TYPE"
	ENotCallable      = "E_NOT_CALLABLE"
	EUnknownBuiltin   = "E_UNKNOWN_BUILTIN"
	EArity            = "E_ARITY"
	EEmptyBody        = "E_EMPTY_BODY"
	EDivZero          = "E_DIV_ZERO"
	EOverflow         = "E_OVERFLOW"
	EDepth            = "E_DEPTH"
	EBudget           = "E_BUDGET"
	ECancelled        = "E_CANCELLED"
	EField            = "E_FIELD"
	EIO               = "E_IO"
	EConfig           = "E_CONFIG"
	ECheckUnbound     = "E_CHECK_UNBOUND"
	ECheckNotCallable = "E_CHECK_NOT_CALLABLE"
	ECheckDupParam    = "E_CHECK_DUP_PARAM"
)

// Diagnostic represents a lex, parse, check, or runtime diagnostic.
type Diagnostic struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Span    *ast.Span `json:"span,omitempty"`
	Hint    string    `json:"hint,omitempty"`
}

// MakeDiag creates a new Diagnostic.
func MakeDiag(code, message string, span *ast.Span, hint string) Diagnostic {
	return Diagnostic{
		Code:    code,
		Message: message,
		Span:    span,
		Hint:    hint,
	}
}

// IsRuntime reports whether code belongs to the evaluation phase.
func IsRuntime(code string) bool {
	switch code {
	case ELex, EParse, EIO, EConfig, ECheckUnbound, ECheckNotCallable, ECheckDupParam:
		return false
	}
	return true
}

// FormatDiagnostic formats a single diagnostic for display.
func FormatDiagnostic(d Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(d)
		return string(b)
	}
	loc := "<unknown>"
	if d.Span != nil {
		loc = fmt.Sprintf("%s:%d:%d", d.Span.File, d.Span.StartLine, d.Span.StartCol)
	}
	out := fmt.Sprintf("error[%s]: %s\n  --> %s", d.Code, d.Message, loc)
	if d.Hint != "" {
		out += fmt.Sprintf("\n  hint: %s", d.Hint)
	}
	return out
}

// FormatDiagnostics formats a slice of diagnostics for display.
func FormatDiagnostics(diags []Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(diags)
		return string(b)
	}
	parts := make([]string, len(diags))
	for i, d := range diags {
		parts[i] = FormatDiagnostic(d, true)
	}
	return strings.Join(parts, "\n\n")
}
