// Package formatter implements the Zeal source code formatter.
package formatter

import (
	"strconv"
	"strings"

	"github.com/thomasrohde/zeal/pkg/ast"
)

const indent = "    "

// Printing levels, loosest first. A sub-expression printed below the level
// its position requires is wrapped in parentheses.
const (
	levelOpen = iota // if, while, fn, declarations and assignments
	levelPipeline
	levelOr
	levelAnd
	levelEquality
	levelComparison
	levelAdditive
	levelMultiplicative
	levelUnary
	levelCall
	levelPrimary
)

var precedence = map[ast.BinaryOp]int{
	ast.OpOrOr:   levelOr,
	ast.OpAndAnd: levelAnd,
	ast.OpEqEq:   levelEquality,
	ast.OpNeq:    levelEquality,
	ast.OpGt:     levelComparison,
	ast.OpLt:     levelComparison,
	ast.OpGtEq:   levelComparison,
	ast.OpLtEq:   levelComparison,
	ast.OpAdd:    levelAdditive,
	ast.OpSub:    levelAdditive,
	ast.OpMul:    levelMultiplicative,
	ast.OpDiv:    levelMultiplicative,
	ast.OpMod:    levelMultiplicative,
}

// printed is the rendering of one expression.
type printed struct {
	text  string
	level int
	// block is set when text ends with an indented block, which closes the
	// enclosing statement.
	block bool
	// lambda marks an unparenthesised fn, whose body extends to the end of
	// the statement.
	lambda bool
}

// Format pretty-prints a Zeal AST back to source code. Blocks are indented
// with four spaces, calls with arguments drop the '!', and a call whose first
// argument is not a primary is written as a pipeline.
func Format(program *ast.Program) string {
	if len(program.Statements) == 0 {
		return ""
	}
	lines := make([]string, len(program.Statements))
	for i, s := range program.Statements {
		lines[i] = formatStmt(s, 0)
	}
	return strings.Join(lines, "\n") + "\n"
}

// FormatExpr renders a single expression as it would appear at statement level.
func FormatExpr(e ast.Expr) string {
	return formatExpr(e, 0, true).text
}

// HasComments checks if a source string contains Zeal comments (# prefix).
// The formatter works on the AST, so comments do not survive formatting.
func HasComments(source string) bool {
	var quote byte
	for i := 0; i < len(source); i++ {
		c := source[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '#':
			return true
		}
	}
	return false
}

func formatStmt(s ast.Expr, depth int) string {
	return strings.Repeat(indent, depth) + formatExpr(s, depth, true).text
}

func formatBlock(stmts []ast.Expr, depth int) string {
	lines := make([]string, len(stmts))
	for i, s := range stmts {
		lines[i] = formatStmt(s, depth+1)
	}
	return strings.Join(lines, "\n")
}

// operand renders e for a position that requires at least level min.
// tail reports whether nothing follows e in the statement.
func operand(e ast.Expr, depth, min int, tail bool) printed {
	p := formatExpr(e, depth, tail)
	switch {
	case p.lambda && tail:
		return p
	case p.level < min, p.block && !tail:
		return printed{text: group(p, depth), level: levelPrimary}
	}
	return p
}

func group(p printed, depth int) string {
	if p.block {
		return "(" + p.text + "\n" + strings.Repeat(indent, depth) + ")"
	}
	return "(" + p.text + ")"
}

func formatExpr(e ast.Expr, depth int, tail bool) printed {
	switch expr := e.(type) {
	case *ast.IntLiteral:
		if expr.Value < 0 {
			return printed{text: strconv.FormatInt(int64(expr.Value), 10), level: levelUnary}
		}
		return printed{text: strconv.FormatInt(int64(expr.Value), 10), level: levelPrimary}

	case *ast.BoolLiteral:
		return printed{text: strconv.FormatBool(expr.Value), level: levelPrimary}

	case *ast.StrLiteral:
		quote := `"`
		if strings.Contains(expr.Value, quote) {
			quote = "'"
		}
		return printed{text: quote + expr.Value + quote, level: levelPrimary}

	case *ast.Ident:
		return printed{text: expr.Name, level: levelPrimary}

	case *ast.BuiltinExpr:
		return printed{text: expr.Name, level: levelPrimary}

	case *ast.GroupExpr:
		inner := formatExpr(expr.Inner, depth, true)
		return printed{text: group(inner, depth), level: levelPrimary}

	case *ast.UnaryExpr:
		inner := operand(expr.Operand, depth, levelUnary, tail)
		sep := ""
		if inner.text != "" && strings.ContainsRune("-><+/%&|!=*", rune(inner.text[0])) {
			sep = " "
		}
		return printed{text: string(expr.Op) + sep + inner.text, level: levelUnary, block: inner.block}

	case *ast.BinaryExpr:
		prec := precedence[expr.Op]
		left := operand(expr.Left, depth, prec, false)
		right := operand(expr.Right, depth, prec+1, tail)
		return printed{text: left.text + " " + string(expr.Op) + " " + right.text, level: prec, block: right.block}

	case *ast.GetExpr:
		recv := operand(expr.Receiver, depth, levelCall, false)
		return printed{text: recv.text + "." + expr.Name, level: levelCall}

	case *ast.CallExpr:
		return formatCall(expr, depth, tail)

	case *ast.LambdaExpr:
		return formatLambda(expr, depth, tail)

	case *ast.DeclExpr:
		if expr.Value == nil {
			return printed{text: expr.Target.Name + " :;", level: levelOpen}
		}
		val := formatExpr(expr.Value, depth, tail)
		return printed{text: expr.Target.Name + " := " + val.text, level: levelOpen, block: val.block}

	case *ast.AssignExpr:
		val := formatExpr(expr.Value, depth, tail)
		return printed{text: expr.Target.Name + " = " + val.text, level: levelOpen, block: val.block}

	case *ast.BlockExpr:
		// Only reachable for hand-built trees; branches print their blocks.
		return printed{text: "if true:\n" + formatBlock(expr.Statements, depth), level: levelOpen, block: true}

	case *ast.WhileExpr:
		cond := operand(expr.Cond, depth, levelPipeline, false)
		body := formatBody(expr.Body, depth, tail)
		return printed{text: "while " + cond.text + body.text, level: levelOpen, block: body.block}

	case *ast.IfExpr:
		return formatIf(expr, depth, tail)
	}
	return printed{level: levelPrimary}
}

// formatBody renders what follows the condition of if/else/while, starting
// with the ':'.
func formatBody(body ast.Expr, depth int, tail bool) printed {
	if block, ok := body.(*ast.BlockExpr); ok {
		return printed{text: ":\n" + formatBlock(block.Statements, depth), block: true}
	}
	p := formatExpr(body, depth, tail)
	if p.block && !tail {
		return printed{text: ": " + group(p, depth)}
	}
	return printed{text: ": " + p.text, block: p.block}
}

func formatIf(expr *ast.IfExpr, depth int, tail bool) printed {
	cond := operand(expr.Cond, depth, levelPipeline, false)

	thenTail := tail && expr.Else == nil
	var then printed
	if inner, ok := expr.Then.(*ast.IfExpr); ok && inner.Else == nil && expr.Else != nil {
		// keep a trailing else from binding to the inner if
		then = printed{text: ": " + group(formatExpr(inner, depth, true), depth)}
	} else {
		then = formatBody(expr.Then, depth, thenTail)
	}

	text := "if " + cond.text + then.text
	if expr.Else == nil {
		return printed{text: text, level: levelOpen, block: then.block}
	}

	sep := " "
	if then.block {
		sep = "\n" + strings.Repeat(indent, depth)
	}

	var els printed
	if elseIf, ok := expr.Else.(*ast.IfExpr); ok {
		inner := formatIf(elseIf, depth, tail)
		els = printed{text: " " + inner.text, block: inner.block}
	} else {
		els = formatBody(expr.Else, depth, tail)
	}
	return printed{text: text + sep + "else" + els.text, level: levelOpen, block: els.block}
}

func formatLambda(expr *ast.LambdaExpr, depth int, tail bool) printed {
	head := "fn "
	if len(expr.Params) > 0 {
		head += strings.Join(expr.Params, " ") + " "
	}
	head += "->"

	if len(expr.Body) == 1 && !isUnitDecl(expr.Body[0]) {
		body := formatExpr(expr.Body[0], depth, tail)
		if !body.block || tail {
			return printed{text: head + " " + body.text, level: levelOpen, block: body.block, lambda: true}
		}
	}
	return printed{text: head + "\n" + formatBlock(expr.Body, depth), level: levelOpen, block: true, lambda: true}
}

func formatCall(expr *ast.CallExpr, depth int, tail bool) printed {
	if len(expr.Args) == 0 {
		return printed{text: operand(expr.Callee, depth, levelPrimary, false).text + "!", level: levelCall}
	}

	first := expr.Args[0]
	if pipeable(expr.Callee) && !isLambda(first) && formatExpr(first, depth, false).level < levelPrimary {
		left := operand(first, depth, levelPipeline, false)
		p := printed{text: left.text + " |> " + formatExpr(expr.Callee, depth, false).text, level: levelPipeline}
		if len(expr.Args) > 1 {
			args := formatArgs(expr.Args[1:], depth, tail)
			p.text += " " + args.text
			p.block = args.block
		}
		return p
	}

	callee := operand(expr.Callee, depth, levelPrimary, false)
	args := formatArgs(expr.Args, depth, tail)
	return printed{text: callee.text + " " + args.text, level: levelCall, block: args.block}
}

// formatArgs renders juxtaposed arguments. Only the last one may be a bare fn.
func formatArgs(args []ast.Expr, depth int, tail bool) printed {
	parts := make([]string, len(args))
	var last printed
	for i, a := range args {
		last = operand(a, depth, levelPrimary, tail && i == len(args)-1)
		parts[i] = last.text
	}
	return printed{text: strings.Join(parts, " "), block: last.block}
}

// pipeable reports whether callee can follow '|>' and still be read back as
// the same callee.
func pipeable(callee ast.Expr) bool {
	switch callee.(type) {
	case *ast.Ident, *ast.BuiltinExpr, *ast.GroupExpr:
		return true
	}
	return false
}

func isLambda(e ast.Expr) bool {
	_, ok := e.(*ast.LambdaExpr)
	return ok
}

func isUnitDecl(e ast.Expr) bool {
	d, ok := e.(*ast.DeclExpr)
	return ok && d.Value == nil
}
