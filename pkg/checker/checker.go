// Package checker implements static checks of Zeal AST programs.
package checker

import (
	"fmt"

	"github.com/thomasrohde/zeal/pkg/ast"
	"github.com/thomasrohde/zeal/pkg/diagnostics"
)

type scope struct {
	bindings map[string]bool
	parent   *scope
}

func newScope(parent *scope) *scope {
	return &scope{bindings: make(map[string]bool), parent: parent}
}

func (s *scope) has(name string) bool {
	if s.bindings[name] {
		return true
	}
	if s.parent != nil {
		return s.parent.has(name)
	}
	return false
}

func (s *scope) add(name string) {
	s.bindings[name] = true
}

// deferredLambda is a lambda body waiting for its enclosing scopes to be
// complete.
type deferredLambda struct {
	fn    *ast.LambdaExpr
	scope *scope
}

type checker struct {
	diags   []diagnostics.Diagnostic
	lambdas []deferredLambda
}

// Check performs static analysis on a Zeal program and returns diagnostics.
//
// Statements are checked in order, so a name must be declared before it is
// used. Lambda bodies run later than they are written; they are checked
// after the whole program and see every name their enclosing scopes declare,
// wherever the declaration appears. Names declared in an inline if or while
// branch count as declared.
func Check(program *ast.Program) []diagnostics.Diagnostic {
	c := &checker{}
	root := newScope(nil)
	c.checkStatements(program.Statements, root)

	for len(c.lambdas) > 0 {
		next := c.lambdas[0]
		c.lambdas = c.lambdas[1:]
		c.checkLambdaBody(next.fn, next.scope)
	}
	return c.diags
}

func (c *checker) addDiag(code, msg string, span ast.Span, hint string) {
	c.diags = append(c.diags, diagnostics.MakeDiag(code, msg, &span, hint))
}

func (c *checker) checkStatements(stmts []ast.Expr, sc *scope) {
	for _, stmt := range stmts {
		c.checkExpr(stmt, sc)
	}
}

func (c *checker) checkLambdaBody(fn *ast.LambdaExpr, sc *scope) {
	frame := newScope(sc)
	seen := make(map[string]bool, len(fn.Params))
	for _, p := range fn.Params {
		if seen[p] {
			c.addDiag(diagnostics.ECheckDupParam, fmt.Sprintf("duplicate parameter '%s'", p), fn.Span,
				"the last argument bound to a repeated name wins")
		}
		seen[p] = true
		frame.add(p)
	}
	c.checkStatements(fn.Body, frame)
}

func (c *checker) checkExpr(e ast.Expr, sc *scope) {
	switch expr := e.(type) {
	case *ast.IntLiteral, *ast.BoolLiteral, *ast.StrLiteral, *ast.BuiltinExpr:
		// nothing to check

	case *ast.Ident:
		if !sc.has(expr.Name) {
			c.addDiag(diagnostics.ECheckUnbound, fmt.Sprintf("undefined variable '%s'", expr.Name), expr.Span,
				fmt.Sprintf("declare it first with '%s := value'", expr.Name))
		}

	case *ast.GroupExpr:
		c.checkExpr(expr.Inner, sc)

	case *ast.UnaryExpr:
		c.checkExpr(expr.Operand, sc)

	case *ast.BinaryExpr:
		c.checkExpr(expr.Left, sc)
		c.checkExpr(expr.Right, sc)

	case *ast.GetExpr:
		c.checkExpr(expr.Receiver, sc)

	case *ast.CallExpr:
		if lit := literalCallee(expr.Callee); lit != nil {
			c.addDiag(diagnostics.ECheckNotCallable, fmt.Sprintf("%s is not callable", lit.Kind()), lit.NodeSpan(),
				"only functions and builtins can be called")
		}
		c.checkExpr(expr.Callee, sc)
		for _, arg := range expr.Args {
			c.checkExpr(arg, sc)
		}

	case *ast.LambdaExpr:
		c.lambdas = append(c.lambdas, deferredLambda{fn: expr, scope: sc})

	case *ast.DeclExpr:
		if expr.Value != nil {
			c.checkExpr(expr.Value, sc)
		}
		sc.add(expr.Target.Name)

	case *ast.AssignExpr:
		c.checkExpr(expr.Value, sc)
		if !sc.has(expr.Target.Name) {
			c.addDiag(diagnostics.ECheckUnbound, fmt.Sprintf("cannot assign to undefined variable '%s'", expr.Target.Name),
				expr.Target.Span, fmt.Sprintf("use '%s := value' to declare it", expr.Target.Name))
		}

	case *ast.BlockExpr:
		c.checkStatements(expr.Statements, newScope(sc))

	case *ast.WhileExpr:
		c.checkExpr(expr.Cond, sc)
		c.checkExpr(expr.Body, sc)

	case *ast.IfExpr:
		c.checkExpr(expr.Cond, sc)
		c.checkExpr(expr.Then, sc)
		if expr.Else != nil {
			c.checkExpr(expr.Else, sc)
		}
	}
}

// literalCallee returns the literal a call would try to invoke, looking
// through parentheses, or nil.
func literalCallee(e ast.Expr) ast.Expr {
	for {
		switch expr := e.(type) {
		case *ast.GroupExpr:
			e = expr.Inner
		case *ast.IntLiteral, *ast.BoolLiteral, *ast.StrLiteral:
			return expr
		default:
			return nil
		}
	}
}
