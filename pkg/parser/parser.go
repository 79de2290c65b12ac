// Package parser implements the Zeal language parser.
package parser

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/thomasrohde/zeal/pkg/ast"
	"github.com/thomasrohde/zeal/pkg/diagnostics"
	"github.com/thomasrohde/zeal/pkg/lexer"
)

type parser struct {
	tokens []lexer.Token
	pos    int
	diags  []diagnostics.Diagnostic

	// anchor is the column of the first token of the statement being parsed.
	// Operators that continue an expression on the next line must not start
	// to the left of it. Inside a call argument line the anchor is the
	// argument's column and continuation must start strictly to its right.
	anchor  int
	argLine bool
}

// Parse scans source and parses it into an AST.
func Parse(source, filename string) (*ast.Program, []diagnostics.Diagnostic) {
	tokens, err := lexer.Scan(source, filename)
	if err != nil {
		var le *lexer.LexError
		if errors.As(err, &le) {
			return nil, []diagnostics.Diagnostic{le.Diag}
		}
		return nil, []diagnostics.Diagnostic{diagnostics.MakeDiag(diagnostics.ELex, err.Error(), nil, "")}
	}
	return ParseTokens(tokens)
}

// ParseTokens parses a token stream produced by lexer.Scan. Parsing stops at
// the first malformed construct; the returned diagnostics then hold exactly
// one E_PARSE entry.
func ParseTokens(tokens []lexer.Token) (*ast.Program, []diagnostics.Diagnostic) {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != lexer.TokEOF {
		var span ast.Span
		if len(tokens) > 0 {
			span = tokens[len(tokens)-1].Span
		}
		tokens = append(tokens[:len(tokens):len(tokens)], lexer.Token{Type: lexer.TokEOF, Span: span})
	}

	p := &parser{tokens: tokens, pos: 0}
	prog := p.parseProgram()
	if len(p.diags) > 0 {
		return nil, p.diags
	}
	return prog, nil
}

func (p *parser) current() lexer.Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[p.pos]
}

func (p *parser) peek() lexer.TokenType {
	return p.current().Type
}

func (p *parser) peekAt(offset int) lexer.TokenType {
	idx := p.pos + offset
	if idx >= len(p.tokens) {
		return lexer.TokEOF
	}
	return p.tokens[idx].Type
}

func (p *parser) previous() lexer.TokenType {
	if p.pos == 0 {
		return lexer.TokEOF
	}
	return p.tokens[p.pos-1].Type
}

// afterBlock reports whether the last consumed token closed an indented
// block. An expression never continues past a closed block.
func (p *parser) afterBlock() bool {
	return p.previous() == lexer.TokEndBlock
}

func (p *parser) advance() lexer.Token {
	tok := p.current()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) expect(typ lexer.TokenType, context string) (lexer.Token, bool) {
	tok := p.current()
	if tok.Type != typ {
		p.addError(fmt.Sprintf("expected %s %s, got %s", typ, context, describe(tok)), &tok.Span, "")
		return tok, false
	}
	return p.advance(), true
}

func (p *parser) addError(msg string, span *ast.Span, hint string) {
	if len(p.diags) > 0 {
		return
	}
	p.diags = append(p.diags, diagnostics.MakeDiag(diagnostics.EParse, msg, span, hint))
}

func (p *parser) spanFromTo(start, end ast.Span) ast.Span {
	return ast.Span{
		File:      start.File,
		StartLine: start.StartLine,
		StartCol:  start.StartCol,
		EndLine:   end.EndLine,
		EndCol:    end.EndCol,
		Offset:    start.Offset,
	}
}

func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.TokIdent:
		return fmt.Sprintf("'%s'", tok.Value)
	case lexer.TokIntLit:
		return fmt.Sprintf("integer %s", tok.Value)
	case lexer.TokStringLit:
		return fmt.Sprintf("string %q", tok.Value)
	}
	return tok.Type.String()
}

func (p *parser) skipEOL() {
	for p.peek() == lexer.TokEOL {
		p.advance()
	}
}

// continuesOnNextLine reports whether an operator of type typ opens the next
// line at or right of the statement anchor. The caller then drops the
// end-of-line token and keeps extending the current expression.
func (p *parser) continuesOnNextLine(typ lexer.TokenType) bool {
	if p.peek() != lexer.TokEOL || p.pos+1 >= len(p.tokens) {
		return false
	}
	next := p.tokens[p.pos+1]
	if next.Type != typ {
		return false
	}
	if p.argLine {
		return next.Span.StartCol > p.anchor
	}
	return next.Span.StartCol >= p.anchor
}

// argumentLineFollows reports whether the next line holds another argument
// of a `f!` call: an expression indented past the anchor.
func (p *parser) argumentLineFollows() bool {
	if p.peek() != lexer.TokEOL || p.pos+1 >= len(p.tokens) {
		return false
	}
	next := p.tokens[p.pos+1]
	if next.Span.StartCol <= p.anchor {
		return false
	}
	switch next.Type {
	case lexer.TokPrint, lexer.TokMinus, lexer.TokBang, lexer.TokIf, lexer.TokWhile:
		return true
	}
	return startsArgument(next.Type)
}

// parseArgumentLine parses one argument line. Its first token becomes the
// anchor for anything nested in it.
func (p *parser) parseArgumentLine() ast.Expr {
	savedAnchor, savedArgLine := p.anchor, p.argLine
	p.anchor, p.argLine = p.current().Span.StartCol, true
	defer func() { p.anchor, p.argLine = savedAnchor, savedArgLine }()

	return p.parseExpr()
}

// --- Program ---

func (p *parser) parseProgram() *ast.Program {
	startSpan := p.current().Span

	var stmts []ast.Expr
	for {
		p.skipEOL()
		if p.peek() == lexer.TokEOF {
			break
		}
		stmt := p.parseStatement()
		if stmt == nil {
			return nil
		}
		stmts = append(stmts, stmt)
	}

	return &ast.Program{
		Span:       p.spanFromTo(startSpan, p.current().Span),
		Statements: stmts,
	}
}

// --- Statements ---

func (p *parser) parseStatement() ast.Expr {
	savedAnchor, savedArgLine := p.anchor, p.argLine
	p.anchor, p.argLine = p.current().Span.StartCol, false
	defer func() { p.anchor, p.argLine = savedAnchor, savedArgLine }()

	stmt := p.parseStatementForm()
	if stmt == nil {
		return nil
	}
	if !p.endStatement() {
		return nil
	}
	return stmt
}

// parseStatementForm parses an expression optionally followed by a
// declaration or assignment tail. It is shared by full statements and
// inline bodies.
func (p *parser) parseStatementForm() ast.Expr {
	expr := p.parseExpr()
	if expr == nil {
		return nil
	}
	switch p.peek() {
	case lexer.TokColon:
		return p.parseDeclaration(expr)
	case lexer.TokEquals:
		return p.parseAssignment(expr)
	}
	return expr
}

func (p *parser) atTerminator() bool {
	switch p.peek() {
	case lexer.TokSemicolon, lexer.TokEOL, lexer.TokEOF, lexer.TokEndBlock:
		return true
	}
	return false
}

func (p *parser) endStatement() bool {
	switch p.peek() {
	case lexer.TokSemicolon, lexer.TokEOL:
		p.advance()
		return true
	case lexer.TokEOF, lexer.TokEndBlock:
		return true
	}
	if p.afterBlock() {
		return true
	}
	tok := p.current()
	p.addError(fmt.Sprintf("expected end of statement, got %s", describe(tok)), &tok.Span,
		"separate statements with a newline or ';'")
	return false
}

func (p *parser) parseDeclaration(target ast.Expr) ast.Expr {
	ident, ok := target.(*ast.Ident)
	if !ok {
		span := target.NodeSpan()
		p.addError("invalid declaration target: expected an identifier", &span, "")
		return nil
	}
	colon := p.advance() // consume ':'

	if p.atTerminator() {
		return &ast.DeclExpr{
			Span:   p.spanFromTo(ident.Span, colon.Span),
			Target: ident,
		}
	}
	if p.peek() != lexer.TokEquals {
		tok := p.current()
		p.addError(fmt.Sprintf("malformed declaration: expected '=' after ':', got %s", describe(tok)),
			&tok.Span, fmt.Sprintf("write '%s := value'", ident.Name))
		return nil
	}
	p.advance() // consume '='

	value := p.parseExpr()
	if value == nil {
		return nil
	}
	return &ast.DeclExpr{
		Span:   p.spanFromTo(ident.Span, value.NodeSpan()),
		Target: ident,
		Value:  value,
	}
}

func (p *parser) parseAssignment(target ast.Expr) ast.Expr {
	ident, ok := target.(*ast.Ident)
	if !ok {
		span := target.NodeSpan()
		p.addError("invalid assignment target: expected an identifier", &span, "")
		return nil
	}
	p.advance() // consume '='

	value := p.parseExpr()
	if value == nil {
		return nil
	}
	return &ast.AssignExpr{
		Span:   p.spanFromTo(ident.Span, value.NodeSpan()),
		Target: ident,
		Value:  value,
	}
}

// --- Blocks and bodies ---

func (p *parser) parseBlock() *ast.BlockExpr {
	start := p.advance() // consume BeginBlock

	var stmts []ast.Expr
	end := start.Span
	for {
		p.skipEOL()
		if p.peek() == lexer.TokEndBlock {
			p.advance()
			break
		}
		if p.peek() == lexer.TokEOF {
			tok := p.current()
			p.addError("unexpected end of file inside block", &tok.Span, "")
			return nil
		}
		stmt := p.parseStatement()
		if stmt == nil {
			return nil
		}
		stmts = append(stmts, stmt)
		end = stmt.NodeSpan()
	}

	return &ast.BlockExpr{
		Span:       p.spanFromTo(start.Span, end),
		Statements: stmts,
	}
}

// parseBody parses what follows the ':' of an if/else/while: an indented
// block or a single inline statement form.
func (p *parser) parseBody() ast.Expr {
	if p.peek() == lexer.TokBeginBlock {
		block := p.parseBlock()
		if block == nil {
			return nil
		}
		return block
	}
	return p.parseStatementForm()
}

// --- Expressions ---

func (p *parser) parseExpr() ast.Expr {
	switch p.peek() {
	case lexer.TokIf:
		return p.parseIf()
	case lexer.TokWhile:
		return p.parseWhile()
	default:
		return p.parsePipeline()
	}
}

func (p *parser) parseIf() ast.Expr {
	start := p.advance() // consume 'if'

	cond := p.parseExpr()
	if cond == nil {
		return nil
	}
	if _, ok := p.expect(lexer.TokColon, "after if condition"); !ok {
		return nil
	}
	then := p.parseBody()
	if then == nil {
		return nil
	}
	end := then.NodeSpan()

	// An else may sit on the line after an inline then-branch.
	if p.peek() == lexer.TokEOL && p.peekAt(1) == lexer.TokElse {
		p.advance()
	}

	var elseExpr ast.Expr
	if p.peek() == lexer.TokElse {
		p.advance() // consume 'else'
		if p.peek() == lexer.TokIf {
			elseExpr = p.parseIf()
		} else {
			if _, ok := p.expect(lexer.TokColon, "after else"); !ok {
				return nil
			}
			elseExpr = p.parseBody()
		}
		if elseExpr == nil {
			return nil
		}
		end = elseExpr.NodeSpan()
	}

	return &ast.IfExpr{
		Span: p.spanFromTo(start.Span, end),
		Cond: cond,
		Then: then,
		Else: elseExpr,
	}
}

func (p *parser) parseWhile() ast.Expr {
	start := p.advance() // consume 'while'

	cond := p.parseExpr()
	if cond == nil {
		return nil
	}
	if _, ok := p.expect(lexer.TokColon, "after while condition"); !ok {
		return nil
	}
	body := p.parseBody()
	if body == nil {
		return nil
	}
	return &ast.WhileExpr{
		Span: p.spanFromTo(start.Span, body.NodeSpan()),
		Cond: cond,
		Body: body,
	}
}

// parsePipeline handles `x |> f a...`, rewriting it to the call f(x, a...).
func (p *parser) parsePipeline() ast.Expr {
	left := p.parseOr()
	if left == nil {
		return nil
	}

	for {
		if p.afterBlock() {
			return left
		}
		if p.continuesOnNextLine(lexer.TokPipeline) {
			p.advance()
		}
		if p.peek() != lexer.TokPipeline {
			return left
		}
		p.advance()

		rhs := p.parseCall()
		if rhs == nil {
			return nil
		}
		span := p.spanFromTo(left.NodeSpan(), rhs.NodeSpan())
		if call, ok := rhs.(*ast.CallExpr); ok {
			args := make([]ast.Expr, 0, len(call.Args)+1)
			args = append(args, left)
			args = append(args, call.Args...)
			left = &ast.CallExpr{Span: span, Callee: call.Callee, Args: args}
		} else {
			left = &ast.CallExpr{Span: span, Callee: rhs, Args: []ast.Expr{left}}
		}
	}
}

var (
	orOps             = map[lexer.TokenType]ast.BinaryOp{lexer.TokOrOr: ast.OpOrOr}
	andOps            = map[lexer.TokenType]ast.BinaryOp{lexer.TokAndAnd: ast.OpAndAnd}
	equalityOps       = map[lexer.TokenType]ast.BinaryOp{lexer.TokEqEq: ast.OpEqEq, lexer.TokBangEq: ast.OpNeq}
	comparisonOps     = map[lexer.TokenType]ast.BinaryOp{lexer.TokGt: ast.OpGt, lexer.TokGtEq: ast.OpGtEq, lexer.TokLt: ast.OpLt, lexer.TokLtEq: ast.OpLtEq}
	additiveOps       = map[lexer.TokenType]ast.BinaryOp{lexer.TokPlus: ast.OpAdd, lexer.TokMinus: ast.OpSub}
	multiplicativeOps = map[lexer.TokenType]ast.BinaryOp{lexer.TokStar: ast.OpMul, lexer.TokSlashSlash: ast.OpDiv, lexer.TokPercent: ast.OpMod}
)

func (p *parser) parseOr() ast.Expr {
	return p.parseBinary(p.parseAnd, orOps, lexer.TokOrOr)
}

func (p *parser) parseAnd() ast.Expr {
	return p.parseBinary(p.parseEquality, andOps, lexer.TokAndAnd)
}

func (p *parser) parseEquality() ast.Expr {
	return p.parseBinary(p.parseComparison, equalityOps, -1)
}

func (p *parser) parseComparison() ast.Expr {
	return p.parseBinary(p.parseAdditive, comparisonOps, -1)
}

func (p *parser) parseAdditive() ast.Expr {
	return p.parseBinary(p.parseMultiplicative, additiveOps, -1)
}

func (p *parser) parseMultiplicative() ast.Expr {
	return p.parseBinary(p.parseUnary, multiplicativeOps, -1)
}

// parseBinary is a left-associative loop over one precedence level. When
// continued is a valid token type, that operator may also start the next
// line.
func (p *parser) parseBinary(next func() ast.Expr, ops map[lexer.TokenType]ast.BinaryOp, continued lexer.TokenType) ast.Expr {
	left := next()
	if left == nil {
		return nil
	}

	for {
		if p.afterBlock() {
			return left
		}
		if continued >= 0 && p.continuesOnNextLine(continued) {
			p.advance()
		}
		if p.peek() == lexer.TokSlash {
			tok := p.current()
			p.addError("unexpected '/'", &tok.Span, "use '//' for integer division")
			return nil
		}
		op, ok := ops[p.peek()]
		if !ok {
			return left
		}
		p.advance()
		right := next()
		if right == nil {
			return nil
		}
		left = &ast.BinaryExpr{
			Span:  p.spanFromTo(left.NodeSpan(), right.NodeSpan()),
			Op:    op,
			Left:  left,
			Right: right,
		}
	}
}

func (p *parser) parseUnary() ast.Expr {
	var op ast.UnaryOp
	switch p.peek() {
	case lexer.TokMinus:
		op = ast.OpNeg
	case lexer.TokBang:
		op = ast.OpNot
	default:
		return p.parseCall()
	}
	start := p.advance()
	operand := p.parseUnary()
	if operand == nil {
		return nil
	}
	return &ast.UnaryExpr{
		Span:    p.spanFromTo(start.Span, operand.NodeSpan()),
		Op:      op,
		Operand: operand,
	}
}

// startsArgument reports whether a token may begin a juxtaposed call argument.
func startsArgument(t lexer.TokenType) bool {
	switch t {
	case lexer.TokIdent, lexer.TokLParen, lexer.TokTrue, lexer.TokFalse,
		lexer.TokStringLit, lexer.TokIntLit, lexer.TokFn:
		return true
	}
	return false
}

// parseCall handles field access and both call forms: `f! a b` and `f a b`.
// A call on `recv.name` becomes name(recv, args...). After `f!` further
// arguments may follow one per line, indented past the anchor.
func (p *parser) parseCall() ast.Expr {
	expr := p.parsePrimary()
	if expr == nil {
		return nil
	}

	for {
		if p.afterBlock() {
			return expr
		}
		switch {
		case p.peek() == lexer.TokDot:
			p.advance() // consume '.'
			name, ok := p.expect(lexer.TokIdent, "after '.'")
			if !ok {
				return nil
			}
			expr = &ast.GetExpr{
				Span:     p.spanFromTo(expr.NodeSpan(), name.Span),
				Receiver: expr,
				Name:     name.Value,
			}

		case p.peek() == lexer.TokBang || startsArgument(p.peek()):
			end := expr.NodeSpan()
			bang := p.peek() == lexer.TokBang
			if bang {
				end = p.advance().Span
			}
			var args []ast.Expr
			for !p.afterBlock() && startsArgument(p.peek()) {
				arg := p.parsePrimary()
				if arg == nil {
					return nil
				}
				args = append(args, arg)
				end = arg.NodeSpan()
			}
			for bang && !p.afterBlock() && p.argumentLineFollows() {
				p.advance() // consume EOL
				arg := p.parseArgumentLine()
				if arg == nil {
					return nil
				}
				args = append(args, arg)
				end = arg.NodeSpan()
			}

			callee := expr
			if get, ok := expr.(*ast.GetExpr); ok {
				callee = &ast.Ident{Span: get.Span, Name: get.Name}
				args = append([]ast.Expr{get.Receiver}, args...)
			}
			expr = &ast.CallExpr{
				Span:   p.spanFromTo(expr.NodeSpan(), end),
				Callee: callee,
				Args:   args,
			}

		default:
			return expr
		}
	}
}

func (p *parser) parsePrimary() ast.Expr {
	switch p.peek() {
	case lexer.TokIntLit:
		tok := p.advance()
		val, err := strconv.ParseInt(tok.Value, 10, 32)
		if err != nil {
			p.addError(fmt.Sprintf("invalid numeric literal '%s'", tok.Value), &tok.Span, "")
			return nil
		}
		return &ast.IntLiteral{Span: tok.Span, Value: int32(val)}

	case lexer.TokStringLit:
		tok := p.advance()
		return &ast.StrLiteral{Span: tok.Span, Value: tok.Value}

	case lexer.TokTrue:
		tok := p.advance()
		return &ast.BoolLiteral{Span: tok.Span, Value: true}

	case lexer.TokFalse:
		tok := p.advance()
		return &ast.BoolLiteral{Span: tok.Span, Value: false}

	case lexer.TokIdent:
		tok := p.advance()
		return &ast.Ident{Span: tok.Span, Name: tok.Value}

	case lexer.TokPrint:
		tok := p.advance()
		return &ast.BuiltinExpr{Span: tok.Span, Name: tok.Value}

	case lexer.TokLParen:
		open := p.advance()
		inner := p.parseExpr()
		if inner == nil {
			return nil
		}
		if p.peek() != lexer.TokRParen {
			tok := p.current()
			p.addError(fmt.Sprintf("unclosed parenthesis: expected ')', got %s", describe(tok)), &open.Span, "")
			return nil
		}
		closing := p.advance()
		return &ast.GroupExpr{Span: p.spanFromTo(open.Span, closing.Span), Inner: inner}

	case lexer.TokFn:
		return p.parseLambda()

	case lexer.TokFor, lexer.TokReturn, lexer.TokThen, lexer.TokElse:
		tok := p.current()
		p.addError(fmt.Sprintf("unexpected keyword '%s'", tok.Value), &tok.Span,
			fmt.Sprintf("'%s' is reserved and cannot start an expression", tok.Value))
		return nil

	default:
		tok := p.current()
		p.addError(fmt.Sprintf("unexpected %s", describe(tok)), &tok.Span, "")
		return nil
	}
}

// parseLambda parses `fn p1 p2 ... -> body`.
func (p *parser) parseLambda() ast.Expr {
	start := p.advance() // consume 'fn'

	var params []string
	for p.peek() != lexer.TokArrow {
		tok := p.current()
		if tok.Type != lexer.TokIdent {
			p.addError(fmt.Sprintf("expected parameter name or '->', got %s", describe(tok)), &tok.Span, "")
			return nil
		}
		params = append(params, tok.Value)
		p.advance()
	}
	arrow := p.advance() // consume '->'

	var body []ast.Expr
	end := arrow.Span
	if p.peek() == lexer.TokBeginBlock {
		block := p.parseBlock()
		if block == nil {
			return nil
		}
		body = block.Statements
		end = block.Span
	} else {
		stmt := p.parseStatementForm()
		if stmt == nil {
			return nil
		}
		body = []ast.Expr{stmt}
		end = stmt.NodeSpan()
	}

	return &ast.LambdaExpr{
		Span:   p.spanFromTo(start.Span, end),
		Params: params,
		Body:   body,
	}
}
