// Package lexer implements the Zeal language tokenizer.
//
// Zeal is indentation sensitive. Besides ordinary tokens the scanner emits
// TokBeginBlock/TokEndBlock around indented bodies introduced by ':' or '->',
// and TokEOL at the end of every line that produced tokens.
package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/thomasrohde/zeal/pkg/ast"
	"github.com/thomasrohde/zeal/pkg/diagnostics"
)

// TokenType identifies the type of a lexer token.
type TokenType int

const (
	// Keywords
	TokTrue TokenType = iota
	TokFalse
	TokFn
	TokIf
	TokElse
	TokWhile
	TokPrint
	TokFor
	TokReturn
	TokThen

	// Literals
	TokIntLit
	TokStringLit

	// Identifiers (alphanumeric or symbolic)
	TokIdent

	// Punctuation
	TokLParen    // (
	TokRParen    // )
	TokDot       // .
	TokSemicolon // ;
	TokColon     // :

	// Operators
	TokBang        // !
	TokBangEq      // !=
	TokEquals      // =
	TokEqEq        // ==
	TokGt          // >
	TokGtEq        // >=
	TokLt          // <
	TokLtEq        // <=
	TokAmp         // &
	TokAndAnd      // &&
	TokPipe        // |
	TokOrOr        // ||
	TokSlash       // /
	TokSlashSlash  // //
	TokPercent     // %
	TokMinus       // -
	TokPlus        // +
	TokStar        // *
	TokArrow       // ->
	TokPipeline    // |>

	// Structure
	TokBeginBlock
	TokEndBlock
	TokEOL
	TokEOF
)

var tokenNames = map[TokenType]string{
	TokTrue:       "true",
	TokFalse:      "false",
	TokFn:         "fn",
	TokIf:         "if",
	TokElse:       "else",
	TokWhile:      "while",
	TokPrint:      "print",
	TokFor:        "for",
	TokReturn:     "return",
	TokThen:       "then",
	TokIntLit:     "integer",
	TokStringLit:  "string",
	TokIdent:      "identifier",
	TokLParen:     "'('",
	TokRParen:     "')'",
	TokDot:        "'.'",
	TokSemicolon:  "';'",
	TokColon:      "':'",
	TokBang:       "'!'",
	TokBangEq:     "'!='",
	TokEquals:     "'='",
	TokEqEq:       "'=='",
	TokGt:         "'>'",
	TokGtEq:       "'>='",
	TokLt:         "'<'",
	TokLtEq:       "'<='",
	TokAmp:        "'&'",
	TokAndAnd:     "'&&'",
	TokPipe:       "'|'",
	TokOrOr:       "'||'",
	TokSlash:      "'/'",
	TokSlashSlash: "'//'",
	TokPercent:    "'%'",
	TokMinus:      "'-'",
	TokPlus:       "'+'",
	TokStar:       "'*'",
	TokArrow:      "'->'",
	TokPipeline:   "'|>'",
	TokBeginBlock: "indented block",
	TokEndBlock:   "end of block",
	TokEOL:        "end of line",
	TokEOF:        "end of file",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token represents a single lexer token.
type Token struct {
	Type  TokenType
	Value string
	Span  ast.Span
}

func (t Token) String() string {
	switch t.Type {
	case TokIdent, TokIntLit:
		return fmt.Sprintf("%s(%s)", t.Type, t.Value)
	case TokStringLit:
		return fmt.Sprintf("string(%q)", t.Value)
	}
	return t.Type.String()
}

// reserved maps every keyword and operator spelling to its token type.
// Scanned words and symbol runs that are not listed become TokIdent.
var reserved = map[string]TokenType{
	"true":   TokTrue,
	"false":  TokFalse,
	"fn":     TokFn,
	"if":     TokIf,
	"else":   TokElse,
	"while":  TokWhile,
	"print":  TokPrint,
	"for":    TokFor,
	"return": TokReturn,
	"then":   TokThen,

	"!":  TokBang,
	"!=": TokBangEq,
	"=":  TokEquals,
	"==": TokEqEq,
	">":  TokGt,
	">=": TokGtEq,
	"<":  TokLt,
	"<=": TokLtEq,
	"&":  TokAmp,
	"&&": TokAndAnd,
	"|":  TokPipe,
	"||": TokOrOr,
	"/":  TokSlash,
	"//": TokSlashSlash,
	"%":  TokPercent,
	"-":  TokMinus,
	"+":  TokPlus,
	"*":  TokStar,
	"->": TokArrow,
	"|>": TokPipeline,
}

// tabWidth is the number of columns a tab advances.
const tabWidth = 4

type scanner struct {
	source   string
	filename string
	pos      int
	line     int
	col      int

	tokens []Token

	// block tracking; parens records the enclosing paren depth of each
	// open block, which starts counting from zero again
	levels        []int
	parens        []int
	pending       bool
	pendingLine   int
	pendingIndent int
	// pendingHard is set when the pending block is an if, else, while or
	// lambda body, which must be indented. A bare declaration's colon may
	// end the line instead; pendingEOL then marks where that line ended.
	pendingHard bool
	pendingEOL  ast.Span
	header      bool // an if, else or while is waiting for its ':'

	lastLine   int // line of the last emitted token, 0 before the first
	lineIndent int // column of the first token on the current line
	parenDepth int
}

func newScanner(source, filename string) *scanner {
	return &scanner{
		source:   source,
		filename: filename,
		pos:      0,
		line:     1,
		col:      1,
	}
}

func (s *scanner) atEnd() bool {
	return s.pos >= len(s.source)
}

func (s *scanner) peek() rune {
	if s.atEnd() {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s.source[s.pos:])
	return r
}

func (s *scanner) advance() rune {
	r, size := utf8.DecodeRuneInString(s.source[s.pos:])
	s.pos += size
	switch r {
	case '\n':
		s.line++
		s.col = 1
	case '\t':
		s.col += tabWidth
	default:
		s.col++
	}
	return r
}

func (s *scanner) span(startLine, startCol, startPos int) ast.Span {
	return ast.Span{
		File:      s.filename,
		StartLine: startLine,
		StartCol:  startCol,
		EndLine:   s.line,
		EndCol:    s.col,
		Offset:    startPos,
	}
}

func (s *scanner) pointSpan() ast.Span {
	return s.span(s.line, s.col, s.pos)
}

func (s *scanner) emit(tok Token) {
	s.tokens = append(s.tokens, tok)
}

func (s *scanner) emitStructural(typ TokenType, span ast.Span) {
	span.EndLine = span.StartLine
	span.EndCol = span.StartCol
	s.tokens = append(s.tokens, Token{Type: typ, Span: span})
}

func isWordChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isSymbolChar(r rune) bool {
	return strings.ContainsRune("-><+/%&|!=*", r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// skipTrivia consumes whitespace and comments, emitting TokEOL at the end of
// every line that produced tokens.
func (s *scanner) skipTrivia() {
	for !s.atEnd() {
		switch ch := s.peek(); ch {
		case ' ', '\t', '\r':
			s.advance()
		case '\n':
			if s.lastLine == s.line && s.parenDepth == 0 {
				if s.pending {
					s.pendingEOL = s.pointSpan()
				} else {
					s.endLine(s.pointSpan())
				}
			}
			s.advance()
		case '#':
			for !s.atEnd() && s.peek() != '\n' {
				s.advance()
			}
		default:
			return
		}
	}
}

// beforeToken opens a pending block and closes finished ones ahead of the
// token starting at (line, col).
func (s *scanner) beforeToken() error {
	line, col := s.line, s.col
	if s.pending {
		s.pending = false
		if line != s.pendingLine {
			switch {
			case col > s.pendingIndent:
				s.levels = append(s.levels, col)
				s.parens = append(s.parens, s.parenDepth)
				s.parenDepth = 0
				s.emitStructural(TokBeginBlock, s.pointSpan())
			case s.pendingHard:
				return s.lexError(line, col, s.pos, "expected an indented block",
					fmt.Sprintf("indent the body past column %d", s.pendingIndent))
			case s.parenDepth == 0:
				s.endLine(s.pendingEOL)
			}
		}
	}
	if line != s.lastLine {
		s.lineIndent = col
		s.closeBlocks(col)
	}
	return nil
}

func (s *scanner) closeBlocks(col int) {
	for len(s.levels) > 0 && s.levels[len(s.levels)-1] > col {
		s.levels = s.levels[:len(s.levels)-1]
		s.parenDepth = s.parens[len(s.parens)-1]
		s.parens = s.parens[:len(s.parens)-1]
		s.emitStructural(TokEndBlock, s.pointSpan())
	}
}

func (s *scanner) endLine(span ast.Span) {
	s.header = false
	s.emitStructural(TokEOL, span)
}

func (s *scanner) openPending(hard bool) {
	s.pending = true
	s.pendingHard = hard
	s.pendingLine = s.line
	s.pendingIndent = s.lineIndent
}

func (s *scanner) scanString(quote rune) (Token, error) {
	startLine, startCol, startPos := s.line, s.col, s.pos
	s.advance() // consume opening quote

	var buf strings.Builder
	for !s.atEnd() {
		ch := s.advance()
		if ch == quote {
			return Token{
				Type:  TokStringLit,
				Value: buf.String(),
				Span:  s.span(startLine, startCol, startPos),
			}, nil
		}
		buf.WriteRune(ch)
	}
	return Token{}, s.lexError(startLine, startCol, startPos, "unterminated string literal", "")
}

func (s *scanner) scanNumber() (Token, error) {
	startLine, startCol, startPos := s.line, s.col, s.pos
	for !s.atEnd() && isDigit(s.peek()) {
		s.advance()
	}
	text := s.source[startPos:s.pos]
	if _, err := strconv.ParseInt(text, 10, 32); err != nil {
		return Token{}, s.lexError(startLine, startCol, startPos,
			fmt.Sprintf("invalid numeric literal '%s'", text),
			"integer literals must fit in a signed 32-bit integer")
	}
	return Token{
		Type:  TokIntLit,
		Value: text,
		Span:  s.span(startLine, startCol, startPos),
	}, nil
}

// scanRun scans a word or a symbol run. The class of the first character
// decides which characters may follow, so the two never mix.
func (s *scanner) scanRun(class func(rune) bool) Token {
	startLine, startCol, startPos := s.line, s.col, s.pos
	for !s.atEnd() && class(s.peek()) {
		s.advance()
	}
	text := s.source[startPos:s.pos]

	typ := TokIdent
	if t, ok := reserved[text]; ok {
		typ = t
	}
	return Token{
		Type:  typ,
		Value: text,
		Span:  s.span(startLine, startCol, startPos),
	}
}

func (s *scanner) lexError(line, col, pos int, msg, hint string) error {
	diag := diagnostics.MakeDiag(
		diagnostics.ELex,
		msg,
		&ast.Span{File: s.filename, StartLine: line, StartCol: col, EndLine: line, EndCol: col + 1, Offset: pos},
		hint,
	)
	return &LexError{Diag: diag}
}

// LexError wraps a diagnostic for lex errors.
type LexError struct {
	Diag diagnostics.Diagnostic
}

func (e *LexError) Error() string {
	return e.Diag.Message
}

func (s *scanner) nextToken() (Token, error) {
	ch := s.peek()
	startLine, startCol, startPos := s.line, s.col, s.pos

	single := func(typ TokenType) Token {
		s.advance()
		return Token{Type: typ, Value: string(ch), Span: s.span(startLine, startCol, startPos)}
	}

	switch ch {
	case '(':
		s.parenDepth++
		return single(TokLParen), nil
	case ')':
		if s.parenDepth > 0 {
			s.parenDepth--
		}
		return single(TokRParen), nil
	case '.':
		return single(TokDot), nil
	case ';':
		s.header = false
		return single(TokSemicolon), nil
	case ':':
		tok := single(TokColon)
		s.openPending(s.header)
		s.header = false
		return tok, nil
	case '"', '\'':
		return s.scanString(ch)
	}

	if isDigit(ch) {
		return s.scanNumber()
	}
	if isWordChar(ch) {
		tok := s.scanRun(isWordChar)
		switch tok.Type {
		case TokIf, TokElse, TokWhile:
			s.header = true
		}
		return tok, nil
	}
	if isSymbolChar(ch) {
		tok := s.scanRun(isSymbolChar)
		if tok.Type == TokArrow {
			s.openPending(true)
		}
		return tok, nil
	}

	s.advance()
	return Token{}, s.lexError(startLine, startCol, startPos, fmt.Sprintf("unexpected character '%c'", ch), "")
}

func (s *scanner) finish() {
	switch {
	case s.parenDepth > 0:
	case s.lastLine == s.line:
		s.endLine(s.pointSpan())
	case s.pending && !s.pendingHard:
		s.endLine(s.pendingEOL)
	}
	s.closeBlocks(0)
	s.emit(Token{Type: TokEOF, Span: s.pointSpan()})
}

// Scan breaks source code into a slice of tokens ending with TokEOF.
func Scan(source, filename string) ([]Token, error) {
	s := newScanner(source, filename)

	for {
		s.skipTrivia()
		if s.atEnd() {
			break
		}
		if err := s.beforeToken(); err != nil {
			return nil, err
		}
		tok, err := s.nextToken()
		if err != nil {
			return nil, err
		}
		s.emit(tok)
		s.lastLine = s.line
	}

	s.finish()
	return s.tokens, nil
}
