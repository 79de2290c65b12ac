// Package ast defines the Zeal language AST node types.
package ast

// Span represents a source location range.
type Span struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
	StartCol  int    `json:"startCol"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol"`
	Offset    int    `json:"offset"`
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Kind() string
	NodeSpan() Span
}

// BinaryOp represents a binary operator.
type BinaryOp string

const (
	OpAdd    BinaryOp = "+"
	OpSub    BinaryOp = "-"
	OpMul    BinaryOp = "*"
	OpDiv    BinaryOp = "//"
	OpMod    BinaryOp = "%"
	OpGt     BinaryOp = ">"
	OpLt     BinaryOp = "<"
	OpGtEq   BinaryOp = ">="
	OpLtEq   BinaryOp = "<="
	OpEqEq   BinaryOp = "=="
	OpNeq    BinaryOp = "!="
	OpAndAnd BinaryOp = "&&"
	OpOrOr   BinaryOp = "||"
)

// UnaryOp represents a unary operator.
type UnaryOp string

const (
	OpNeg UnaryOp = "-"
	OpNot UnaryOp = "!"
)

// Expr is the interface for all expression nodes. Zeal statements are
// expressions evaluated at statement level.
type Expr interface {
	Node
	exprNode() // sealed marker
}

// --- Literal Expressions ---

type IntLiteral struct {
	Span  Span
	Value int32
}

func (n *IntLiteral) Kind() string   { return "IntLiteral" }
func (n *IntLiteral) NodeSpan() Span { return n.Span }
func (n *IntLiteral) exprNode()      {}

type BoolLiteral struct {
	Span  Span
	Value bool
}

func (n *BoolLiteral) Kind() string   { return "BoolLiteral" }
func (n *BoolLiteral) NodeSpan() Span { return n.Span }
func (n *BoolLiteral) exprNode()      {}

type StrLiteral struct {
	Span  Span
	Value string
}

func (n *StrLiteral) Kind() string   { return "StrLiteral" }
func (n *StrLiteral) NodeSpan() Span { return n.Span }
func (n *StrLiteral) exprNode()      {}

// Ident is an unresolved name reference, looked up in the scope chain when
// evaluated.
type Ident struct {
	Span Span
	Name string
}

func (n *Ident) Kind() string   { return "Ident" }
func (n *Ident) NodeSpan() Span { return n.Span }
func (n *Ident) exprNode()      {}

// --- Operators ---

type GroupExpr struct {
	Span  Span
	Inner Expr
}

func (n *GroupExpr) Kind() string   { return "GroupExpr" }
func (n *GroupExpr) NodeSpan() Span { return n.Span }
func (n *GroupExpr) exprNode()      {}

type UnaryExpr struct {
	Span    Span
	Op      UnaryOp
	Operand Expr
}

func (n *UnaryExpr) Kind() string   { return "UnaryExpr" }
func (n *UnaryExpr) NodeSpan() Span { return n.Span }
func (n *UnaryExpr) exprNode()      {}

type BinaryExpr struct {
	Span  Span
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (n *BinaryExpr) Kind() string   { return "BinaryExpr" }
func (n *BinaryExpr) NodeSpan() Span { return n.Span }
func (n *BinaryExpr) exprNode()      {}

// --- Calls ---

// GetExpr is a field access `recv.name` that was not followed by a call.
type GetExpr struct {
	Span     Span
	Receiver Expr
	Name     string
}

func (n *GetExpr) Kind() string   { return "GetExpr" }
func (n *GetExpr) NodeSpan() Span { return n.Span }
func (n *GetExpr) exprNode()      {}

type CallExpr struct {
	Span   Span
	Callee Expr
	Args   []Expr
}

func (n *CallExpr) Kind() string   { return "CallExpr" }
func (n *CallExpr) NodeSpan() Span { return n.Span }
func (n *CallExpr) exprNode()      {}

// BuiltinExpr names a builtin function by its reserved keyword.
type BuiltinExpr struct {
	Span Span
	Name string
}

func (n *BuiltinExpr) Kind() string   { return "BuiltinExpr" }
func (n *BuiltinExpr) NodeSpan() Span { return n.Span }
func (n *BuiltinExpr) exprNode()      {}

type LambdaExpr struct {
	Span   Span
	Params []string
	Body   []Expr
}

func (n *LambdaExpr) Kind() string   { return "LambdaExpr" }
func (n *LambdaExpr) NodeSpan() Span { return n.Span }
func (n *LambdaExpr) exprNode()      {}

// --- Bindings ---

// DeclExpr binds Target in the innermost scope. Value is nil for `x :`.
type DeclExpr struct {
	Span   Span
	Target *Ident
	Value  Expr
}

func (n *DeclExpr) Kind() string   { return "DeclExpr" }
func (n *DeclExpr) NodeSpan() Span { return n.Span }
func (n *DeclExpr) exprNode()      {}

type AssignExpr struct {
	Span   Span
	Target *Ident
	Value  Expr
}

func (n *AssignExpr) Kind() string   { return "AssignExpr" }
func (n *AssignExpr) NodeSpan() Span { return n.Span }
func (n *AssignExpr) exprNode()      {}

// --- Control Flow ---

type BlockExpr struct {
	Span       Span
	Statements []Expr
}

func (n *BlockExpr) Kind() string   { return "BlockExpr" }
func (n *BlockExpr) NodeSpan() Span { return n.Span }
func (n *BlockExpr) exprNode()      {}

type WhileExpr struct {
	Span Span
	Cond Expr
	Body Expr
}

func (n *WhileExpr) Kind() string   { return "WhileExpr" }
func (n *WhileExpr) NodeSpan() Span { return n.Span }
func (n *WhileExpr) exprNode()      {}

// IfExpr is a conditional. Else is nil when no else clause was written.
type IfExpr struct {
	Span Span
	Cond Expr
	Then Expr
	Else Expr
}

func (n *IfExpr) Kind() string   { return "IfExpr" }
func (n *IfExpr) NodeSpan() Span { return n.Span }
func (n *IfExpr) exprNode()      {}

// --- Program ---

type Program struct {
	Span       Span
	Statements []Expr
}

func (n *Program) Kind() string   { return "Program" }
func (n *Program) NodeSpan() Span { return n.Span }
