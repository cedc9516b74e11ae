// Package tree defines the statement and expression tree consumed by the flow
// analysis passes. The tree is a closed tagged variant: every node carries a
// Kind from a fixed enumeration, and passes dispatch with an exhaustive switch
// so a newly added construct fails loudly instead of silently falling through.
//
// Nodes and variables are allocated through an Arena, which assigns each a
// stable small integer identity. All pass-internal maps key by that identity,
// never by structural equality.
package tree

import "github.com/calitho/skiff/pkg/types"

// Kind enumerates every node kind the flow passes understand.
type Kind uint8

const (
	KindInvalid Kind = iota

	// Statements.
	KindBlock
	KindExpressionStatement
	KindVariableDeclaration
	KindIf
	KindWhile
	KindDoWhile
	KindFor
	KindForEach
	KindTry
	KindCatchClause
	KindSwitch
	KindSwitchCase
	KindBreak
	KindContinue
	KindReturn
	KindThrow
	KindClosure

	// Expressions.
	KindLiteral
	KindBoolLiteral
	KindNullLiteral
	KindVariableGet
	KindAssign
	KindPropertyGet
	KindNullAwareAccess
	KindNullCoalesce
	KindLogicalAnd
	KindLogicalOr
	KindNot
	KindIsTest
	KindAsCast
	KindEqualsNull
)

var kindNames = map[Kind]string{
	KindInvalid:             "Invalid",
	KindBlock:               "Block",
	KindExpressionStatement: "ExpressionStatement",
	KindVariableDeclaration: "VariableDeclaration",
	KindIf:                  "If",
	KindWhile:               "While",
	KindDoWhile:             "DoWhile",
	KindFor:                 "For",
	KindForEach:             "ForEach",
	KindTry:                 "Try",
	KindCatchClause:         "CatchClause",
	KindSwitch:              "Switch",
	KindSwitchCase:          "SwitchCase",
	KindBreak:               "Break",
	KindContinue:            "Continue",
	KindReturn:              "Return",
	KindThrow:               "Throw",
	KindClosure:             "Closure",
	KindLiteral:             "Literal",
	KindBoolLiteral:         "BoolLiteral",
	KindNullLiteral:         "NullLiteral",
	KindVariableGet:         "VariableGet",
	KindAssign:              "Assign",
	KindPropertyGet:         "PropertyGet",
	KindNullAwareAccess:     "NullAwareAccess",
	KindNullCoalesce:        "NullCoalesce",
	KindLogicalAnd:          "LogicalAnd",
	KindLogicalOr:           "LogicalOr",
	KindNot:                 "Not",
	KindIsTest:              "IsTest",
	KindAsCast:              "AsCast",
	KindEqualsNull:          "EqualsNull",
}

// String returns the node kind name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Variable identifies a declared local variable. The object itself is an
// immutable key; all semantic state (assignment, promotion, capture) is tracked
// by the flow passes, never here.
type Variable struct {
	id   uint32
	Name string
	Type types.Type
}

// ID returns the variable's arena identity.
func (v *Variable) ID() uint32 { return v.id }

// Node is a single tree node. Which fields are meaningful depends on Kind; the
// constructors on Arena are the only supported way to build nodes.
type Node struct {
	id   uint32
	Kind Kind

	// Type is the static type of an expression node; for IsTest/AsCast it is
	// the tested/cast type, and for PropertyGet/NullAwareAccess the member type.
	Type types.Type

	// Variable is the variable referenced by VariableGet, Assign, IsTest,
	// AsCast, EqualsNull, and VariableDeclaration nodes.
	Variable *Variable

	// Member is the property name for PropertyGet and NullAwareAccess.
	Member string

	// Value is the literal spelling for Literal/BoolLiteral nodes.
	Value string

	// Negated flips IsTest ("is!") and EqualsNull ("!= null").
	Negated bool

	// Exhaustive marks a Switch whose cases are proven to cover every value.
	Exhaustive bool

	Cond     *Node
	Body     *Node
	Else     *Node
	Init     *Node // For: initializer; VariableDeclaration: initializer expr
	Update   *Node
	Receiver *Node
	RHS      *Node
	Left     *Node
	Right    *Node
	Stmts    []*Node
	Catches  []*Node
	Finally  *Node
	Cases    []*Node
}

// ID returns the node's arena identity.
func (n *Node) ID() uint32 { return n.id }

// IsStatement reports whether the node kind is a statement.
func (n *Node) IsStatement() bool {
	return n.Kind >= KindBlock && n.Kind <= KindClosure
}

// Arena allocates nodes and variables with stable integer identities.
type Arena struct {
	nextNode uint32
	nextVar  uint32
}

// NewArena returns an empty arena.
func NewArena() *Arena { return &Arena{} }

// NewVariable allocates a variable with the given declared type.
func (a *Arena) NewVariable(name string, typ types.Type) *Variable {
	a.nextVar++
	return &Variable{id: a.nextVar, Name: name, Type: typ}
}

func (a *Arena) node(k Kind) *Node {
	a.nextNode++
	return &Node{id: a.nextNode, Kind: k}
}

// Block builds a statement sequence.
func (a *Arena) Block(stmts ...*Node) *Node {
	n := a.node(KindBlock)
	n.Stmts = stmts
	return n
}

// ExpressionStatement wraps an expression as a statement.
func (a *Arena) ExpressionStatement(expr *Node) *Node {
	n := a.node(KindExpressionStatement)
	n.RHS = expr
	return n
}

// Declare declares v, optionally with an initializer expression.
func (a *Arena) Declare(v *Variable, init *Node) *Node {
	n := a.node(KindVariableDeclaration)
	n.Variable = v
	n.Init = init
	return n
}

// If builds an if statement; els may be nil.
func (a *Arena) If(cond, then, els *Node) *Node {
	n := a.node(KindIf)
	n.Cond = cond
	n.Body = then
	n.Else = els
	return n
}

// While builds a while loop.
func (a *Arena) While(cond, body *Node) *Node {
	n := a.node(KindWhile)
	n.Cond = cond
	n.Body = body
	return n
}

// DoWhile builds a do/while loop.
func (a *Arena) DoWhile(body, cond *Node) *Node {
	n := a.node(KindDoWhile)
	n.Body = body
	n.Cond = cond
	return n
}

// For builds a C-style for loop; any of init, cond, update may be nil.
func (a *Arena) For(init, cond, update, body *Node) *Node {
	n := a.node(KindFor)
	n.Init = init
	n.Cond = cond
	n.Update = update
	n.Body = body
	return n
}

// ForEach builds a for-each loop writing each element into v.
func (a *Arena) ForEach(v *Variable, iterable, body *Node) *Node {
	n := a.node(KindForEach)
	n.Variable = v
	n.RHS = iterable
	n.Body = body
	return n
}

// Try builds a try statement; catches and finally may be empty/nil.
func (a *Arena) Try(body *Node, catches []*Node, finally *Node) *Node {
	n := a.node(KindTry)
	n.Body = body
	n.Catches = catches
	n.Finally = finally
	return n
}

// Catch builds a catch clause.
func (a *Arena) Catch(body *Node) *Node {
	n := a.node(KindCatchClause)
	n.Body = body
	return n
}

// Switch builds a switch over expr. Exhaustive marks full case coverage.
func (a *Arena) Switch(expr *Node, exhaustive bool, cases ...*Node) *Node {
	n := a.node(KindSwitch)
	n.RHS = expr
	n.Exhaustive = exhaustive
	n.Cases = cases
	return n
}

// Case builds a switch case body.
func (a *Arena) Case(stmts ...*Node) *Node {
	n := a.node(KindSwitchCase)
	n.Stmts = stmts
	return n
}

// Break builds a break statement targeting the innermost loop or switch.
func (a *Arena) Break() *Node { return a.node(KindBreak) }

// Continue builds a continue statement targeting the innermost loop.
func (a *Arena) Continue() *Node { return a.node(KindContinue) }

// Return builds a return statement.
func (a *Arena) Return() *Node { return a.node(KindReturn) }

// Throw builds a throw statement.
func (a *Arena) Throw() *Node { return a.node(KindThrow) }

// Closure builds a function literal with the given body.
func (a *Arena) Closure(body *Node) *Node {
	n := a.node(KindClosure)
	n.Body = body
	return n
}

// Literal builds a literal expression of the given type and spelling.
func (a *Arena) Literal(typ types.Type, value string) *Node {
	n := a.node(KindLiteral)
	n.Type = typ
	n.Value = value
	return n
}

// BoolLiteral builds a true/false literal.
func (a *Arena) BoolLiteral(value bool) *Node {
	n := a.node(KindBoolLiteral)
	n.Type = types.BoolType
	if value {
		n.Value = "true"
	} else {
		n.Value = "false"
	}
	return n
}

// NullLiteral builds the null literal.
func (a *Arena) NullLiteral() *Node {
	n := a.node(KindNullLiteral)
	n.Type = types.NullType
	return n
}

// Get builds a read of v.
func (a *Arena) Get(v *Variable) *Node {
	n := a.node(KindVariableGet)
	n.Variable = v
	n.Type = v.Type
	return n
}

// Assign builds an assignment of rhs into v.
func (a *Arena) Assign(v *Variable, rhs *Node) *Node {
	n := a.node(KindAssign)
	n.Variable = v
	n.RHS = rhs
	return n
}

// PropertyGet builds a property access on receiver with the member's type.
func (a *Arena) PropertyGet(receiver *Node, member string, typ types.Type) *Node {
	n := a.node(KindPropertyGet)
	n.Receiver = receiver
	n.Member = member
	n.Type = typ
	return n
}

// NullAwareAccess builds receiver?.member with the member's type.
func (a *Arena) NullAwareAccess(receiver *Node, member string, typ types.Type) *Node {
	n := a.node(KindNullAwareAccess)
	n.Receiver = receiver
	n.Member = member
	n.Type = typ
	return n
}

// NullCoalesce builds left ?? right.
func (a *Arena) NullCoalesce(left, right *Node) *Node {
	n := a.node(KindNullCoalesce)
	n.Left = left
	n.Right = right
	return n
}

// And builds left && right.
func (a *Arena) And(left, right *Node) *Node {
	n := a.node(KindLogicalAnd)
	n.Left = left
	n.Right = right
	n.Type = types.BoolType
	return n
}

// Or builds left || right.
func (a *Arena) Or(left, right *Node) *Node {
	n := a.node(KindLogicalOr)
	n.Left = left
	n.Right = right
	n.Type = types.BoolType
	return n
}

// Not builds !operand.
func (a *Arena) Not(operand *Node) *Node {
	n := a.node(KindNot)
	n.RHS = operand
	n.Type = types.BoolType
	return n
}

// Is builds v is T (or v is! T when negated).
func (a *Arena) Is(v *Variable, typ types.Type, negated bool) *Node {
	n := a.node(KindIsTest)
	n.Variable = v
	n.Type = typ
	n.Negated = negated
	return n
}

// As builds v as T.
func (a *Arena) As(v *Variable, typ types.Type) *Node {
	n := a.node(KindAsCast)
	n.Variable = v
	n.Type = typ
	return n
}

// EqNull builds v == null (or v != null when negated).
func (a *Arena) EqNull(v *Variable, negated bool) *Node {
	n := a.node(KindEqualsNull)
	n.Variable = v
	n.Negated = negated
	n.Type = types.BoolType
	return n
}

// EqNullExpr builds target == null (or != null when negated) for a non-variable
// target such as a property access.
func (a *Arena) EqNullExpr(target *Node, negated bool) *Node {
	n := a.node(KindEqualsNull)
	n.Receiver = target
	n.Negated = negated
	n.Type = types.BoolType
	return n
}
