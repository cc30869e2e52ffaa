package sql

import (
	"strings"
)

// Expression is a node of a parsed query. Surface returns the source
// text the node was parsed from, it is used to point at offending
// clauses in error messages.
type Expression interface {
	Surface() string
}

// RowExpression is a single item of a projection list.
type RowExpression interface {
	Expression
	rowItem()
}

// Wildcard selects all columns, optionally restricted to a name
// prefix.
type Wildcard struct {
	Prefix  string
	surface string
}

func (e *Wildcard) rowItem() {}

func (e *Wildcard) Surface() string {
	return e.surface
}

// Variable is a plain column reference. It is valid both as scalar
// expression and as projection item.
type Variable struct {
	Name    string
	surface string
}

func (e *Variable) rowItem() {}

func (e *Variable) Surface() string {
	return e.surface
}

// ComputedColumn is a projection item computing a named output
// column. Without an explicit alias the column is named after the
// expression text.
type ComputedColumn struct {
	Alias   string
	Expr    Expression
	surface string
}

func (e *ComputedColumn) rowItem() {}

func (e *ComputedColumn) Surface() string {
	return e.surface
}

// Literal is a constant value: nil, bool, float64 or string.
type Literal struct {
	Value   any
	surface string
}

func (e *Literal) Surface() string {
	return e.surface
}

// RowConstructor builds an embedded row from a projection list.
type RowConstructor struct {
	Items   []RowExpression
	surface string
}

func (e *RowConstructor) Surface() string {
	return e.surface
}

// FunctionCall invokes a named function.
type FunctionCall struct {
	Name    string
	Args    []Expression
	surface string
}

func (e *FunctionCall) Surface() string {
	return e.surface
}

// IsType tests the type of a value: IS [NOT] NULL, TRUE, FALSE,
// STRING or NUMBER.
type IsType struct {
	Expr    Expression
	Negated bool
	Type    string
	surface string
}

func (e *IsType) Surface() string {
	return e.surface
}

// Comparison applies one of the operators =, !=, <, >, <= or >=.
type Comparison struct {
	Op      string
	Left    Expression
	Right   Expression
	surface string
}

func (e *Comparison) Surface() string {
	return e.surface
}

// Boolean combines two conditions with AND or OR.
type Boolean struct {
	Op      string
	Left    Expression
	Right   Expression
	surface string
}

func (e *Boolean) Surface() string {
	return e.surface
}

// Not negates a condition.
type Not struct {
	Expr    Expression
	surface string
}

func (e *Not) Surface() string {
	return e.surface
}

// Arithmetic applies one of the operators +, -, * or /.
type Arithmetic struct {
	Op      string
	Left    Expression
	Right   Expression
	surface string
}

func (e *Arithmetic) Surface() string {
	return e.surface
}

// OrderBy is a single sort criterion.
type OrderBy struct {
	Expr Expression
	Desc bool
}

// SelectStatement is a complete parsed query.
//
// A nil Where is an unrestricted query, a nil Having places no
// restriction on groups and a nil Named leaves the default row
// naming in place. Limit is -1 when unlimited.
type SelectStatement struct {
	Select  []RowExpression
	From    string
	Where   Expression
	GroupBy []Expression
	Having  Expression
	Named   Expression
	OrderBy []OrderBy
	Limit   int64
	Offset  int64
	surface string
}

func (s *SelectStatement) Surface() string {
	return s.surface
}

// IsConstantTrue reports whether a condition is absent or the
// constant TRUE.
func IsConstantTrue(e Expression) bool {
	if e == nil {
		return true
	}
	if l, ok := e.(*Literal); ok {
		return l.Value == true
	}
	return false
}

// IsWildcard reports whether a projection consists of a single
// unrestricted wildcard.
func IsWildcard(items []RowExpression) bool {
	if len(items) != 1 {
		return false
	}
	w, ok := items[0].(*Wildcard)
	return ok && w.Prefix == ""
}

func surfaceOf(in string) string {
	return strings.TrimSpace(in)
}
