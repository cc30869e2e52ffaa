package sql

import (
	"encoding/json"
	"fmt"
	"strings"
)

// InputQuery is a complete SELECT statement embedded in a
// configuration. In JSON it is represented by its query text.
type InputQuery struct {
	stm *SelectStatement
}

func ParseInputQuery(in string) (InputQuery, error) {
	if strings.TrimSpace(in) == "" {
		return InputQuery{}, nil
	}
	stm, err := Parse(in)
	if err != nil {
		return InputQuery{}, err
	}
	return InputQuery{stm}, nil
}

func MustInputQuery(in string) InputQuery {
	q, err := ParseInputQuery(in)
	if err != nil {
		panic(err)
	}
	return q
}

func (q InputQuery) IsZero() bool {
	return q.stm == nil
}

func (q InputQuery) Statement() *SelectStatement {
	return q.stm
}

func (q InputQuery) Surface() string {
	if q.stm == nil {
		return ""
	}
	return q.stm.surface
}

func (q InputQuery) String() string {
	return q.Surface()
}

func (q InputQuery) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.Surface())
}

func (q *InputQuery) UnmarshalJSON(data []byte) error {
	var in string
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("a query must be given as string: %s", string(data))
	}
	p, err := ParseInputQuery(in)
	if err != nil {
		return err
	}
	*q = p
	return nil
}

// Expr is a scalar expression embedded in a configuration. In JSON
// it is represented by its source text.
type Expr struct {
	expr Expression
}

func ParseExpr(in string) (Expr, error) {
	if strings.TrimSpace(in) == "" {
		return Expr{}, nil
	}
	e, err := ParseExpression(in)
	if err != nil {
		return Expr{}, err
	}
	return Expr{e}, nil
}

func MustExpr(in string) Expr {
	e, err := ParseExpr(in)
	if err != nil {
		panic(err)
	}
	return e
}

func (e Expr) IsZero() bool {
	return e.expr == nil
}

func (e Expr) Expression() Expression {
	return e.expr
}

func (e Expr) Surface() string {
	if e.expr == nil {
		return ""
	}
	return e.expr.Surface()
}

func (e Expr) String() string {
	return e.Surface()
}

func (e Expr) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Surface())
}

func (e *Expr) UnmarshalJSON(data []byte) error {
	var in string
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("an expression must be given as string: %s", string(data))
	}
	p, err := ParseExpr(in)
	if err != nil {
		return err
	}
	*e = p
	return nil
}

// Projection is a projection list embedded in a configuration. In
// JSON it is represented by its source text.
type Projection struct {
	items   []RowExpression
	surface string
}

func ParseProjection(in string) (Projection, error) {
	if strings.TrimSpace(in) == "" {
		return Projection{}, nil
	}
	items, err := ParseSelectList(in)
	if err != nil {
		return Projection{}, err
	}
	return Projection{items, surfaceOf(in)}, nil
}

func MustProjection(in string) Projection {
	p, err := ParseProjection(in)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Projection) IsZero() bool {
	return p.items == nil
}

func (p Projection) Items() []RowExpression {
	return p.items
}

func (p Projection) Surface() string {
	return p.surface
}

func (p Projection) String() string {
	return p.surface
}

func (p Projection) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.surface)
}

func (p *Projection) UnmarshalJSON(data []byte) error {
	var in string
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("a projection must be given as string: %s", string(data))
	}
	parsed, err := ParseProjection(in)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
