package sql

import (
	"fmt"
	"math"
	"strings"

	"github.com/stratadb/strata/pkg/utils"
)

// Row holds the cells of one dataset row keyed by column name.
type Row map[string]any

// NormalizeCell coerces a cell value into the evaluator's value
// model: nil, bool, float64, string, nested Row.
func NormalizeCell(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	case map[string]any:
		r := Row{}
		for k, e := range t {
			r[k] = NormalizeCell(e)
		}
		return r
	case Row:
		r := Row{}
		for k, e := range t {
			r[k] = NormalizeCell(e)
		}
		return r
	case []any:
		l := make([]any, len(t))
		for i, e := range t {
			l[i] = NormalizeCell(e)
		}
		return l
	}
	return v
}

// Scope provides the evaluation context for one row. Funcs supplies
// the functions callable from expressions, there are no implicit
// builtins.
type Scope struct {
	Row   Row
	Funcs map[string]func(args []any) (any, error)
}

func (s *Scope) cell(name string) any {
	if s == nil || s.Row == nil {
		return nil
	}
	return s.Row[name]
}

func (s *Scope) cells() Row {
	if s == nil {
		return nil
	}
	return s.Row
}

func (s *Scope) call(name string, args []any) (any, error) {
	if s != nil && s.Funcs != nil {
		if f := s.Funcs[name]; f != nil {
			return f(args)
		}
	}
	return nil, fmt.Errorf("unknown function %q", name)
}

// Eval evaluates a scalar expression for one row.
func Eval(e Expression, s *Scope) (any, error) {
	switch t := e.(type) {
	case *Literal:
		return t.Value, nil
	case *Variable:
		return s.cell(t.Name), nil
	case *FunctionCall:
		args := make([]any, 0, len(t.Args))
		for _, a := range t.Args {
			v, err := Eval(a, s)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		return s.call(t.Name, args)
	case *RowConstructor:
		return Project(t.Items, s)
	case *IsType:
		v, err := Eval(t.Expr, s)
		if err != nil {
			return nil, err
		}
		r := false
		switch t.Type {
		case "NULL":
			r = v == nil
		case "TRUE":
			r = v == true
		case "FALSE":
			r = v == false
		case "STRING":
			_, r = v.(string)
		case "NUMBER":
			_, r = v.(float64)
		case "INTEGER":
			f, ok := v.(float64)
			r = ok && f == math.Trunc(f)
		}
		if t.Negated {
			r = !r
		}
		return r, nil
	case *Comparison:
		l, err := Eval(t.Left, s)
		if err != nil {
			return nil, err
		}
		r, err := Eval(t.Right, s)
		if err != nil {
			return nil, err
		}
		return compare(t.Op, l, r)
	case *Boolean:
		l, err := EvalBool(t.Left, s)
		if err != nil {
			return nil, err
		}
		if t.Op == "AND" && !l {
			return false, nil
		}
		if t.Op == "OR" && l {
			return true, nil
		}
		return EvalBool(t.Right, s)
	case *Not:
		b, err := EvalBool(t.Expr, s)
		if err != nil {
			return nil, err
		}
		return !b, nil
	case *Arithmetic:
		l, err := evalNumber(t.Left, s)
		if err != nil {
			return nil, err
		}
		r, err := evalNumber(t.Right, s)
		if err != nil {
			return nil, err
		}
		switch t.Op {
		case "+":
			return l + r, nil
		case "-":
			return l - r, nil
		case "*":
			return l * r, nil
		case "/":
			return l / r, nil
		case "%":
			return math.Mod(l, r), nil
		}
		return nil, fmt.Errorf("unknown arithmetic operator %q", t.Op)
	}
	return nil, fmt.Errorf("%q cannot be used as scalar expression", e.Surface())
}

// EvalBool evaluates a condition for one row. A nil condition is
// true.
func EvalBool(e Expression, s *Scope) (bool, error) {
	if e == nil {
		return true, nil
	}
	v, err := Eval(e, s)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func evalNumber(e Expression, s *Scope) (float64, error) {
	v, err := Eval(e, s)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%q is not numeric", e.Surface())
	}
	return f, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	}
	return true
}

func compare(op string, l, r any) (any, error) {
	switch op {
	case "=":
		return equalValue(l, r), nil
	case "!=":
		return !equalValue(l, r), nil
	}
	c, err := CompareValues(l, r)
	if err != nil {
		return nil, err
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return nil, fmt.Errorf("unknown comparison operator %q", op)
}

func equalValue(l, r any) bool {
	switch l.(type) {
	case Row, map[string]any, []any:
		return false
	}
	switch r.(type) {
	case Row, map[string]any, []any:
		return false
	}
	return l == r
}

// CompareValues orders two scalar values. Only numbers can be
// ordered against numbers and strings against strings, nil sorts
// before everything.
func CompareValues(l, r any) (int, error) {
	if l == nil || r == nil {
		switch {
		case l == r:
			return 0, nil
		case l == nil:
			return -1, nil
		default:
			return 1, nil
		}
	}
	if lf, ok := l.(float64); ok {
		if rf, ok := r.(float64); ok {
			switch {
			case lf < rf:
				return -1, nil
			case lf > rf:
				return 1, nil
			}
			return 0, nil
		}
	}
	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			return strings.Compare(ls, rs), nil
		}
	}
	return 0, fmt.Errorf("cannot order values of type %T and %T", l, r)
}

// Project applies a projection list to a row. Embedded rows built by
// row constructors are flattened into dotted column names.
func Project(items []RowExpression, s *Scope) (Row, error) {
	out := Row{}
	for _, item := range items {
		switch t := item.(type) {
		case *Wildcard:
			cells := s.cells()
			for _, k := range utils.OrderedMapKeys(cells) {
				if t.Prefix == "" || strings.HasPrefix(k, t.Prefix) {
					out[k] = cells[k]
				}
			}
		case *Variable:
			out[t.Name] = s.cell(t.Name)
		case *ComputedColumn:
			v, err := Eval(t.Expr, s)
			if err != nil {
				return nil, err
			}
			if sub, ok := v.(Row); ok {
				for _, k := range utils.OrderedMapKeys(sub) {
					out[t.Alias+"."+k] = sub[k]
				}
			} else {
				out[t.Alias] = v
			}
		default:
			return nil, fmt.Errorf("unsupported projection item %q", item.Surface())
		}
	}
	return out, nil
}
