package procedure

import (
	"fmt"

	"github.com/stratadb/strata/pkg/sql"
)

// QueryValidator checks a structural property of a query. The name
// argument is the configuration field the query came from and is
// quoted in error messages.
type QueryValidator func(q sql.InputQuery, name string) error

// ValidateQuery runs validators in order and stops at the first
// violation. A zero query is accepted by all validators.
func ValidateQuery(q sql.InputQuery, name string, validators ...QueryValidator) error {
	if q.IsZero() {
		return nil
	}
	for _, v := range validators {
		if err := v(q, name); err != nil {
			return err
		}
	}
	return nil
}

// NoGroupByHaving rejects queries with a GROUP BY or a non trivial
// HAVING clause.
func NoGroupByHaving(q sql.InputQuery, name string) error {
	stm := q.Statement()
	if stm == nil {
		return nil
	}
	if len(stm.GroupBy) > 0 {
		return fmt.Errorf("cannot use a GROUP BY clause in %s: %q", name, stm.GroupBy[0].Surface())
	}
	if stm.Having != nil && !sql.IsConstantTrue(stm.Having) {
		return fmt.Errorf("cannot use a HAVING clause in %s: %q", name, stm.Having.Surface())
	}
	return nil
}

// PlainColumnSelect rejects select lists going beyond column passing
// and simple per column computations.
func PlainColumnSelect(q sql.InputQuery, name string) error {
	stm := q.Statement()
	if stm == nil {
		return nil
	}
	for _, item := range stm.Select {
		switch it := item.(type) {
		case *sql.Wildcard:
		case *sql.Variable:
		case *sql.ComputedColumn:
			switch it.Expr.(type) {
			case *sql.Variable:
			case *sql.RowConstructor:
			case *sql.IsType:
			case *sql.Comparison:
			case *sql.Boolean:
			case *sql.Not:
			default:
				return fmt.Errorf("only wildcards and plain column names are accepted in %s: %q", name, item.Surface())
			}
		default:
			return fmt.Errorf("only wildcards and plain column names are accepted in %s: %q", name, item.Surface())
		}
	}
	return nil
}

// FeaturesLabelSelect requires the select list to provide the two
// columns features and label. Other clauses are ignored.
func FeaturesLabelSelect(q sql.InputQuery, name string) error {
	stm := q.Statement()
	if stm == nil {
		return nil
	}
	features := false
	label := false
	for _, item := range stm.Select {
		if c, ok := item.(*sql.ComputedColumn); ok {
			switch c.Alias {
			case "features":
				features = true
			case "label":
				label = true
			}
		}
	}
	if !features || !label {
		return fmt.Errorf("select list in %s must name a features and a label column: %q", name, q.Surface())
	}
	return nil
}
