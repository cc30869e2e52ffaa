package dataset

import (
	"fmt"
	"sort"

	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/sql"
)

// Query resolves the FROM dataset of a statement and executes it.
func Query(dir entity.Directory, q sql.InputQuery) ([]NamedRow, error) {
	stm := q.Statement()
	if stm == nil {
		return nil, fmt.Errorf("no query given")
	}
	if stm.From == "" {
		return nil, fmt.Errorf("a source dataset must be given: %q", stm.Surface())
	}
	ds, err := Lookup(dir, stm.From)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve dataset %q: %w", stm.From, err)
	}
	return Execute(ds, stm)
}

// Execute runs a statement over the rows of a dataset: WHERE filter,
// NAMED row naming, ORDER BY, OFFSET and LIMIT, then the projection
// of the select list. Grouping is not supported, unsupported clauses
// fail with their surface form.
func Execute(ds Dataset, stm *sql.SelectStatement) ([]NamedRow, error) {
	if len(stm.GroupBy) > 0 {
		return nil, fmt.Errorf("cannot execute a GROUP BY clause: %q", stm.GroupBy[0].Surface())
	}
	if stm.Having != nil && !sql.IsConstantTrue(stm.Having) {
		return nil, fmt.Errorf("cannot execute a HAVING clause: %q", stm.Having.Surface())
	}

	log.Debug("executing query on dataset {{dataset}}", "dataset", ds.GetName())

	selected := []NamedRow{}
	for _, r := range ds.Rows() {
		scope := &sql.Scope{Row: r.Cells}
		ok, err := sql.EvalBool(stm.Where, scope)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		selected = append(selected, r)
	}

	if len(stm.OrderBy) > 0 {
		var failed error
		sort.SliceStable(selected, func(i, j int) bool {
			if failed != nil {
				return false
			}
			for _, o := range stm.OrderBy {
				l, err := sql.Eval(o.Expr, &sql.Scope{Row: selected[i].Cells})
				if err != nil {
					failed = err
					return false
				}
				r, err := sql.Eval(o.Expr, &sql.Scope{Row: selected[j].Cells})
				if err != nil {
					failed = err
					return false
				}
				c, err := sql.CompareValues(l, r)
				if err != nil {
					failed = err
					return false
				}
				if c != 0 {
					if o.Desc {
						return c > 0
					}
					return c < 0
				}
			}
			return false
		})
		if failed != nil {
			return nil, failed
		}
	}

	if stm.Offset > 0 {
		if stm.Offset >= int64(len(selected)) {
			selected = nil
		} else {
			selected = selected[stm.Offset:]
		}
	}
	if stm.Limit >= 0 && stm.Limit < int64(len(selected)) {
		selected = selected[:stm.Limit]
	}

	out := make([]NamedRow, 0, len(selected))
	for _, r := range selected {
		scope := &sql.Scope{Row: r.Cells}
		name := r.Name
		if stm.Named != nil {
			v, err := sql.Eval(stm.Named, scope)
			if err != nil {
				return nil, err
			}
			name = fmt.Sprintf("%v", v)
		}
		cells, err := sql.Project(stm.Select, scope)
		if err != nil {
			return nil, err
		}
		out = append(out, NamedRow{Name: name, Cells: cells})
	}
	return out, nil
}
