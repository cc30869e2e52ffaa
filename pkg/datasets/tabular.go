package datasets

import (
	"fmt"
	"strconv"
	"sync"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/stratadb/strata/pkg/dataset"
	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/runtime"
	"github.com/stratadb/strata/pkg/sql"
	"github.com/stratadb/strata/pkg/utils"
)

const TYPE_TABULAR = "tabular"

func init() {
	dataset.MustRegisterKind[TabularConfig](TYPE_TABULAR, "in memory tabular dataset", newTabular)
}

// TabularConfig configures a tabular dataset. Rows seeds the dataset
// with initial content, seeded rows are committed directly after
// creation. Unnamed seed rows are numbered by position.
type TabularConfig struct {
	Rows []RowSeed `json:"rows,omitempty"`
}

type RowSeed struct {
	Name  string         `json:"name,omitempty"`
	Cells map[string]any `json:"cells,omitempty"`
}

type tabular struct {
	dataset.Common

	lock  sync.RWMutex
	order []string
	rows  map[string]sql.Row
	hash  string
}

var _ dataset.Dataset = (*tabular)(nil)

func newTabular(dir entity.Directory, config runtime.PolyConfig, cfg *TabularConfig, _ runtime.ProgressFunc) (dataset.Dataset, error) {
	d := &tabular{
		Common: dataset.NewCommon(dir, config),
		rows:   map[string]sql.Row{},
	}
	for i, r := range cfg.Rows {
		name := r.Name
		if name == "" {
			name = strconv.Itoa(i)
		}
		if err := d.AppendRow(name, r.Cells); err != nil {
			return nil, err
		}
	}
	if len(cfg.Rows) > 0 {
		if err := d.Commit(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *tabular) GetStatus() runtime.Value {
	d.lock.RLock()
	defer d.lock.RUnlock()

	cols := sets.New[string]()
	for _, r := range d.rows {
		for k := range r {
			cols.Insert(k)
		}
	}
	status := map[string]any{
		"rowCount":    len(d.order),
		"columnCount": cols.Len(),
	}
	if d.hash != "" {
		status["commitHash"] = d.hash
	}
	return runtime.MustValue(status)
}

func (d *tabular) AppendRow(name string, cells sql.Row) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if _, ok := d.rows[name]; ok {
		return fmt.Errorf("%w: row %q", entity.ErrAlreadyExists, name)
	}
	row := sql.Row{}
	for k, v := range cells {
		row[k] = sql.NormalizeCell(v)
	}
	d.rows[name] = row
	d.order = append(d.order, name)
	return nil
}

func (d *tabular) Commit() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.hash = utils.HashData(d.content())
	return nil
}

func (d *tabular) RowCount() int {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return len(d.order)
}

func (d *tabular) Rows() []dataset.NamedRow {
	d.lock.RLock()
	defer d.lock.RUnlock()
	list := make([]dataset.NamedRow, len(d.order))
	for i, n := range d.order {
		cells := sql.Row{}
		for k, v := range d.rows[n] {
			cells[k] = v
		}
		list[i] = dataset.NamedRow{Name: n, Cells: cells}
	}
	return list
}

func (d *tabular) CommitHash() string {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.hash
}

// content must be called with the lock held.
func (d *tabular) content() []dataset.NamedRow {
	list := make([]dataset.NamedRow, len(d.order))
	for i, n := range d.order {
		list[i] = dataset.NamedRow{Name: n, Cells: d.rows[n]}
	}
	return list
}
