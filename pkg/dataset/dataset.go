package dataset

import (
	"fmt"

	"github.com/mandelsoft/logging"

	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/runtime"
	"github.com/stratadb/strata/pkg/sql"
)

var REALM = logging.DefineRealm("dataset", "Dataset management")

var log = logging.DefaultContext().Logger(REALM)

// NamedRow is one dataset row, addressed by its unique row name.
type NamedRow struct {
	Name  string  `json:"name"`
	Cells sql.Row `json:"cells"`
}

// Dataset is a named collection of named rows. Rows keep their
// append order. Implementations must be safe for concurrent use.
type Dataset interface {
	entity.Entity

	GetKind() string
	GetConfig() runtime.PolyConfig
	GetStatus() runtime.Value

	// AppendRow adds one row. Row names are unique per dataset.
	AppendRow(name string, cells sql.Row) error
	// Commit seals the appended rows and updates the content hash.
	Commit() error

	RowCount() int
	Rows() []NamedRow
	// CommitHash is the canonical content digest of the last commit,
	// empty for an uncommitted dataset.
	CommitHash() string
}

// Common provides the shared behavior of dataset implementations and
// is meant to be embedded.
type Common struct {
	dir    entity.Directory
	config runtime.PolyConfig
	parent entity.Entity
}

func NewCommon(dir entity.Directory, config runtime.PolyConfig) Common {
	return Common{
		dir:    dir,
		config: config,
	}
}

func (c *Common) GetName() string {
	return c.config.ID
}

func (c *Common) GetDescription() string {
	return fmt.Sprintf("%s %q of kind %q", c.GetKind(), c.config.ID, c.config.Kind)
}

func (c *Common) GetParent() entity.Entity {
	return c.parent
}

func (c *Common) IsCollection() bool {
	return false
}

func (c *Common) Attach(parent entity.Entity) {
	c.parent = parent
}

func (c *Common) GetKind() string {
	return "dataset"
}

func (c *Common) GetConfig() runtime.PolyConfig {
	return c.config
}

func (c *Common) Directory() entity.Directory {
	return c.dir
}

////////////////////////////////////////////////////////////////////////////////

var kinds = runtime.NewTypeRegistry[entity.Directory, Dataset]("dataset")

// Kinds returns the process wide kind registry for datasets.
func Kinds() *runtime.TypeRegistry[entity.Directory, Dataset] {
	return kinds
}

// CreateFunc is the typed factory signature of a dataset kind.
type CreateFunc[C any] func(dir entity.Directory, config runtime.PolyConfig, cfg *C, progress runtime.ProgressFunc) (Dataset, error)

// RegisterKind registers a dataset kind together with its
// configuration type.
func RegisterKind[C any](name, description string, create CreateFunc[C], opts ...runtime.RegisterOption) error {
	factory := func(dir entity.Directory, config runtime.PolyConfig, decoded any, progress runtime.ProgressFunc) (Dataset, error) {
		return create(dir, config, decoded.(*C), progress)
	}
	return kinds.Register(name, description, new(C), factory, opts...)
}

func MustRegisterKind[C any](name, description string, create CreateFunc[C], opts ...runtime.RegisterOption) {
	err := RegisterKind[C](name, description, create, opts...)
	if err != nil {
		panic(err)
	}
}

// Construct creates an unattached dataset from an envelope.
func Construct(dir entity.Directory, config runtime.PolyConfig, progress runtime.ProgressFunc) (Dataset, error) {
	return kinds.Construct(dir, config, progress)
}

// Lookup resolves an attached dataset by name.
func Lookup(dir entity.Directory, name string) (Dataset, error) {
	e, err := dir.Lookup(entity.DATASETS, name)
	if err != nil {
		return nil, err
	}
	ds, ok := e.(Dataset)
	if !ok {
		return nil, fmt.Errorf("entity %q is no dataset", name)
	}
	return ds, nil
}
