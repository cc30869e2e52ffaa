package function

import (
	"fmt"

	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/runtime"
)

// Function is a configured value mapping callable with a structured
// input. Implementations must be safe for concurrent calls.
type Function interface {
	entity.Entity

	GetKind() string
	GetConfig() runtime.PolyConfig
	GetStatus() runtime.Value

	// Call maps an input value to an output value.
	Call(input runtime.Value) (runtime.Value, error)
}

// Common provides the shared behavior of function implementations
// and is meant to be embedded.
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
	return "function"
}

func (c *Common) GetConfig() runtime.PolyConfig {
	return c.config
}

func (c *Common) Directory() entity.Directory {
	return c.dir
}

////////////////////////////////////////////////////////////////////////////////

var kinds = runtime.NewTypeRegistry[entity.Directory, Function]("function")

// Kinds returns the process wide kind registry for functions.
func Kinds() *runtime.TypeRegistry[entity.Directory, Function] {
	return kinds
}

// CreateFunc is the typed factory signature of a function kind.
type CreateFunc[C any] func(dir entity.Directory, config runtime.PolyConfig, cfg *C, progress runtime.ProgressFunc) (Function, error)

// RegisterKind registers a function kind together with its
// configuration type.
func RegisterKind[C any](name, description string, create CreateFunc[C], opts ...runtime.RegisterOption) error {
	factory := func(dir entity.Directory, config runtime.PolyConfig, decoded any, progress runtime.ProgressFunc) (Function, error) {
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

// Construct creates an unattached function from an envelope.
func Construct(dir entity.Directory, config runtime.PolyConfig, progress runtime.ProgressFunc) (Function, error) {
	return kinds.Construct(dir, config, progress)
}

// Lookup resolves an attached function by name.
func Lookup(dir entity.Directory, name string) (Function, error) {
	e, err := dir.Lookup(entity.FUNCTIONS, name)
	if err != nil {
		return nil, err
	}
	f, ok := e.(Function)
	if !ok {
		return nil, fmt.Errorf("entity %q is no function", name)
	}
	return f, nil
}
