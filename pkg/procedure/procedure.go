package procedure

import (
	"fmt"

	"github.com/mandelsoft/logging"

	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/runtime"
)

var REALM = logging.DefineRealm("procedure", "Procedure execution")

var log = logging.DefaultContext().Logger(REALM)

// Procedure is a configured computation unit. It is constructed once
// from its envelope and can afterwards be run any number of times,
// synchronously on the calling goroutine. Mutable state is limited
// to the run store, configuration and status are read only.
type Procedure interface {
	entity.Entity

	// GetKind labels the entity category.
	GetKind() string
	// GetConfig returns the envelope the procedure was created from.
	GetConfig() runtime.PolyConfig
	// GetStatus returns a snapshot of the procedure state. It must
	// not modify the procedure.
	GetStatus() runtime.Value
	// GetRunDetails renders the detailed view of a recorded run.
	GetRunDetails(r *Run) runtime.Value

	// Run executes the kind specific logic for one run. It is called
	// through Perform, which owns id management and run recording.
	Run(run RunConfig, progress runtime.ProgressFunc) (RunOutput, error)

	Runs() *RunCollection
	Directory() entity.Directory
}

// CommonConfig carries the configuration attributes shared by all
// procedure kinds.
type CommonConfig struct {
	// RunOnCreation triggers a first run directly after the procedure
	// is created and attached.
	RunOnCreation bool `json:"runOnCreation,omitempty"`
}

// Common provides the shared behavior of procedure implementations
// and is meant to be embedded. Kinds add GetStatus and Run.
type Common struct {
	dir    entity.Directory
	config runtime.PolyConfig
	parent entity.Entity
	runs   *RunCollection
}

func NewCommon(dir entity.Directory, config runtime.PolyConfig) Common {
	return Common{
		dir:    dir,
		config: config,
		runs:   NewRunCollection(),
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
	return "procedure"
}

func (c *Common) GetConfig() runtime.PolyConfig {
	return c.config
}

func (c *Common) GetRunDetails(r *Run) runtime.Value {
	return r.Details
}

func (c *Common) Runs() *RunCollection {
	return c.runs
}

func (c *Common) Directory() entity.Directory {
	return c.dir
}

func (c *Common) Dispose() {
	c.runs.clear()
}

////////////////////////////////////////////////////////////////////////////////

var kinds = runtime.NewTypeRegistry[entity.Directory, Procedure]("procedure")

// Kinds returns the process wide kind registry for procedures.
func Kinds() *runtime.TypeRegistry[entity.Directory, Procedure] {
	return kinds
}

// CreateFunc is the typed factory signature of a procedure kind.
type CreateFunc[C any] func(dir entity.Directory, config runtime.PolyConfig, cfg *C, progress runtime.ProgressFunc) (Procedure, error)

// RegisterKind registers a procedure kind together with its
// configuration type. The factory receives the decoded, defaulted
// and validated configuration.
func RegisterKind[C any](name, description string, create CreateFunc[C], opts ...runtime.RegisterOption) error {
	factory := func(dir entity.Directory, config runtime.PolyConfig, decoded any, progress runtime.ProgressFunc) (Procedure, error) {
		p, err := create(dir, config, decoded.(*C), progress)
		if err != nil {
			return nil, err
		}
		p.Runs().setOwner(p)
		return p, nil
	}
	return kinds.Register(name, description, new(C), factory, opts...)
}

func MustRegisterKind[C any](name, description string, create CreateFunc[C], opts ...runtime.RegisterOption) {
	err := RegisterKind[C](name, description, create, opts...)
	if err != nil {
		panic(err)
	}
}

// Construct creates an unattached procedure from an envelope. It is
// used by the engine as well as by composite kinds creating their
// children.
func Construct(dir entity.Directory, config runtime.PolyConfig, progress runtime.ProgressFunc) (Procedure, error) {
	return kinds.Construct(dir, config, progress)
}
