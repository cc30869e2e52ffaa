package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/goombaio/namegenerator"
	"github.com/mandelsoft/logging"
	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"

	"github.com/stratadb/strata/pkg/dataset"
	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/function"
	"github.com/stratadb/strata/pkg/procedure"
	"github.com/stratadb/strata/pkg/runtime"
	"github.com/stratadb/strata/pkg/utils"
)

var REALM = logging.DefineRealm("engine", "Strata engine")

var log = logging.DefaultContext().Logger(REALM)

// Engine is the root of the entity tree. It hosts one collection per
// category and constructs entities from configuration envelopes
// through the kind registries.
type Engine interface {
	entity.Directory

	// Construct creates an entity from an envelope and attaches it.
	// A missing id is filled with a generated name. For procedures
	// configured with runOnCreation a first run is performed, its
	// failure detaches the entity again.
	Construct(category entity.Category, config runtime.PolyConfig, progress runtime.ProgressFunc) (entity.Entity, error)
	// Delete detaches an entity and disposes its state.
	Delete(category entity.Category, name string) error

	Names(category entity.Category) ([]string, error)
	List(category entity.Category) ([]entity.Entity, error)

	Procedure(name string) (procedure.Procedure, error)
	Dataset(name string) (dataset.Dataset, error)
	Function(name string) (function.Function, error)

	// Run performs one synchronous run of an attached procedure.
	Run(name string, run procedure.RunConfig, progress runtime.ProgressFunc) (*procedure.Run, error)
}

type engine struct {
	name      string
	artifacts vfs.FileSystem
	clock     func() time.Time

	genlock sync.Mutex
	namegen namegenerator.Generator

	collections map[entity.Category]*entity.Collection[entity.Entity]
}

var _ Engine = (*engine)(nil)

type Option func(*engine)

// WithArtifacts sets the file system holding model artifacts and
// import sources. Default is a memory file system.
func WithArtifacts(fs vfs.FileSystem) Option {
	return func(e *engine) {
		e.artifacts = fs
	}
}

// WithClock sets the time source used for run timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *engine) {
		e.clock = clock
	}
}

func WithName(name string) Option {
	return func(e *engine) {
		e.name = name
	}
}

func New(opts ...Option) Engine {
	e := &engine{
		name:        "strata",
		artifacts:   memoryfs.New(),
		clock:       time.Now,
		collections: map[entity.Category]*entity.Collection[entity.Entity]{},
	}
	for _, o := range opts {
		o(e)
	}
	e.namegen = namegenerator.NewNameGenerator(e.clock().UnixNano())
	for _, c := range []entity.Category{entity.PROCEDURES, entity.DATASETS, entity.FUNCTIONS} {
		e.collections[c] = entity.NewCollection[entity.Entity](e, c.String())
	}
	return e
}

func (e *engine) GetName() string {
	return e.name
}

func (e *engine) GetDescription() string {
	return fmt.Sprintf("strata engine %q", e.name)
}

func (e *engine) GetParent() entity.Entity {
	return nil
}

func (e *engine) IsCollection() bool {
	return true
}

func (e *engine) Now() utils.Timestamp {
	return utils.NewTimestampFor(e.clock())
}

func (e *engine) Artifacts() vfs.FileSystem {
	return e.artifacts
}

func (e *engine) collection(c entity.Category) (*entity.Collection[entity.Entity], error) {
	col := e.collections[c]
	if col == nil {
		return nil, fmt.Errorf("unknown category %q", c)
	}
	return col, nil
}

func (e *engine) Lookup(c entity.Category, name string) (entity.Entity, error) {
	col, err := e.collection(c)
	if err != nil {
		return nil, err
	}
	return col.Get(name)
}

func (e *engine) Names(c entity.Category) ([]string, error) {
	col, err := e.collection(c)
	if err != nil {
		return nil, err
	}
	return col.Names(), nil
}

func (e *engine) List(c entity.Category) ([]entity.Entity, error) {
	col, err := e.collection(c)
	if err != nil {
		return nil, err
	}
	return col.List(), nil
}

func (e *engine) Procedure(name string) (procedure.Procedure, error) {
	o, err := e.Lookup(entity.PROCEDURES, name)
	if err != nil {
		return nil, err
	}
	return o.(procedure.Procedure), nil
}

func (e *engine) Dataset(name string) (dataset.Dataset, error) {
	o, err := e.Lookup(entity.DATASETS, name)
	if err != nil {
		return nil, err
	}
	return o.(dataset.Dataset), nil
}

func (e *engine) Function(name string) (function.Function, error) {
	o, err := e.Lookup(entity.FUNCTIONS, name)
	if err != nil {
		return nil, err
	}
	return o.(function.Function), nil
}

// generateName provides an unused entity name for a collection.
func (e *engine) generateName(col *entity.Collection[entity.Entity]) string {
	e.genlock.Lock()
	defer e.genlock.Unlock()
	for {
		name := e.namegen.Generate()
		if !col.Has(name) {
			return name
		}
	}
}

func (e *engine) Construct(c entity.Category, config runtime.PolyConfig, progress runtime.ProgressFunc) (entity.Entity, error) {
	col, err := e.collection(c)
	if err != nil {
		return nil, err
	}
	if config.ID == "" {
		config.ID = e.generateName(col)
	}

	var obj entity.Entity
	switch c {
	case entity.PROCEDURES:
		obj, err = procedure.Construct(e, config, progress)
	case entity.DATASETS:
		obj, err = dataset.Construct(e, config, progress)
	case entity.FUNCTIONS:
		obj, err = function.Construct(e, config, progress)
	}
	if err != nil {
		return nil, err
	}

	if err := col.Add(config.ID, obj); err != nil {
		return nil, err
	}
	log.Info("created {{category}} {{name}} of kind {{kind}}", "category", c.Elem(), "name", config.ID, "kind", config.Kind)

	if c == entity.PROCEDURES {
		var common procedure.CommonConfig
		if err := config.Params.Extract(&common); err == nil && common.RunOnCreation {
			p := obj.(procedure.Procedure)
			if _, err := procedure.Perform(p, procedure.RunConfig{}, progress); err != nil {
				_ = col.Remove(config.ID)
				return nil, err
			}
		}
	}
	return obj, nil
}

func (e *engine) Delete(c entity.Category, name string) error {
	col, err := e.collection(c)
	if err != nil {
		return err
	}
	if err := col.Remove(name); err != nil {
		return err
	}
	log.Info("deleted {{category}} {{name}}", "category", c.Elem(), "name", name)
	return nil
}

func (e *engine) Run(name string, run procedure.RunConfig, progress runtime.ProgressFunc) (*procedure.Run, error) {
	p, err := e.Procedure(name)
	if err != nil {
		return nil, err
	}
	return procedure.Perform(p, run, progress)
}
