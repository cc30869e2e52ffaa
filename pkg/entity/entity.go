package entity

import (
	"fmt"

	"github.com/mandelsoft/vfs/pkg/vfs"

	"github.com/stratadb/strata/pkg/utils"
)

var ErrNotFound = fmt.Errorf("entity not found")
var ErrAlreadyExists = fmt.Errorf("entity already exists")

// Category names one of the entity collections kept by the engine.
type Category string

const (
	PROCEDURES Category = "procedures"
	DATASETS   Category = "datasets"
	FUNCTIONS  Category = "functions"
)

func (c Category) String() string {
	return string(c)
}

// Elem is the singular label of a category used in messages.
func (c Category) Elem() string {
	switch c {
	case PROCEDURES:
		return "procedure"
	case DATASETS:
		return "dataset"
	case FUNCTIONS:
		return "function"
	}
	return string(c)
}

// Entity is a node of the engine's object tree.
type Entity interface {
	GetName() string
	GetDescription() string
	GetParent() Entity
	IsCollection() bool
}

// Attachable is implemented by entities tracking their tree position.
// Collections attach entities when they are added.
type Attachable interface {
	Attach(parent Entity)
}

// Disposable is implemented by entities holding state requiring
// cleanup. Collections dispose entities when they are removed.
type Disposable interface {
	Dispose()
}

// Directory is the engine handle handed to entity factories. It
// provides access to sibling entities, the engine clock and the
// artifact file system without exposing the engine implementation.
type Directory interface {
	Entity

	// Lookup resolves an attached entity by category and name.
	Lookup(category Category, name string) (Entity, error)

	Now() utils.Timestamp
	Artifacts() vfs.FileSystem
}
