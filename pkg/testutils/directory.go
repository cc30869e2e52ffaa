package testutils

import (
	"fmt"
	"time"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"

	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/utils"
)

// Directory is a minimal entity.Directory serving tests without a
// complete engine. Entities are registered with Add, the artifact
// store is memory backed and the clock can be fixed.
type Directory struct {
	FS       vfs.FileSystem
	Clock    func() time.Time
	entities map[entity.Category]map[string]entity.Entity
}

var _ entity.Directory = (*Directory)(nil)

func NewDirectory() *Directory {
	return &Directory{
		FS:       memoryfs.New(),
		entities: map[entity.Category]map[string]entity.Entity{},
	}
}

func (d *Directory) Add(c entity.Category, e entity.Entity) *Directory {
	m := d.entities[c]
	if m == nil {
		m = map[string]entity.Entity{}
		d.entities[c] = m
	}
	m[e.GetName()] = e
	if a, ok := e.(entity.Attachable); ok {
		a.Attach(d)
	}
	return d
}

func (d *Directory) GetName() string          { return "test" }
func (d *Directory) GetDescription() string   { return "test directory" }
func (d *Directory) GetParent() entity.Entity { return nil }
func (d *Directory) IsCollection() bool       { return true }

func (d *Directory) Lookup(c entity.Category, name string) (entity.Entity, error) {
	if e, ok := d.entities[c][name]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s %q", entity.ErrNotFound, c.Elem(), name)
}

func (d *Directory) Now() utils.Timestamp {
	if d.Clock != nil {
		return utils.NewTimestampFor(d.Clock())
	}
	return utils.NewTimestamp()
}

func (d *Directory) Artifacts() vfs.FileSystem {
	return d.FS
}
