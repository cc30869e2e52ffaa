package entity

import (
	"fmt"
	"slices"
	"sync"
)

// Collection is a named set of entities below a common parent.
// Entities are kept in attachment order. All operations are safe for
// concurrent use.
type Collection[E Entity] struct {
	lock   sync.RWMutex
	name   string
	parent Entity
	order  []string
	elems  map[string]E
}

var _ Entity = (*Collection[Entity])(nil)

func NewCollection[E Entity](parent Entity, name string) *Collection[E] {
	return &Collection[E]{
		name:   name,
		parent: parent,
		elems:  map[string]E{},
	}
}

func (c *Collection[E]) GetName() string {
	return c.name
}

func (c *Collection[E]) GetDescription() string {
	return fmt.Sprintf("collection of %s", c.name)
}

func (c *Collection[E]) GetParent() Entity {
	return c.parent
}

func (c *Collection[E]) IsCollection() bool {
	return true
}

// Add attaches an entity under the given name. The name must not be
// taken, entities are never replaced implicitly.
func (c *Collection[E]) Add(name string, e E) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if _, ok := c.elems[name]; ok {
		return fmt.Errorf("%w: %s %q", ErrAlreadyExists, c.name, name)
	}
	c.elems[name] = e
	c.order = append(c.order, name)
	if a, ok := Entity(e).(Attachable); ok {
		a.Attach(c)
	}
	return nil
}

func (c *Collection[E]) Get(name string) (E, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	var _nil E
	e, ok := c.elems[name]
	if !ok {
		return _nil, fmt.Errorf("%w: %s %q", ErrNotFound, c.name, name)
	}
	return e, nil
}

func (c *Collection[E]) Has(name string) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()

	_, ok := c.elems[name]
	return ok
}

// Remove detaches an entity and disposes its state.
func (c *Collection[E]) Remove(name string) error {
	c.lock.Lock()

	e, ok := c.elems[name]
	if !ok {
		c.lock.Unlock()
		return fmt.Errorf("%w: %s %q", ErrNotFound, c.name, name)
	}
	delete(c.elems, name)
	if i := slices.Index(c.order, name); i >= 0 {
		c.order = slices.Delete(c.order, i, i+1)
	}
	c.lock.Unlock()

	if d, ok := Entity(e).(Disposable); ok {
		d.Dispose()
	}
	return nil
}

// Names returns the attached names in attachment order.
func (c *Collection[E]) Names() []string {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return slices.Clone(c.order)
}

// List returns the attached entities in attachment order.
func (c *Collection[E]) List() []E {
	c.lock.RLock()
	defer c.lock.RUnlock()

	r := make([]E, 0, len(c.order))
	for _, n := range c.order {
		r = append(r, c.elems[n])
	}
	return r
}

func (c *Collection[E]) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return len(c.elems)
}
