package entity_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stratadb/strata/pkg/entity"
	. "github.com/stratadb/strata/pkg/testutils"
)

type element struct {
	name     string
	parent   entity.Entity
	disposed bool
}

var _ entity.Entity = (*element)(nil)

func (e *element) GetName() string {
	return e.name
}

func (e *element) GetDescription() string {
	return "test element"
}

func (e *element) GetParent() entity.Entity {
	return e.parent
}

func (e *element) IsCollection() bool {
	return false
}

func (e *element) Attach(parent entity.Entity) {
	e.parent = parent
}

func (e *element) Dispose() {
	e.disposed = true
}

var _ = Describe("collections", func() {
	var coll *entity.Collection[*element]

	BeforeEach(func() {
		coll = entity.NewCollection[*element](nil, "elements")
	})

	It("keeps entities in attachment order", func() {
		MustBeSuccessful(coll.Add("c", &element{name: "c"}))
		MustBeSuccessful(coll.Add("a", &element{name: "a"}))
		MustBeSuccessful(coll.Add("b", &element{name: "b"}))

		Expect(coll.Names()).To(Equal([]string{"c", "a", "b"}))
		Expect(coll.Len()).To(Equal(3))
	})

	It("attaches added entities to itself", func() {
		e := &element{name: "a"}
		MustBeSuccessful(coll.Add("a", e))

		Expect(e.GetParent()).To(BeIdenticalTo(entity.Entity(coll)))
		Expect(Must(coll.Get("a"))).To(BeIdenticalTo(e))
	})

	It("rejects duplicate names", func() {
		MustBeSuccessful(coll.Add("a", &element{name: "a"}))

		err := coll.Add("a", &element{name: "other"})
		Expect(errors.Is(err, entity.ErrAlreadyExists)).To(BeTrue())
		Expect(err.Error()).To(Equal(`entity already exists: elements "a"`))
	})

	It("fails lookup of unknown entities", func() {
		_, err := coll.Get("missing")
		Expect(errors.Is(err, entity.ErrNotFound)).To(BeTrue())
	})

	It("disposes removed entities", func() {
		e := &element{name: "a"}
		MustBeSuccessful(coll.Add("a", e))
		MustBeSuccessful(coll.Add("b", &element{name: "b"}))

		MustBeSuccessful(coll.Remove("a"))
		Expect(e.disposed).To(BeTrue())
		Expect(coll.Names()).To(Equal([]string{"b"}))
		Expect(coll.Has("a")).To(BeFalse())

		Expect(errors.Is(coll.Remove("a"), entity.ErrNotFound)).To(BeTrue())
	})
})
