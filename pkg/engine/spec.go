package engine

import (
	"github.com/stratadb/strata/pkg/entity"
	"github.com/stratadb/strata/pkg/runtime"
)

// Spec is a declarative set of entities, used by the daemon to
// populate a fresh engine and by the command line client as apply
// manifest layout. Entities are listed per category.
type Spec struct {
	Datasets   []runtime.PolyConfig `json:"datasets,omitempty"`
	Functions  []runtime.PolyConfig `json:"functions,omitempty"`
	Procedures []runtime.PolyConfig `json:"procedures,omitempty"`
}

// Each visits the envelopes in dependency friendly order: datasets
// first, then functions, then procedures. Visiting stops at the
// first error.
func (s *Spec) Each(f func(category entity.Category, config runtime.PolyConfig) error) error {
	for _, step := range []struct {
		category entity.Category
		configs  []runtime.PolyConfig
	}{
		{entity.DATASETS, s.Datasets},
		{entity.FUNCTIONS, s.Functions},
		{entity.PROCEDURES, s.Procedures},
	} {
		for _, config := range step.configs {
			if err := f(step.category, config); err != nil {
				return err
			}
		}
	}
	return nil
}

// Apply creates all listed entities in the given engine.
func (s *Spec) Apply(eng Engine) error {
	return s.Each(func(category entity.Category, config runtime.PolyConfig) error {
		_, err := eng.Construct(category, config, nil)
		return err
	})
}
