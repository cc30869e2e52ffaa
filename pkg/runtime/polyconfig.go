package runtime

import (
	"github.com/stratadb/strata/pkg/utils"
)

// PolyConfig is the polymorphic configuration envelope shared by all
// engine entities. The kind selects the registered implementation,
// the id names the entity instance and params carries the kind
// specific configuration as an opaque tree.
type PolyConfig struct {
	Kind    string `json:"kind"`
	Version string `json:"version,omitempty"`
	ID      string `json:"id,omitempty"`
	Params  Value  `json:"params,omitempty"`
}

func NewConfig(kind, id string, params ...Value) PolyConfig {
	return PolyConfig{
		Kind:   kind,
		ID:     id,
		Params: utils.Optional(params...),
	}
}

// Defaultable is implemented by configuration types with non zero
// defaults. Default runs after every decoding before validation.
type Defaultable interface {
	Default()
}

// Validatable is implemented by configuration types carrying semantic
// constraints beyond their field structure. Validation runs after
// every decoding, for the static configuration as well as for merged
// run configurations.
type Validatable interface {
	Validate() error
}

// ProgressFunc receives progress information for a long running
// operation. Returning false requests cooperative cancellation, the
// operation then stops at the next progress point.
type ProgressFunc func(info Value) bool

// Report calls the progress function if set. Without a function
// progress is discarded and the operation never cancelled.
func (f ProgressFunc) Report(info Value) bool {
	if f == nil {
		return true
	}
	return f(info)
}
