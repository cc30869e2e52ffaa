package runtime

import (
	"encoding/json"

	"github.com/modern-go/reflect2"
	"sigs.k8s.io/yaml"
)

// Value holds an immutable structured parameter tree, the decoded
// form of a JSON or YAML document built from scalars, sequences and
// mappings. Accessors always hand out copies, the tree held by a
// Value is never modified after creation.
type Value struct {
	data any
}

// NewValue normalizes an arbitrary Go value into a Value by taking
// its JSON image. Structs decay to mappings, typed slices to
// sequences and all numbers to float64.
func NewValue(data any) (Value, error) {
	if reflect2.IsNil(data) {
		return Value{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Value{}, err
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return Value{}, err
	}
	return Value{tree}, nil
}

func MustValue(data any) Value {
	v, err := NewValue(data)
	if err != nil {
		panic(err)
	}
	return v
}

// ParseValue decodes a YAML or JSON document into a Value.
func ParseValue(data []byte) (Value, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return Value{}, err
	}
	return Value{tree}, nil
}

func (v Value) IsEmpty() bool {
	return v.data == nil
}

// Data returns a deep copy of the held tree.
func (v Value) Data() any {
	return copyTree(v.data)
}

// Map returns a copy of the tree if it is a mapping.
func (v Value) Map() (map[string]any, bool) {
	m, ok := v.data.(map[string]any)
	if !ok {
		return nil, false
	}
	return copyTree(m).(map[string]any), true
}

// Field returns the value of a top level mapping entry.
func (v Value) Field(name string) (Value, bool) {
	m, ok := v.data.(map[string]any)
	if !ok {
		return Value{}, false
	}
	f, ok := m[name]
	if !ok {
		return Value{}, false
	}
	return Value{copyTree(f)}, true
}

func (v Value) Equal(o Value) bool {
	return equalTree(v.data, o.data)
}

// Decode fills the given object from the tree. Unknown fields are
// rejected, so configuration typos surface as errors naming the
// offending field.
func (v Value) Decode(into any) error {
	raw, err := json.Marshal(v.data)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(raw, into)
}

// Extract fills the given object from the tree ignoring unknown
// fields. It is used to peek at shared configuration attributes
// without knowing the complete kind specific layout.
func (v Value) Extract(into any) error {
	raw, err := json.Marshal(v.data)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, into)
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.data)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return err
	}
	v.data = tree
	return nil
}

func (v Value) String() string {
	data, err := json.Marshal(v.data)
	if err != nil {
		return "<invalid>"
	}
	return string(data)
}

func copyTree(data any) any {
	switch t := data.(type) {
	case map[string]any:
		r := make(map[string]any, len(t))
		for k, v := range t {
			r[k] = copyTree(v)
		}
		return r
	case []any:
		r := make([]any, len(t))
		for i, v := range t {
			r[i] = copyTree(v)
		}
		return r
	default:
		return data
	}
}

func equalTree(a, b any) bool {
	switch ta := a.(type) {
	case map[string]any:
		tb, ok := b.(map[string]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for k, v := range ta {
			o, ok := tb[k]
			if !ok || !equalTree(v, o) {
				return false
			}
		}
		return true
	case []any:
		tb, ok := b.([]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i, v := range ta {
			if !equalTree(v, tb[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
