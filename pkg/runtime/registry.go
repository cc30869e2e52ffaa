package runtime

import (
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"sync"

	"k8s.io/apimachinery/pkg/util/sets"
)

var ErrUnknownType = fmt.Errorf("unknown kind")
var ErrTypeExists = fmt.Errorf("kind already registered")

// Registration flags classifying kinds beyond their category.
const (
	// FlagHidden excludes a kind from kind listings. It can still be
	// instantiated by name.
	FlagHidden = "hidden"
)

// Factory creates an entity of a registered kind. It receives the
// owning directory, the complete configuration envelope, the decoded
// and validated kind specific configuration and the progress callback
// active during creation.
type Factory[O, E any] func(owner O, config PolyConfig, decoded any, progress ProgressFunc) (E, error)

// KindInfo describes a single registered kind.
type KindInfo struct {
	Name        string
	Description string
	Flags       sets.Set[string]

	// Docs optionally serves the kind documentation.
	Docs http.Handler
	// Custom optionally serves additional kind specific routes.
	Custom http.Handler
}

type entry[O, E any] struct {
	KindInfo
	factory Factory[O, E]
	proto   reflect.Type
}

// TypeRegistry maps kind names to factories and configuration
// prototypes for one entity category. It is populated during process
// initialization and only read afterwards, but guarded for concurrent
// construction anyway.
type TypeRegistry[O, E any] struct {
	lock  sync.Mutex
	elem  string
	types map[string]*entry[O, E]
}

// NewTypeRegistry creates a registry for the given category. The
// category name is only used to label error messages.
func NewTypeRegistry[O, E any](elem string) *TypeRegistry[O, E] {
	return &TypeRegistry[O, E]{
		elem:  elem,
		types: map[string]*entry[O, E]{},
	}
}

type RegisterOption func(*KindInfo)

// WithDocs attaches a documentation handler to a kind registration.
func WithDocs(h http.Handler) RegisterOption {
	return func(i *KindInfo) {
		i.Docs = h
	}
}

// WithCustom attaches a handler for kind specific routes.
func WithCustom(h http.Handler) RegisterOption {
	return func(i *KindInfo) {
		i.Custom = h
	}
}

func WithFlags(flags ...string) RegisterOption {
	return func(i *KindInfo) {
		i.Flags.Insert(flags...)
	}
}

// Register adds a kind to the registry. The proto object determines
// the configuration type, it must be a pointer to a struct and is
// never modified. Registering a name twice is an error.
func (r *TypeRegistry[O, E]) Register(name, description string, proto any, factory Factory[O, E], opts ...RegisterOption) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	t := reflect.TypeOf(proto)
	if t == nil || t.Kind() != reflect.Pointer {
		return fmt.Errorf("config proto for %s kind %q must be pointer", r.elem, name)
	}
	t = t.Elem()
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("config proto for %s kind %q must be pointer to struct", r.elem, name)
	}
	if r.types[name] != nil {
		return fmt.Errorf("%w: %s %q", ErrTypeExists, r.elem, name)
	}

	e := &entry[O, E]{
		KindInfo: KindInfo{
			Name:        name,
			Description: description,
			Flags:       sets.New[string](),
		},
		factory: factory,
		proto:   t,
	}
	for _, o := range opts {
		o(&e.KindInfo)
	}
	r.types[name] = e
	return nil
}

func (r *TypeRegistry[O, E]) MustRegister(name, description string, proto any, factory Factory[O, E], opts ...RegisterOption) {
	err := r.Register(name, description, proto, factory, opts...)
	if err != nil {
		panic(err)
	}
}

func (r *TypeRegistry[O, E]) HasType(name string) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.types[name] != nil
}

// GetType returns the descriptor of a registered kind.
func (r *TypeRegistry[O, E]) GetType(name string) (*KindInfo, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	e := r.types[name]
	if e == nil {
		return nil, false
	}
	info := e.KindInfo
	info.Flags = e.Flags.Clone()
	return &info, true
}

// TypeNames returns the names of all visible kinds, sorted. Kinds
// flagged as hidden are omitted.
func (r *TypeRegistry[O, E]) TypeNames() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	var names []string
	for n, e := range r.types {
		if e.Flags.Has(FlagHidden) {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AllTypeNames returns the names of all kinds including hidden ones,
// sorted.
func (r *TypeRegistry[O, E]) AllTypeNames() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	var names []string
	for n := range r.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewConfig creates a fresh configuration object for a kind.
func (r *TypeRegistry[O, E]) NewConfig(name string) (any, error) {
	r.lock.Lock()
	e := r.types[name]
	r.lock.Unlock()

	if e == nil {
		return nil, fmt.Errorf("%w: %s %q", ErrUnknownType, r.elem, name)
	}
	return reflect.New(e.proto).Interface(), nil
}

// DecodeConfig decodes and validates the parameters of an envelope
// into a fresh configuration object for its kind.
func (r *TypeRegistry[O, E]) DecodeConfig(config PolyConfig) (any, error) {
	r.lock.Lock()
	e := r.types[config.Kind]
	r.lock.Unlock()

	if e == nil {
		return nil, fmt.Errorf("%w: %s %q", ErrUnknownType, r.elem, config.Kind)
	}
	return r.decode(e, config.Params)
}

func (r *TypeRegistry[O, E]) decode(e *entry[O, E], params Value) (any, error) {
	cfg := reflect.New(e.proto).Interface()
	if err := params.Decode(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s kind %q: %w", r.elem, e.Name, err)
	}
	if d, ok := cfg.(Defaultable); ok {
		d.Default()
	}
	if v, ok := cfg.(Validatable); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration for %s kind %q: %w", r.elem, e.Name, err)
		}
	}
	return cfg, nil
}

// Construct creates an entity from a configuration envelope. The
// parameters are decoded strictly against the registered prototype
// and validated before the factory runs. A failed construction
// leaves no trace, the factory either returns a complete entity or
// an error.
func (r *TypeRegistry[O, E]) Construct(owner O, config PolyConfig, progress ProgressFunc) (E, error) {
	var _nil E

	if config.Kind == "" {
		return _nil, fmt.Errorf("no kind given for %s %q", r.elem, config.ID)
	}

	r.lock.Lock()
	e := r.types[config.Kind]
	r.lock.Unlock()

	if e == nil {
		return _nil, fmt.Errorf("%w: %s %q", ErrUnknownType, r.elem, config.Kind)
	}

	decoded, err := r.decode(e, config.Params)
	if err != nil {
		return _nil, err
	}

	obj, err := e.factory(owner, config, decoded, progress)
	if err != nil {
		return _nil, fmt.Errorf("cannot create %s kind %q: %w", r.elem, config.Kind, err)
	}
	return obj, nil
}

// Reset drops all registrations. It is intended for tests working
// with process wide registries.
func (r *TypeRegistry[O, E]) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.types = map[string]*entry[O, E]{}
}
