// Package storageclass models the storage-class registry: logical type
// names mapped to the native value type that backs them, with optional
// single-parent inheritance, decomposition into named components, an
// assembler implementation, and accepted read parameters.
package storageclass

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Sentinel errors callers branch on.
var (
	// ErrUnknownClass is returned when a name is not in the registry.
	ErrUnknownClass = errors.New("unknown storage class")

	// ErrCycle is returned when inheritance or component references form
	// a cycle.
	ErrCycle = errors.New("storage class cycle")
)

// StorageClass is one registry entry as declared in the document.
// Declared entries may be partial; Registry.Resolve merges inherited
// attributes beneath the declared ones.
type StorageClass struct {
	// Name is the logical type name, the registry key.
	Name string `yaml:"-"`

	// PyType is the dotted identifier of the concrete value type backing
	// the class. Opaque to this package; the consuming runtime's plugin
	// loader resolves it.
	PyType string `yaml:"pytype"`

	// InheritsFrom names a parent class whose attributes are inherited
	// and may be overridden. Single parent only.
	InheritsFrom string `yaml:"inheritsFrom"`

	// Assembler is the dotted identifier of the implementation that
	// composes and decomposes structured values. Only meaningful for
	// composites.
	Assembler string `yaml:"assembler"`

	// Parameters are the keyword options accepted on read (bbox, origin,
	// columns, ...).
	Parameters []string `yaml:"parameters"`

	// Components maps component names to the storage class persisting
	// each part of a composite.
	Components map[string]string `yaml:"components"`
}

// IsComposite reports whether the class decomposes into components.
func (sc *StorageClass) IsComposite() bool { return len(sc.Components) > 0 }

// ComponentNames returns the sorted component names.
func (sc *StorageClass) ComponentNames() []string {
	names := make([]string, 0, len(sc.Components))
	for name := range sc.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateParameters checks that every given parameter name is accepted
// by the class.
func (sc *StorageClass) ValidateParameters(params ...string) error {
	if len(params) == 0 {
		return nil
	}
	accepted := make(map[string]struct{}, len(sc.Parameters))
	for _, p := range sc.Parameters {
		accepted[p] = struct{}{}
	}
	for _, p := range params {
		if _, ok := accepted[p]; !ok {
			return fmt.Errorf("storage class %s does not accept parameter %q", sc.Name, p)
		}
	}
	return nil
}

func (sc *StorageClass) String() string {
	return fmt.Sprintf("StorageClass(%s, pytype=%s)", sc.Name, sc.PyType)
}

// clone returns a deep copy so resolved views never alias declared
// entries.
func (sc *StorageClass) clone() *StorageClass {
	out := &StorageClass{
		Name:         sc.Name,
		PyType:       sc.PyType,
		InheritsFrom: sc.InheritsFrom,
		Assembler:    sc.Assembler,
	}
	out.Parameters = append([]string(nil), sc.Parameters...)
	if sc.Components != nil {
		out.Components = make(map[string]string, len(sc.Components))
		for k, v := range sc.Components {
			out.Components[k] = v
		}
	}
	return out
}

// Registry holds the declared storage classes of one document and serves
// inheritance-resolved views of them. It is immutable once loaded;
// redefinition happens by loading a new registry.
type Registry struct {
	declared map[string]*StorageClass

	mu       sync.Mutex
	resolved map[string]*StorageClass
}

// NewRegistry builds a registry from declared entries. Entry names are
// taken from the map keys.
func NewRegistry(declared map[string]*StorageClass) *Registry {
	r := &Registry{
		declared: make(map[string]*StorageClass, len(declared)),
		resolved: make(map[string]*StorageClass, len(declared)),
	}
	for name, sc := range declared {
		entry := sc.clone()
		entry.Name = name
		r.declared[name] = entry
	}
	return r
}

// Names returns the sorted declared class names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.declared))
	for name := range r.declared {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the name is declared.
func (r *Registry) Has(name string) bool {
	_, ok := r.declared[name]
	return ok
}

// Get returns the declared (unresolved) entry.
func (r *Registry) Get(name string) (*StorageClass, error) {
	sc, ok := r.declared[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, name)
	}
	return sc, nil
}

// Resolve returns the inheritance-merged view of a class: ancestor
// attributes beneath child-declared ones. Parameters accumulate as a
// union; components merge per name with the child winning. Cycles and
// unknown parents are errors. The result is a copy the caller may
// mutate freely.
func (r *Registry) Resolve(name string) (*StorageClass, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc, err := r.resolve(name, map[string]struct{}{})
	if err != nil {
		return nil, err
	}
	return sc.clone(), nil
}

func (r *Registry) resolve(name string, visiting map[string]struct{}) (*StorageClass, error) {
	if sc, ok := r.resolved[name]; ok {
		return sc, nil
	}
	declared, ok := r.declared[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, name)
	}
	if declared.InheritsFrom == "" {
		root := declared.clone()
		r.resolved[name] = root
		return root, nil
	}

	if _, ok := visiting[name]; ok {
		return nil, fmt.Errorf("%w: inheritance through %s revisits %s", ErrCycle, declared.InheritsFrom, name)
	}
	visiting[name] = struct{}{}

	parent, err := r.resolve(declared.InheritsFrom, visiting)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", name, err)
	}
	delete(visiting, name)

	merged := parent.clone()
	merged.Name = name
	merged.InheritsFrom = declared.InheritsFrom
	if declared.PyType != "" {
		merged.PyType = declared.PyType
	}
	if declared.Assembler != "" {
		merged.Assembler = declared.Assembler
	}
	merged.Parameters = unionParameters(parent.Parameters, declared.Parameters)
	if len(declared.Components) > 0 {
		if merged.Components == nil {
			merged.Components = make(map[string]string, len(declared.Components))
		}
		for comp, class := range declared.Components {
			merged.Components[comp] = class
		}
	}

	r.resolved[name] = merged
	return merged, nil
}

func unionParameters(parent, child []string) []string {
	if len(parent) == 0 && len(child) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(parent)+len(child))
	out := make([]string, 0, len(parent)+len(child))
	for _, p := range parent {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	for _, p := range child {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// LookupNames returns the names to try, in priority order, when looking a
// class up in a template or formatter dictionary: the class itself, then
// its ancestors towards the root.
func (r *Registry) LookupNames(name string) ([]string, error) {
	var names []string
	visiting := map[string]struct{}{}
	for name != "" {
		if _, ok := visiting[name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrCycle, name)
		}
		visiting[name] = struct{}{}
		sc, ok := r.declared[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownClass, name)
		}
		names = append(names, name)
		name = sc.InheritsFrom
	}
	return names, nil
}

// Validate checks the whole registry's structural properties: every
// inheritsFrom names a declared class, inheritance is acyclic, every
// component reference resolves to a declared class, component nesting is
// acyclic, and every resolved class ends up with a concrete pytype.
func (r *Registry) Validate() error {
	var errs []error
	for _, name := range r.Names() {
		resolved, err := r.Resolve(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if resolved.PyType == "" {
			errs = append(errs, fmt.Errorf("storage class %s resolves to no pytype", name))
		}
		for comp, class := range resolved.Components {
			if !r.Has(class) {
				errs = append(errs, fmt.Errorf("storage class %s component %s: %w: %s", name, comp, ErrUnknownClass, class))
			}
		}
		if err := r.checkComponentCycle(name, map[string]struct{}{}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// checkComponentCycle walks the component graph from name, rejecting a
// composite that transitively contains itself.
func (r *Registry) checkComponentCycle(name string, visiting map[string]struct{}) error {
	if _, ok := visiting[name]; ok {
		return fmt.Errorf("%w: composite %s contains itself", ErrCycle, name)
	}
	resolved, err := r.Resolve(name)
	if err != nil {
		// Reported separately by Validate.
		return nil
	}
	visiting[name] = struct{}{}
	defer delete(visiting, name)
	for _, class := range resolved.Components {
		if !r.Has(class) {
			continue
		}
		if err := r.checkComponentCycle(class, visiting); err != nil {
			return err
		}
	}
	return nil
}
