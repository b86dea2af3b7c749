// Package dataset models dataset identity: the typed name of a data
// product, the identity fields that distinguish one instance from
// another, and references to concrete instances.
package dataset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// NameWithComponent forms the dataset-type name for a component of a
// composite, e.g. NameWithComponent("calexp", "wcs") == "calexp.wcs".
// No validation is performed.
func NameWithComponent(parent, component string) string {
	return parent + "." + component
}

// SplitComponent splits a possibly component-qualified dataset-type name
// into its parent name and component. The component is empty for plain
// names.
func SplitComponent(name string) (parent, component string) {
	if dot := strings.IndexByte(name, '.'); dot >= 0 {
		return name[:dot], name[dot+1:]
	}
	return name, ""
}

// Type names a kind of data product: what identity fields label its
// instances and which storage class persists it.
type Type struct {
	// Name is the dataset-type name, unique across a repository. A name
	// of the form "parent.component" addresses one component of a
	// composite.
	Name string

	// Dimensions are the identity-field names that label instances
	// (instrument, visit, detector, tract, ...).
	Dimensions []string

	// StorageClass is the name of the storage class that persists this
	// type.
	StorageClass string
}

// NewType builds a Type with sorted dimensions.
func NewType(name string, dimensions []string, storageClass string) Type {
	dims := append([]string(nil), dimensions...)
	sort.Strings(dims)
	return Type{Name: name, Dimensions: dims, StorageClass: storageClass}
}

// Component returns the component part of the type name, or "" for a
// plain type.
func (t Type) Component() string {
	_, comp := SplitComponent(t.Name)
	return comp
}

// IsComponent reports whether the type addresses a component of a
// composite.
func (t Type) IsComponent() bool { return t.Component() != "" }

// ParentName returns the type name with any component suffix removed.
func (t Type) ParentName() string {
	parent, _ := SplitComponent(t.Name)
	return parent
}

// ComponentTypeName returns the dataset-type name to use for the named
// component of this type.
func (t Type) ComponentTypeName(component string) string {
	return NameWithComponent(t.Name, component)
}

// LookupNames returns the names to try, in priority order, when looking
// this type up in a template or formatter dictionary: the type name
// itself, then the parent name for components. Storage-class names are
// appended by callers that hold the storage-class registry.
func (t Type) LookupNames() []string {
	names := []string{t.Name}
	if parent := t.ParentName(); parent != t.Name {
		names = append(names, parent)
	}
	return names
}

func (t Type) String() string {
	return fmt.Sprintf("DatasetType(%s, %s)", t.Name, t.StorageClass)
}

// DataID maps identity-field names to values for one dataset instance,
// e.g. {"instrument": "HSC", "visit": 903334}.
type DataID map[string]any

// Instrument returns the data ID's instrument value, or "".
func (d DataID) Instrument() string {
	if v, ok := d["instrument"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// FieldSet returns the set of fields with non-nil values.
func (d DataID) FieldSet() map[string]struct{} {
	set := make(map[string]struct{}, len(d))
	for k, v := range d {
		if v != nil {
			set[k] = struct{}{}
		}
	}
	return set
}

// Ref is a reference to one dataset instance: a type plus the data ID
// that labels it, and once registered, a unique id and the run it was
// produced in.
type Ref struct {
	ID     uuid.UUID
	Type   Type
	DataID DataID
	Run    string
}

// NewRef creates a resolved reference with a fresh unique id.
func NewRef(t Type, dataID DataID, run string) Ref {
	return Ref{ID: uuid.New(), Type: t, DataID: dataID, Run: run}
}

func (r Ref) String() string {
	return fmt.Sprintf("%s@%v (run=%s)", r.Type.Name, map[string]any(r.DataID), r.Run)
}

// TemplateValues flattens the reference into the value map a path
// template renders from: every data ID field, plus datasetType, run and
// component pseudo-fields.
func (r Ref) TemplateValues() map[string]any {
	values := make(map[string]any, len(r.DataID)+3)
	for k, v := range r.DataID {
		values[k] = v
	}
	values["datasetType"] = r.Type.ParentName()
	if comp := r.Type.Component(); comp != "" {
		values["component"] = comp
	}
	if r.Run != "" {
		values["run"] = r.Run
	}
	return values
}
