package storageclass

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// document is the on-disk shape: entries nested under a storageClasses
// key so the file is self-describing alongside the other documents.
type document struct {
	StorageClasses map[string]*StorageClass `yaml:"storageClasses"`
}

// ParseDocument parses a storage-class document into a registry. The
// registry is not validated; call Validate for the structural checks.
func ParseDocument(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse storage class document: %w", err)
	}
	if len(doc.StorageClasses) == 0 {
		return nil, fmt.Errorf("storage class document has no storageClasses mapping")
	}
	return NewRegistry(doc.StorageClasses), nil
}

// LoadFromFile reads and parses a storage-class document.
func LoadFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage class document: %w", err)
	}
	reg, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Merge layers another registry's declared entries over this one's and
// returns the combined registry. Entries in other win whole; there is no
// per-field merge across documents.
func (r *Registry) Merge(other *Registry) *Registry {
	if other == nil {
		return r
	}
	combined := make(map[string]*StorageClass, len(r.declared)+len(other.declared))
	for name, sc := range r.declared {
		combined[name] = sc
	}
	for name, sc := range other.declared {
		combined[name] = sc
	}
	return NewRegistry(combined)
}
