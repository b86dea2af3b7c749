package template

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/skyarchive/depot/qualifier"
)

// ErrNoTemplate is returned when no dictionary entry applies to a dataset
// identity and no default is declared.
var ErrNoTemplate = errors.New("no template for dataset")

// Dictionary is a named set of path templates. Keys are plain template
// names (default, calexp, metric), dataset-type overrides, qualifier
// expressions (instrument<HSC>, physical_filter+), or a nested
// dataset-type mapping under an instrument qualifier.
type Dictionary struct {
	table qualifier.Table[*FileTemplate]
}

// document is the standalone template-document shape.
type document struct {
	Templates *Dictionary `yaml:"templates"`
}

// ParseDocument parses a standalone template document (entries under a
// templates key).
func ParseDocument(data []byte) (*Dictionary, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse template document: %w", err)
	}
	if doc.Templates == nil || doc.Templates.Len() == 0 {
		return nil, fmt.Errorf("template document has no templates mapping")
	}
	return doc.Templates, nil
}

// LoadFromFile reads and parses a standalone template document.
func LoadFromFile(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template document: %w", err)
	}
	dict, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return dict, nil
}

// UnmarshalYAML decodes the dictionary mapping. A scalar value declares
// one template; a mapping value must sit under an instrument qualifier
// and scopes every inner entry to that instrument.
func (d *Dictionary) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("templates must be a mapping, got %s", nodeKind(node))
	}

	for i := 0; i < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		key, err := qualifier.ParseKey(keyNode.Value)
		if err != nil {
			return err
		}

		switch valNode.Kind {
		case yaml.ScalarNode:
			tmpl, err := Parse(valNode.Value)
			if err != nil {
				return fmt.Errorf("template for key %q: %w", keyNode.Value, err)
			}
			// A scalar under a bare instrument scope is that
			// instrument's default.
			if key.Instrument != "" && key.Name == "" {
				key.Name = "default"
			}
			d.table.Put(key, tmpl)

		case yaml.MappingNode:
			if key.Instrument == "" {
				return fmt.Errorf("nested template mapping under %q: only instrument qualifiers nest", keyNode.Value)
			}
			for j := 0; j < len(valNode.Content); j += 2 {
				innerKeyNode, innerValNode := valNode.Content[j], valNode.Content[j+1]
				inner, err := qualifier.ParseKey(innerKeyNode.Value)
				if err != nil {
					return err
				}
				if inner.Instrument != "" {
					return fmt.Errorf("key %q nested under %q: instrument qualifiers do not nest", innerKeyNode.Value, keyNode.Value)
				}
				if innerValNode.Kind != yaml.ScalarNode {
					return fmt.Errorf("template for key %q under %q must be a string", innerKeyNode.Value, keyNode.Value)
				}
				tmpl, err := Parse(innerValNode.Value)
				if err != nil {
					return fmt.Errorf("template for key %q under %q: %w", innerKeyNode.Value, keyNode.Value, err)
				}
				inner.Instrument = key.Instrument
				d.table.Put(inner, tmpl)
			}

		default:
			return fmt.Errorf("template for key %q must be a string or a mapping", keyNode.Value)
		}
	}
	return nil
}

func nodeKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	default:
		return "document"
	}
}

// Len returns the number of declared templates.
func (d *Dictionary) Len() int { return d.table.Len() }

// Keys returns the declared keys in document order.
func (d *Dictionary) Keys() []qualifier.Key { return d.table.Keys() }

// Get returns the template stored under exactly the given key.
func (d *Dictionary) Get(key qualifier.Key) (*FileTemplate, bool) {
	return d.table.Get(key)
}

// Lookup resolves the template for a dataset identity, most specific
// entry first, falling back to the instrument-scoped and then plain
// default.
func (d *Dictionary) Lookup(id qualifier.Identity) (*FileTemplate, qualifier.Key, error) {
	tmpl, key, ok := d.table.Lookup(id)
	if !ok {
		return nil, qualifier.Key{}, fmt.Errorf("%w: tried %v", ErrNoTemplate, id.Names)
	}
	return tmpl, key, nil
}

// Validate checks every declared template's structure.
func (d *Dictionary) Validate() error {
	var errs []error
	for _, key := range d.table.Keys() {
		tmpl, _ := d.table.Get(key)
		if err := tmpl.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("template %q: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Merge layers another dictionary's entries over this one's and returns
// the combined dictionary. Entries in other win on equal keys.
func (d *Dictionary) Merge(other *Dictionary) *Dictionary {
	out := &Dictionary{}
	for _, key := range d.table.Keys() {
		tmpl, _ := d.table.Get(key)
		out.table.Put(key, tmpl)
	}
	if other != nil {
		for _, key := range other.table.Keys() {
			tmpl, _ := other.table.Get(key)
			out.table.Put(key, tmpl)
		}
	}
	return out
}
