package datastore

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/skyarchive/depot/qualifier"
)

// ErrNoFormatter is returned when no formatter entry applies to a dataset
// identity.
var ErrNoFormatter = errors.New("no formatter for dataset")

// FormatterMap maps storage classes or dataset types to the dotted
// identifier of the formatter that serializes them. Keys follow the same
// grammar as template dictionaries: plain names, instrument qualifiers
// with nested mappings, and field-driven overrides.
type FormatterMap struct {
	table qualifier.Table[string]
}

// UnmarshalYAML decodes the formatter mapping.
func (m *FormatterMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("formatters must be a mapping")
	}

	for i := 0; i < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		key, err := qualifier.ParseKey(keyNode.Value)
		if err != nil {
			return err
		}

		switch valNode.Kind {
		case yaml.ScalarNode:
			// A scalar under a bare instrument scope is that
			// instrument's default.
			if key.Instrument != "" && key.Name == "" {
				key.Name = "default"
			}
			m.table.Put(key, valNode.Value)

		case yaml.MappingNode:
			if key.Instrument == "" {
				return fmt.Errorf("nested formatter mapping under %q: only instrument qualifiers nest", keyNode.Value)
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
					return fmt.Errorf("formatter for key %q under %q must be a string", innerKeyNode.Value, keyNode.Value)
				}
				inner.Instrument = key.Instrument
				m.table.Put(inner, innerValNode.Value)
			}

		default:
			return fmt.Errorf("formatter for key %q must be a string or a mapping", keyNode.Value)
		}
	}
	return nil
}

// Len returns the number of declared formatters.
func (m *FormatterMap) Len() int { return m.table.Len() }

// Keys returns the declared keys in document order.
func (m *FormatterMap) Keys() []qualifier.Key { return m.table.Keys() }

// Get returns the formatter stored under exactly the given key.
func (m *FormatterMap) Get(key qualifier.Key) (string, bool) {
	return m.table.Get(key)
}

// Lookup resolves the formatter for a dataset identity with the standard
// candidate precedence.
func (m *FormatterMap) Lookup(id qualifier.Identity) (string, qualifier.Key, error) {
	f, key, ok := m.table.Lookup(id)
	if !ok {
		return "", qualifier.Key{}, fmt.Errorf("%w: tried %v", ErrNoFormatter, id.Names)
	}
	return f, key, nil
}

// Validate checks that every value is a dotted implementation identifier
// and, when known is non-nil, that every plain key names a storage class
// or dataset type the configuration declares.
func (m *FormatterMap) Validate(known func(string) bool) error {
	var errs []error
	for _, key := range m.table.Keys() {
		val, _ := m.table.Get(key)
		if !validDottedIdentifier(val) {
			errs = append(errs, fmt.Errorf("formatter for %q: %q is not a dotted identifier", key, val))
		}
		if known != nil && key.Name != "" && key.Name != "default" && !known(key.Name) {
			errs = append(errs, fmt.Errorf("formatter key %q names no known storage class or dataset type", key))
		}
	}
	return errors.Join(errs...)
}
