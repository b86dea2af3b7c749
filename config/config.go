// Package config loads and ties together the three configuration
// documents of a depot repository: the storage-class registry, the shared
// template dictionary, and the datastore descriptors. Documents are
// loaded wholesale at process start and held immutable; redefinition only
// happens by loading a new Config.
package config

import (
	"errors"
	"fmt"

	"github.com/skyarchive/depot/dataset"
	"github.com/skyarchive/depot/datastore"
	"github.com/skyarchive/depot/qualifier"
	"github.com/skyarchive/depot/storageclass"
	"github.com/skyarchive/depot/template"
)

// ErrNoDatastore is returned when no datastore accepts a dataset.
var ErrNoDatastore = errors.New("no datastore accepts dataset")

// Config is one immutable configuration snapshot.
type Config struct {
	// Registry is the storage-class registry.
	Registry *storageclass.Registry

	// Templates is the shared template dictionary. Datastores may carry
	// their own dictionaries, which take precedence.
	Templates *template.Dictionary

	// Datastores are the configured descriptors in declaration order.
	Datastores []*datastore.Config
}

// Validate runs every structural cross-document check: the registry's
// inheritance and component properties, every template's placeholder
// grammar, and every datastore's descriptor shape. Formatter keys must
// name declared storage classes; dataset-type keys are allowed only for
// types the templates dictionary also names, since the full dataset-type
// registry lives outside this configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Registry == nil {
		errs = append(errs, errors.New("configuration has no storage class registry"))
	} else if err := c.Registry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("storage classes: %w", err))
	}

	if c.Templates != nil {
		if err := c.Templates.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("templates: %w", err))
		}
	}

	known := c.knownName
	for i, ds := range c.Datastores {
		if err := ds.Validate(known); err != nil {
			errs = append(errs, fmt.Errorf("datastore %d: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

// knownName reports whether a plain dictionary key is accounted for: a
// declared storage class, or a dataset-type name the template dictionary
// declares a path for.
func (c *Config) knownName(name string) bool {
	if c.Registry != nil && c.Registry.Has(name) {
		return true
	}
	if c.Templates != nil {
		if _, ok := c.Templates.Get(qualifier.Key{Name: name}); ok {
			return true
		}
	}
	return datastoreDeclares(c.Datastores, name)
}

func datastoreDeclares(stores []*datastore.Config, name string) bool {
	for _, ds := range stores {
		if ds.Templates != nil {
			if _, ok := ds.Templates.Get(qualifier.Key{Name: name}); ok {
				return true
			}
		}
		if datastoreDeclares(ds.Datastores, name) {
			return true
		}
	}
	return false
}

// BindRoot resolves every datastore's root placeholder against the
// repository root.
func (c *Config) BindRoot(repoRoot string) {
	for _, ds := range c.Datastores {
		ds.BindRoot(repoRoot)
	}
}

// Identity builds the lookup identity for a dataset reference: the
// ordered dictionary names (dataset type, component parent, then the
// storage class and its ancestors), the instrument, and the set identity
// fields.
func (c *Config) Identity(ref dataset.Ref) (qualifier.Identity, error) {
	names := ref.Type.LookupNames()
	if ref.Type.StorageClass != "" {
		classNames, err := c.Registry.LookupNames(ref.Type.StorageClass)
		if err != nil {
			return qualifier.Identity{}, fmt.Errorf("dataset type %s: %w", ref.Type.Name, err)
		}
		names = append(names, classNames...)
	}
	return qualifier.Identity{
		Names:      names,
		Instrument: ref.DataID.Instrument(),
		Fields:     ref.DataID.FieldSet(),
	}, nil
}

// SelectDatastore returns the first datastore whose constraints accept
// the reference, descending into chain members. Chain parents never match
// directly; their children decide.
func (c *Config) SelectDatastore(ref dataset.Ref) (*datastore.Config, error) {
	id, err := c.Identity(ref)
	if err != nil {
		return nil, err
	}
	if ds := selectFrom(c.Datastores, id); ds != nil {
		return ds, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoDatastore, ref.Type.Name)
}

func selectFrom(candidates []*datastore.Config, id qualifier.Identity) *datastore.Config {
	for _, ds := range candidates {
		if !ds.Constraints.Accepts(id) {
			continue
		}
		if ds.IsChained() {
			if child := selectFrom(ds.Datastores, id); child != nil {
				return child
			}
			continue
		}
		return ds
	}
	return nil
}

// TemplateFor resolves the path template for a reference within a
// datastore: the datastore's own dictionary first, then the shared one.
func (c *Config) TemplateFor(ds *datastore.Config, ref dataset.Ref) (*template.FileTemplate, error) {
	id, err := c.Identity(ref)
	if err != nil {
		return nil, err
	}
	if ds != nil && ds.Templates != nil {
		if tmpl, _, err := ds.Templates.Lookup(id); err == nil {
			return tmpl, nil
		}
	}
	if c.Templates == nil {
		return nil, fmt.Errorf("%w: %s", template.ErrNoTemplate, ref.Type.Name)
	}
	tmpl, _, err := c.Templates.Lookup(id)
	return tmpl, err
}

// FormatterFor resolves the formatter identifier for a reference within a
// datastore.
func (c *Config) FormatterFor(ds *datastore.Config, ref dataset.Ref) (string, error) {
	if ds == nil || ds.Formatters == nil {
		return "", fmt.Errorf("%w: %s", datastore.ErrNoFormatter, ref.Type.Name)
	}
	id, err := c.Identity(ref)
	if err != nil {
		return "", err
	}
	f, _, err := ds.Formatters.Lookup(id)
	return f, err
}

// PathFor renders the file path a reference would be stored under within
// a datastore.
func (c *Config) PathFor(ds *datastore.Config, ref dataset.Ref) (string, error) {
	tmpl, err := c.TemplateFor(ds, ref)
	if err != nil {
		return "", err
	}
	return tmpl.Render(ref.TemplateValues())
}
