// Package datastore models datastore descriptors: which backend
// implementation serves a repository location, which datasets it accepts,
// how their file paths are computed, and which formatter serializes each
// storage class.
//
// The backend implementations themselves are out of scope; cls and
// formatter values stay opaque dotted identifiers for the consuming
// runtime's plugin loader.
package datastore

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/skyarchive/depot/template"
)

// RootToken is the substitution placeholder a root location may embed;
// BindRoot replaces it with the repository root at bind time.
const RootToken = "<repoRoot>"

// RecordsConfig names the table that holds per-file persistence records.
type RecordsConfig struct {
	Table string `yaml:"table"`
}

// Config is one datastore descriptor.
type Config struct {
	// Name is an optional label for the descriptor, useful in chains.
	Name string `yaml:"name"`

	// Cls is the dotted identifier of the backend implementation.
	Cls string `yaml:"cls"`

	// Root is the storage location. It may embed RootToken.
	Root string `yaml:"root"`

	// Records configures persistence-record storage.
	Records RecordsConfig `yaml:"records"`

	// Constraints decide which datasets this datastore accepts.
	Constraints Constraints `yaml:"constraints"`

	// Templates compute file paths from dataset identity.
	Templates *template.Dictionary `yaml:"templates"`

	// Formatters map storage classes (or dataset types) to serializer
	// implementations.
	Formatters *FormatterMap `yaml:"formatters"`

	// Datastores are the ordered children of a chained datastore. A
	// chained descriptor has no root or templates of its own; each child
	// carries its own constraints.
	Datastores []*Config `yaml:"datastores"`
}

// document is the on-disk shape: the descriptor under a datastore key.
type document struct {
	Datastore *Config `yaml:"datastore"`
}

// ParseDocument parses a datastore document. The descriptor is not
// validated; call Validate.
func ParseDocument(data []byte) (*Config, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse datastore document: %w", err)
	}
	if doc.Datastore == nil {
		return nil, fmt.Errorf("datastore document has no datastore mapping")
	}
	return doc.Datastore, nil
}

// LoadFromFile reads and parses a datastore document.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read datastore document: %w", err)
	}
	cfg, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// IsChained reports whether the descriptor delegates to child datastores.
func (c *Config) IsChained() bool { return len(c.Datastores) > 0 }

// BindRoot resolves the RootToken placeholder against the repository
// root, recursing into chain children.
func (c *Config) BindRoot(repoRoot string) {
	c.Root = strings.ReplaceAll(c.Root, RootToken, repoRoot)
	for _, child := range c.Datastores {
		child.BindRoot(repoRoot)
	}
}

// Validate checks the descriptor's structural properties. known reports
// whether a plain dictionary-key name is a storage class or dataset type
// the wider configuration declares; nil skips name checks, since this
// artifact cannot always see the external type registry.
func (c *Config) Validate(known func(string) bool) error {
	var errs []error

	if c.Cls == "" {
		errs = append(errs, errors.New("datastore has no cls"))
	} else if !validDottedIdentifier(c.Cls) {
		errs = append(errs, fmt.Errorf("datastore cls %q is not a dotted identifier", c.Cls))
	}

	if c.IsChained() {
		if c.Root != "" {
			errs = append(errs, fmt.Errorf("chained datastore %s declares a root", c.describe()))
		}
		for i, child := range c.Datastores {
			if err := child.Validate(known); err != nil {
				errs = append(errs, fmt.Errorf("chain member %d: %w", i, err))
			}
		}
	} else if c.Root == "" {
		errs = append(errs, fmt.Errorf("datastore %s has no root", c.describe()))
	}

	if err := c.Constraints.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Templates != nil {
		if err := c.Templates.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Formatters != nil {
		if err := c.Formatters.Validate(known); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (c *Config) describe() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Cls
}

// validDottedIdentifier accepts strings like
// depot.formatters.fits.FitsExposureFormatter.
func validDottedIdentifier(s string) bool {
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			case r >= '0' && r <= '9':
				if i == 0 {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}
