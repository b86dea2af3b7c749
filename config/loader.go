package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/skyarchive/depot/configs"
	"github.com/skyarchive/depot/datastore"
	"github.com/skyarchive/depot/storageclass"
	"github.com/skyarchive/depot/template"
)

const (
	// StorageClassesFile is the storage-class document name in a config
	// directory.
	StorageClassesFile = "storageClasses.yaml"
	// TemplatesFile is the template document name.
	TemplatesFile = "templates.yaml"
	// DatastoresDir holds one document per datastore descriptor.
	DatastoresDir = "datastores"
)

// Loader reads a configuration snapshot with layered precedence:
// embedded defaults first, then the documents of a repository config
// directory over them.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Defaults loads the embedded default documents only.
func (l *Loader) Defaults() (*Config, error) {
	registry, err := parseEmbedded(configs.StorageClassesPath, storageclass.ParseDocument)
	if err != nil {
		return nil, err
	}
	templates, err := parseEmbedded(configs.TemplatesPath, template.ParseDocument)
	if err != nil {
		return nil, err
	}
	posix, err := parseEmbedded(configs.PosixDatastorePath, datastore.ParseDocument)
	if err != nil {
		return nil, err
	}
	return &Config{
		Registry:   registry,
		Templates:  templates,
		Datastores: []*datastore.Config{posix},
	}, nil
}

func parseEmbedded[T any](path string, parse func([]byte) (T, error)) (T, error) {
	var zero T
	data, err := fs.ReadFile(configs.FS, path)
	if err != nil {
		return zero, fmt.Errorf("embedded document %s: %w", path, err)
	}
	v, err := parse(data)
	if err != nil {
		return zero, fmt.Errorf("embedded document %s: %w", path, err)
	}
	return v, nil
}

// Load reads the configuration for a repository config directory layered
// over the embedded defaults:
//
//   - storageClasses.yaml merges per class name over the default registry
//   - templates.yaml merges per key over the default dictionary
//   - datastores/*.yaml, when present, replace the default descriptors
//     wholesale, in file-name order
//
// The loaded snapshot is validated before it is returned.
func (l *Loader) Load(dir string) (*Config, error) {
	cfg, err := l.Defaults()
	if err != nil {
		return nil, err
	}

	if dir != "" {
		if err := l.overlay(cfg, dir); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (l *Loader) overlay(cfg *Config, dir string) error {
	scPath := filepath.Join(dir, StorageClassesFile)
	if registry, err := storageclass.LoadFromFile(scPath); err == nil {
		l.logger.Debug("Loaded storage class document", slog.String("path", scPath))
		cfg.Registry = cfg.Registry.Merge(registry)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	tmplPath := filepath.Join(dir, TemplatesFile)
	if templates, err := template.LoadFromFile(tmplPath); err == nil {
		l.logger.Debug("Loaded template document", slog.String("path", tmplPath))
		cfg.Templates = cfg.Templates.Merge(templates)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	dsDir := filepath.Join(dir, DatastoresDir)
	entries, err := os.ReadDir(dsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read datastore directory: %w", err)
	}

	var stores []*datastore.Config
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || (filepath.Ext(e.Name()) != ".yaml" && filepath.Ext(e.Name()) != ".yml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dsDir, name)
		ds, err := datastore.LoadFromFile(path)
		if err != nil {
			return err
		}
		l.logger.Debug("Loaded datastore document", slog.String("path", path))
		stores = append(stores, ds)
	}
	if len(stores) > 0 {
		cfg.Datastores = stores
	}
	return nil
}
