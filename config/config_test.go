package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyarchive/depot/dataset"
	"github.com/skyarchive/depot/qualifier"
)

func defaults(t *testing.T) *Config {
	t.Helper()
	cfg, err := NewLoader(nil).Defaults()
	require.NoError(t, err)
	return cfg
}

func calexpRef(instrument string) dataset.Ref {
	typ := dataset.NewType("calexp", []string{"instrument", "visit", "detector", "physical_filter", "pointing"}, "ExposureF")
	return dataset.NewRef(typ, dataset.DataID{
		"instrument":      instrument,
		"visit":           903334,
		"detector":        42,
		"physical_filter": "HSC-I",
		"pointing":        671,
	}, "run/20260826")
}

func TestDefaultsValidate(t *testing.T) {
	cfg := defaults(t)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Registry.Has("ExposureF"))
	assert.NotZero(t, cfg.Templates.Len())
	require.Len(t, cfg.Datastores, 1)
	assert.Equal(t, "depot.datastores.posix.PosixDatastore", cfg.Datastores[0].Cls)
}

func TestIdentity(t *testing.T) {
	cfg := defaults(t)

	id, err := cfg.Identity(calexpRef("HSC"))
	require.NoError(t, err)
	assert.Equal(t, []string{"calexp", "ExposureF", "Exposure"}, id.Names)
	assert.Equal(t, "HSC", id.Instrument)
	assert.Contains(t, id.Fields, "physical_filter")

	t.Run("component type walks to the parent", func(t *testing.T) {
		typ := dataset.NewType("calexp.wcs", []string{"instrument", "visit"}, "Wcs")
		ref := dataset.NewRef(typ, dataset.DataID{"instrument": "HSC", "visit": 1}, "r")
		id, err := cfg.Identity(ref)
		require.NoError(t, err)
		assert.Equal(t, []string{"calexp.wcs", "calexp", "Wcs"}, id.Names)
	})

	t.Run("unknown storage class", func(t *testing.T) {
		typ := dataset.NewType("thing", nil, "NoSuchClass")
		_, err := cfg.Identity(dataset.NewRef(typ, dataset.DataID{}, ""))
		assert.Error(t, err)
	})
}

func TestPathFor(t *testing.T) {
	cfg := defaults(t)
	ref := calexpRef("LSSTCam")

	ds, err := cfg.SelectDatastore(ref)
	require.NoError(t, err)

	path, err := cfg.PathFor(ds, ref)
	require.NoError(t, err)
	assert.Equal(t, "run/20260826/calexp/00903334/calexp_LSSTCam_HSC-I_00903334_042", path)
}

func TestFormatterFor(t *testing.T) {
	cfg := defaults(t)

	ds, err := cfg.SelectDatastore(calexpRef("LSSTCam"))
	require.NoError(t, err)

	f, err := cfg.FormatterFor(ds, calexpRef("LSSTCam"))
	require.NoError(t, err)
	assert.Equal(t, "depot.formatters.fits.FitsExposureFormatter", f)

	f, err = cfg.FormatterFor(ds, calexpRef("HSC"))
	require.NoError(t, err)
	assert.Equal(t, "depot.formatters.fits.HscExposureFormatter", f)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, StorageClassesFile), `
storageClasses:
  Wcs:
    pytype: custom.SkyWcs
  Spectrum:
    pytype: custom.Spectrum
`)
	writeFile(t, filepath.Join(dir, TemplatesFile), `
templates:
  calexp: "{run}/override/{visit:08d}"
`)

	cfg, err := NewLoader(nil).Load(dir)
	require.NoError(t, err)

	// Overlay entries replace and extend the defaults.
	sc, err := cfg.Registry.Resolve("Wcs")
	require.NoError(t, err)
	assert.Equal(t, "custom.SkyWcs", sc.PyType)
	assert.True(t, cfg.Registry.Has("Spectrum"))
	assert.True(t, cfg.Registry.Has("ExposureF"))

	tmpl, ok := cfg.Templates.Get(qualifier.Key{Name: "calexp"})
	require.True(t, ok)
	assert.Contains(t, tmpl.String(), "override")
	_, ok = cfg.Templates.Get(qualifier.Key{Name: "default"})
	assert.True(t, ok)
}

func TestLoadDatastoreReplacement(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, DatastoresDir, "chain.yaml"), `
datastore:
  cls: depot.datastores.chained.ChainedDatastore
  datastores:
    - name: raws
      cls: depot.datastores.posix.PosixDatastore
      root: <repoRoot>/raws
      constraints:
        accept:
          - raw
      templates:
        default: "{run}/raw/{detector:03d}"
      formatters:
        Exposure: depot.formatters.fits.FitsRawFormatter
    - name: products
      cls: depot.datastores.posix.PosixDatastore
      root: <repoRoot>/datastore
      constraints:
        reject:
          - raw
      formatters:
        Exposure: depot.formatters.fits.FitsExposureFormatter
`)
	writeFile(t, filepath.Join(dir, TemplatesFile), `
templates:
  raw: "{run}/raw/{detector:03d}"
`)

	cfg, err := NewLoader(nil).Load(dir)
	require.NoError(t, err)
	require.Len(t, cfg.Datastores, 1)
	assert.True(t, cfg.Datastores[0].IsChained())

	cfg.BindRoot("/repo")
	assert.Equal(t, "/repo/raws", cfg.Datastores[0].Datastores[0].Root)

	rawType := dataset.NewType("raw", []string{"instrument", "detector"}, "Exposure")
	rawRef := dataset.NewRef(rawType, dataset.DataID{"instrument": "HSC", "detector": 3}, "r")

	ds, err := cfg.SelectDatastore(rawRef)
	require.NoError(t, err)
	assert.Equal(t, "raws", ds.Name)

	ds, err = cfg.SelectDatastore(calexpRef("HSC"))
	require.NoError(t, err)
	assert.Equal(t, "products", ds.Name)

	// The products member has no dictionary of its own, so the shared
	// dictionary answers.
	path, err := cfg.PathFor(ds, calexpRef("HSC"))
	require.NoError(t, err)
	assert.Contains(t, path, "calexp")
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Run("inheritance cycle", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, StorageClassesFile), `
storageClasses:
  A:
    pytype: t.A
    inheritsFrom: B
  B:
    pytype: t.B
    inheritsFrom: A
`)
		_, err := NewLoader(nil).Load(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cycle")
	})

	t.Run("unknown formatter key", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, DatastoresDir, "posix.yaml"), `
datastore:
  cls: depot.datastores.posix.PosixDatastore
  root: <repoRoot>/datastore
  formatters:
    NoSuchClass: depot.formatters.json.JsonFormatter
`)
		_, err := NewLoader(nil).Load(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "NoSuchClass")
	})

	t.Run("bad template grammar", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, TemplatesFile), `
templates:
  calexp: "{visit:8q}"
`)
		_, err := NewLoader(nil).Load(dir)
		assert.Error(t, err)
	})
}

func TestSelectDatastoreNoMatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, DatastoresDir, "posix.yaml"), `
datastore:
  cls: depot.datastores.posix.PosixDatastore
  root: <repoRoot>/datastore
  constraints:
    accept:
      - raw
`)
	cfg, err := NewLoader(nil).Load(dir)
	require.NoError(t, err)

	_, err = cfg.SelectDatastore(calexpRef("HSC"))
	assert.ErrorIs(t, err, ErrNoDatastore)
}
