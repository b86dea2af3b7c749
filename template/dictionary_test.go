package template

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyarchive/depot/qualifier"
)

const dictDoc = `
templates:
  default: "{run}/{datasetType}/{visit:08d}"
  calexp: "{run}/calexp/{visit:08d}_{detector:03d}"
  physical_filter+: "{run}/{datasetType}/{physical_filter}/{visit:08d}"
  instrument<HSC>:
    calexp: "{run}/calexp/hsc/{visit:08d}_{detector:03d}"
    default: "{run}/hsc/{datasetType}/{visit:08d}"
`

func loadDict(t *testing.T) *Dictionary {
	t.Helper()
	dict, err := ParseDocument([]byte(dictDoc))
	require.NoError(t, err)
	return dict
}

func identity(names []string, instrument string, fields ...string) qualifier.Identity {
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return qualifier.Identity{Names: names, Instrument: instrument, Fields: set}
}

func TestParseDocument(t *testing.T) {
	dict := loadDict(t)
	assert.Equal(t, 5, dict.Len())

	_, ok := dict.Get(qualifier.Key{Name: "calexp"})
	assert.True(t, ok)
	_, ok = dict.Get(qualifier.Key{Name: "calexp", Instrument: "HSC"})
	assert.True(t, ok)
	_, ok = dict.Get(qualifier.Key{Name: "default", Instrument: "HSC"})
	assert.True(t, ok)
}

func TestParseDocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no templates key", "datastore: {}"},
		{"bad placeholder", "templates:\n  calexp: \"{visit:8q}\""},
		{"nested under plain key", "templates:\n  calexp:\n    wcs: \"{visit}\""},
		{"instrument nested twice", "templates:\n  instrument<HSC>:\n    instrument<LSST>: \"{visit}\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDocument([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLookupPrecedence(t *testing.T) {
	dict := loadDict(t)

	t.Run("instrument-scoped name beats plain name", func(t *testing.T) {
		tmpl, key, err := dict.Lookup(identity([]string{"calexp", "ExposureF"}, "HSC"))
		require.NoError(t, err)
		assert.Equal(t, "HSC", key.Instrument)
		assert.Contains(t, tmpl.String(), "hsc")
	})

	t.Run("plain name for other instrument", func(t *testing.T) {
		_, key, err := dict.Lookup(identity([]string{"calexp"}, "LSSTCam"))
		require.NoError(t, err)
		assert.Equal(t, qualifier.Key{Name: "calexp"}, key)
	})

	t.Run("earlier lookup name beats later", func(t *testing.T) {
		// A dataset type with no entry falls through to its storage
		// class, which has none either, then to the field override.
		_, key, err := dict.Lookup(identity([]string{"pvi", "Exposure"}, "", "physical_filter", "visit"))
		require.NoError(t, err)
		assert.Equal(t, []string{"physical_filter"}, key.Fields)
	})

	t.Run("field override beats default", func(t *testing.T) {
		_, key, err := dict.Lookup(identity([]string{"pvi"}, "", "physical_filter"))
		require.NoError(t, err)
		assert.Equal(t, []string{"physical_filter"}, key.Fields)
	})

	t.Run("instrument default before plain default", func(t *testing.T) {
		_, key, err := dict.Lookup(identity([]string{"pvi"}, "HSC"))
		require.NoError(t, err)
		assert.Equal(t, qualifier.Key{Name: "default", Instrument: "HSC"}, key)
	})

	t.Run("plain default as last resort", func(t *testing.T) {
		_, key, err := dict.Lookup(identity([]string{"pvi"}, ""))
		require.NoError(t, err)
		assert.Equal(t, qualifier.Key{Name: "default"}, key)
	})
}

func TestLookupNoTemplate(t *testing.T) {
	dict := &Dictionary{}
	_, _, err := dict.Lookup(identity([]string{"pvi"}, ""))
	assert.True(t, errors.Is(err, ErrNoTemplate))
}

func TestDictionaryMerge(t *testing.T) {
	base := loadDict(t)
	over, err := ParseDocument([]byte(`
templates:
  calexp: "{run}/override/{visit:08d}"
  metric: "{run}/metric/{visit:08d}"
`))
	require.NoError(t, err)

	merged := base.Merge(over)
	assert.Equal(t, base.Len()+1, merged.Len())

	tmpl, ok := merged.Get(qualifier.Key{Name: "calexp"})
	require.True(t, ok)
	assert.Contains(t, tmpl.String(), "override")

	// Base entries survive.
	_, ok = merged.Get(qualifier.Key{Name: "default", Instrument: "HSC"})
	assert.True(t, ok)
}

func TestDictionaryValidate(t *testing.T) {
	assert.NoError(t, loadDict(t).Validate())
}
