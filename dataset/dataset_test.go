package dataset

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameWithComponent(t *testing.T) {
	assert.Equal(t, "calexp.wcs", NameWithComponent("calexp", "wcs"))

	parent, comp := SplitComponent("calexp.wcs")
	assert.Equal(t, "calexp", parent)
	assert.Equal(t, "wcs", comp)

	parent, comp = SplitComponent("calexp")
	assert.Equal(t, "calexp", parent)
	assert.Equal(t, "", comp)
}

func TestType(t *testing.T) {
	plain := NewType("calexp", []string{"visit", "instrument", "detector"}, "ExposureF")
	assert.Equal(t, []string{"detector", "instrument", "visit"}, plain.Dimensions)
	assert.False(t, plain.IsComponent())
	assert.Equal(t, "calexp", plain.ParentName())
	assert.Equal(t, "calexp.psf", plain.ComponentTypeName("psf"))
	assert.Equal(t, []string{"calexp"}, plain.LookupNames())

	comp := NewType("calexp.wcs", []string{"visit"}, "Wcs")
	assert.True(t, comp.IsComponent())
	assert.Equal(t, "wcs", comp.Component())
	assert.Equal(t, "calexp", comp.ParentName())
	assert.Equal(t, []string{"calexp.wcs", "calexp"}, comp.LookupNames())
}

func TestDataID(t *testing.T) {
	id := DataID{"instrument": "HSC", "visit": 903334, "skipped": nil}

	assert.Equal(t, "HSC", id.Instrument())
	assert.Equal(t, "", DataID{}.Instrument())
	assert.Equal(t, "", DataID{"instrument": 42}.Instrument())

	fields := id.FieldSet()
	assert.Contains(t, fields, "instrument")
	assert.Contains(t, fields, "visit")
	assert.NotContains(t, fields, "skipped")
}

func TestNewRef(t *testing.T) {
	typ := NewType("calexp", []string{"instrument", "visit", "detector"}, "ExposureF")
	ref := NewRef(typ, DataID{"instrument": "HSC", "visit": 1, "detector": 2}, "run/1")

	assert.NotEqual(t, uuid.Nil, ref.ID)
	assert.Equal(t, "run/1", ref.Run)

	other := NewRef(typ, ref.DataID, ref.Run)
	assert.NotEqual(t, ref.ID, other.ID)
}

func TestTemplateValues(t *testing.T) {
	t.Run("plain type", func(t *testing.T) {
		typ := NewType("calexp", []string{"instrument", "visit"}, "ExposureF")
		ref := NewRef(typ, DataID{"instrument": "HSC", "visit": 903334}, "run/1")

		values := ref.TemplateValues()
		assert.Equal(t, "HSC", values["instrument"])
		assert.Equal(t, 903334, values["visit"])
		assert.Equal(t, "calexp", values["datasetType"])
		assert.Equal(t, "run/1", values["run"])
		_, hasComponent := values["component"]
		assert.False(t, hasComponent)
	})

	t.Run("component type", func(t *testing.T) {
		typ := NewType("calexp.wcs", []string{"visit"}, "Wcs")
		ref := NewRef(typ, DataID{"visit": 903334}, "")

		values := ref.TemplateValues()
		require.Equal(t, "calexp", values["datasetType"])
		assert.Equal(t, "wcs", values["component"])
		_, hasRun := values["run"]
		assert.False(t, hasRun)
	})
}
