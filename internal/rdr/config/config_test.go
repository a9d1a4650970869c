package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
origin: ABCD
mode: ops
satellite:
  id: npp
  short_name: NPP
  base_time: 1698019234000000
products:
  - product_id: RVIRS
    sensor: VIIRS
    short_name: VIIRS-SCIENCE-RDR
    type_id: SCIENCE
    gran_len: 85400000
    apids:
      - num: 826
        name: VIIRS-SCIENCE
  - product_id: RNSCA
    sensor: SPACECRAFT
    short_name: SPACECRAFT-DIARY-RDR
    type_id: DIARY
    gran_len: 900000000
    apids:
      - num: 0
        name: DIARY
rdrs:
  - product: RVIRS
    packed_with: [RNSCA]
`

func TestLoadReaderParsesValidConfig(t *testing.T) {
	cfg, err := LoadReader(strings.NewReader(validYAML))
	require.NoError(t, err)
	assert.Equal(t, "npp", cfg.Satellite.ID)
	require.Len(t, cfg.Products, 2)
	assert.Equal(t, "RVIRS", cfg.Products[0].ProductID)

	p, ok := cfg.GetProduct("RNSCA")
	require.True(t, ok)
	assert.Equal(t, "DIARY", p.TypeID)

	a, ok := p.GetApid(0)
	require.True(t, ok)
	assert.Equal(t, "DIARY", a.Name)
}

func TestLoadReaderRejectsUnknownPackedProduct(t *testing.T) {
	bad := strings.Replace(validYAML, "packed_with: [RNSCA]", "packed_with: [BOGUS]", 1)
	_, err := LoadReader(strings.NewReader(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOGUS")
}

func TestLoadReaderRejectsMalformedYAML(t *testing.T) {
	_, err := LoadReader(strings.NewReader("satellite: [this is not a mapping"))
	require.Error(t, err)
}

func TestDefaultCoversAllFiveSpacecraft(t *testing.T) {
	for _, id := range []string{"npp", "j01", "j02", "j03", "j04"} {
		cfg, ok := Default(id)
		require.True(t, ok, "missing default config for %s", id)
		assert.Equal(t, id, cfg.Satellite.ID)
		assert.NotEmpty(t, cfg.Products)
	}

	_, ok := Default("bogus")
	assert.False(t, ok)
}

func TestSpacecraftCode(t *testing.T) {
	assert.Equal(t, 157, SpacecraftCode("npp"))
	assert.Equal(t, 0, SpacecraftCode("bogus"))
}
