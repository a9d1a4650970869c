package filename

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpss-rdr/rdrgen/internal/rdr/accumulator"
	"github.com/jpss-rdr/rdrgen/internal/rdr/config"
	"github.com/jpss-rdr/rdrgen/internal/rdr/rdrtime"
)

// filenameRegex is spec.md §6's anchored filename grammar.
var filenameRegex = regexp.MustCompile(
	`^(?P<products>[A-Z]{4,5}(?:-[A-Z]{4,5})*)_(?P<sat>npp|j0[1-4])_d\d{8}_t\d{7}_e\d{7}_b\d{5}_c\d{20}_\w{3}u_\w{3}\.h5$`,
)

func mustCompile(t *testing.T, r *accumulator.RdrData) *accumulator.CompiledRdr {
	t.Helper()
	c, err := r.CompileRdr()
	require.NoError(t, err)
	return c
}

func TestBuildMatchesFilenameGrammar(t *testing.T) {
	cfg := config.Config{
		Origin: "ABCD",
		Mode:   "ops",
		Satellite: config.SatSpec{
			ID: "npp",
		},
	}
	product := config.ProductSpec{ProductID: "RVIRS", ShortName: "VIIRS-SCIENCE-RDR", TypeID: "SCIENCE", GranLen: 85_400_000}
	rdr := accumulator.New(cfg.Satellite, product, 1_698_019_234_000_000)

	created := rdrtime.FromUTCMicros(1_700_000_000_000_000)
	name, err := Build(cfg, []*accumulator.CompiledRdr{mustCompile(t, rdr)}, created)
	require.NoError(t, err)
	assert.Regexp(t, filenameRegex, name)
}

func TestBuildJoinsSortedProductIDs(t *testing.T) {
	cfg := config.Config{Origin: "ABCD", Mode: "ops", Satellite: config.SatSpec{ID: "npp"}}
	science := config.ProductSpec{ProductID: "RVIRS", ShortName: "VIIRS-SCIENCE-RDR", TypeID: "SCIENCE", GranLen: 100_000}
	diary := config.ProductSpec{ProductID: "RNSCA", ShortName: "SPACECRAFT-DIARY-RDR", TypeID: "DIARY", GranLen: 100_000}

	rdrs := []*accumulator.CompiledRdr{
		mustCompile(t, accumulator.New(cfg.Satellite, diary, 1_698_019_234_000_000)),
		mustCompile(t, accumulator.New(cfg.Satellite, science, 1_698_019_234_000_000)),
	}
	name, err := Build(cfg, rdrs, rdrtime.FromUTCMicros(0))
	require.NoError(t, err)
	assert.Regexp(t, `^RNSCA-RVIRS_`, name)
}

func TestBuildIgnoresDiaryGranulesForStartEnd(t *testing.T) {
	cfg := config.Config{Origin: "ABCD", Mode: "ops", Satellite: config.SatSpec{ID: "npp"}}
	science := config.ProductSpec{ProductID: "RVIRS", ShortName: "VIIRS-SCIENCE-RDR", TypeID: "SCIENCE", GranLen: 100_000}
	diary := config.ProductSpec{ProductID: "RNSCA", ShortName: "SPACECRAFT-DIARY-RDR", TypeID: "DIARY", GranLen: 900_000_000}

	scienceRdr := mustCompile(t, accumulator.New(cfg.Satellite, science, 1_698_019_234_000_000))
	diaryRdr := mustCompile(t, accumulator.New(cfg.Satellite, diary, 0)) // wildly different window; must not affect start/end

	name, err := Build(cfg, []*accumulator.CompiledRdr{diaryRdr, scienceRdr}, rdrtime.FromUTCMicros(0))
	require.NoError(t, err)
	// d-stamp should reflect the science granule's start (1698019234s IET
	// window), not the diary granule's start at IET 0, which renders as
	// 1957-12-31 UTC once the leap-second offset is subtracted.
	assert.NotContains(t, name, "_d19571231_")
}

func TestTruncOrigin(t *testing.T) {
	assert.Equal(t, "ABC", truncOrigin("ABCDEF"))
	assert.Equal(t, "AB", truncOrigin("AB"))
}

func TestPDSScienceOMPSUsesWildcardApid(t *testing.T) {
	name := PDSScience(157, 560, "OMPS", rdrtime.FromUTCMicros(0))
	assert.Equal(t, "P157????OMPSSCIENCEAS"+rdrtime.FromUTCMicros(0).Format("%y%j%H%M%S")+"001.PDS", name)
}

func TestPDSScienceVIIRS(t *testing.T) {
	ts := rdrtime.FromUTCMicros(0)
	name := PDSScience(157, 826, "VIIRS", ts)
	assert.Equal(t, "P1570826VIIRSSCIENCEAS"+ts.Format("%y%j%H%M%S")+"001.PDS", name)
}

func TestPDSSpacecraft(t *testing.T) {
	ts := rdrtime.FromUTCMicros(0)
	name := PDSSpacecraft(157, 11, ts)
	assert.Equal(t, "P1570011AAAAAAAAAAAAAS"+ts.Format("%y%j%H%M%S")+"001.PDS", name)
}
