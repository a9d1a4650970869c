package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpss-rdr/rdrgen/internal/rdr/accumulator"
	"github.com/jpss-rdr/rdrgen/internal/rdr/config"
)

const baseTime = 1_698_019_234_000_000

func TestGranuleStartTruncatesToBoundary(t *testing.T) {
	gran, err := GranuleStart(baseTime+150_000, 100_000, baseTime)
	require.NoError(t, err)
	assert.Equal(t, uint64(baseTime+100_000), gran)
}

func TestGranuleStartRejectsTimeBeforeBase(t *testing.T) {
	_, err := GranuleStart(baseTime-1, 100_000, baseTime)
	require.Error(t, err)
}

func TestGranuleIDWorkedExample(t *testing.T) {
	// From spec.md §8's worked example.
	id := GranuleID("NPP", baseTime, 2_112_504_394_000_000)
	assert.Equal(t, "NPP004144851600", id)
}

func testConfig() config.Config {
	primary := config.ProductSpec{
		ProductID: "RVIRS", Sensor: "VIIRS", ShortName: "VIIRS-SCIENCE-RDR", TypeID: "SCIENCE",
		GranLen: 100_000,
		Apids:   []config.ApidSpec{{Num: 826, Name: "VIIRS-SCIENCE"}},
	}
	packed := config.ProductSpec{
		ProductID: "RNSCA", Sensor: "SPACECRAFT", ShortName: "SPACECRAFT-DIARY-RDR", TypeID: "DIARY",
		GranLen: 100_000,
		Apids:   []config.ApidSpec{{Num: 0, Name: "DIARY"}},
	}
	return config.Config{
		Satellite: config.SatSpec{ID: "npp", ShortName: "NPP", BaseTime: baseTime},
		Products:  []config.ProductSpec{primary, packed},
		Rdrs:      []config.RdrSpec{{Product: "RVIRS", PackedWith: []string{"RNSCA"}}},
	}
}

func TestAddDropsUnconfiguredApidSilently(t *testing.T) {
	c := New(testConfig())
	g, err := c.Add(baseTime, accumulator.Packet{Apid: 42})
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestAddEmitsPrimaryOnlyAfterSecondToLastGranuleOpens(t *testing.T) {
	c := New(testConfig())

	// granule 0: N packets
	for i := 0; i < 5; i++ {
		g, err := c.Add(baseTime+int64(i), accumulator.Packet{Apid: 826, Data: []byte("x")})
		require.NoError(t, err)
		assert.Nil(t, g)
	}
	// granule 1 opens: still no emission (only second-to-last rule fires)
	g, err := c.Add(baseTime+100_000, accumulator.Packet{Apid: 826, Data: []byte("x")})
	require.NoError(t, err)
	assert.Nil(t, g)

	// granule 2 opens: granule 0 is now 2 windows behind and is emitted
	g, err = c.Add(baseTime+200_000, accumulator.Packet{Apid: 826, Data: []byte("x")})
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, 5, g.Primary.PacketCount)
	assert.Equal(t, uint64(baseTime), g.Primary.GranStart)
}

func TestAddGathersOverlappingPackedGranule(t *testing.T) {
	c := New(testConfig())

	require.NoError(t, addN(c, 826, baseTime, 3))
	require.NoError(t, addN(c, 0, baseTime, 2)) // packed, same granule window

	_, err := c.Add(baseTime+100_000, accumulator.Packet{Apid: 826, Data: []byte("x")})
	require.NoError(t, err)
	g, err := c.Add(baseTime+200_000, accumulator.Packet{Apid: 826, Data: []byte("x")})
	require.NoError(t, err)
	require.NotNil(t, g)

	require.Len(t, g.Packed, 1)
	assert.Equal(t, "RNSCA", g.Packed[0].Product.ProductID)
	assert.Equal(t, 2, g.Packed[0].PacketCount)
}

func TestFinishFlushesResidualsInAscendingGranuleOrder(t *testing.T) {
	c := New(testConfig())
	// Two granules open, neither yet two windows behind the other, so
	// nothing emits inline; Finish must flush both in ascending order.
	require.NoError(t, addN(c, 826, baseTime+100_000, 1))
	require.NoError(t, addN(c, 826, baseTime+200_000, 1))

	groups, err := c.Finish()
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.True(t, groups[0].Primary.GranStart < groups[1].Primary.GranStart)
}

func addN(c *Collector, apid uint16, t int64, n int) error {
	for i := 0; i < n; i++ {
		if _, err := c.Add(t, accumulator.Packet{Apid: apid, Data: []byte("x")}); err != nil {
			return err
		}
	}
	return nil
}
