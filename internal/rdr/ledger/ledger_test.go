package ledger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpss-rdr/rdrgen/internal/rdr/accumulator"
	"github.com/jpss-rdr/rdrgen/internal/rdr/collector"
	"github.com/jpss-rdr/rdrgen/internal/rdr/config"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.sqlite")
	l, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestStartRunReturnsUniqueIDs(t *testing.T) {
	l := openTestLedger(t)

	id1, err := l.StartRun(1_700_000_000_000_000, "cfg-a")
	require.NoError(t, err)
	assert.NotEmpty(t, id1)

	id2, err := l.StartRun(1_700_000_001_000_000, "cfg-a")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func testGroup() *collector.Group {
	sat := config.SatSpec{ShortName: "NPP"}
	primaryProduct := config.ProductSpec{ProductID: "RVIRS", GranLen: 100_000, Apids: []config.ApidSpec{{Num: 826, Name: "SCI"}}}
	packedProduct := config.ProductSpec{ProductID: "RNSCA", GranLen: 100_000, Apids: []config.ApidSpec{{Num: 0, Name: "DIARY"}}}

	primary := accumulator.New(sat, primaryProduct, 1_698_019_234_000_000)
	_ = primary.AddPacket(1_698_019_234_000_001, accumulator.Packet{Apid: 826, Data: []byte("x")})
	compiledPrimary, _ := primary.CompileRdr()

	packed := accumulator.New(sat, packedProduct, 1_698_019_234_000_000)
	_ = packed.AddPacket(1_698_019_234_000_002, accumulator.Packet{Apid: 0, Data: []byte("yy")})
	compiledPacked, _ := packed.CompileRdr()

	return &collector.Group{Primary: compiledPrimary, Packed: []*accumulator.CompiledRdr{compiledPacked}}
}

func TestRecordGroupRecordsPrimaryAndPacked(t *testing.T) {
	l := openTestLedger(t)
	runID, err := l.StartRun(0, "cfg")
	require.NoError(t, err)

	l.RecordGroup(runID, testGroup(), "out.h5", 1_700_000_000_000_000, 5_000)

	counts, err := l.PacketCountsByProduct(runID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["RVIRS"])
	assert.Equal(t, 1, counts["RNSCA"])

	latencies, err := l.Latencies(runID)
	require.NoError(t, err)
	require.Len(t, latencies, 2)
	assert.Equal(t, float64(5_000), latencies[0])
}

func TestLatenciesScopedToRun(t *testing.T) {
	l := openTestLedger(t)
	runA, err := l.StartRun(0, "cfg")
	require.NoError(t, err)
	runB, err := l.StartRun(0, "cfg")
	require.NoError(t, err)

	l.RecordGroup(runA, testGroup(), "a.h5", 0, 1_000)
	l.RecordGroup(runB, testGroup(), "b.h5", 0, 2_000)

	latA, err := l.Latencies(runA)
	require.NoError(t, err)
	for _, v := range latA {
		assert.Equal(t, float64(1_000), v)
	}

	latB, err := l.Latencies(runB)
	require.NoError(t, err)
	for _, v := range latB {
		assert.Equal(t, float64(2_000), v)
	}
}
