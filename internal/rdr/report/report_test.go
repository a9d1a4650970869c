package report

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpss-rdr/rdrgen/internal/rdr/accumulator"
	"github.com/jpss-rdr/rdrgen/internal/rdr/collector"
	"github.com/jpss-rdr/rdrgen/internal/rdr/config"
	"github.com/jpss-rdr/rdrgen/internal/rdr/ledger"
)

func openTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.sqlite")
	l, err := ledger.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func testGroup() *collector.Group {
	sat := config.SatSpec{ShortName: "NPP"}
	product := config.ProductSpec{ProductID: "RVIRS", GranLen: 100_000, Apids: []config.ApidSpec{{Num: 826, Name: "SCI"}}}
	primary := accumulator.New(sat, product, 1_698_019_234_000_000)
	_ = primary.AddPacket(1_698_019_234_000_001, accumulator.Packet{Apid: 826, Data: []byte("x")})
	compiled, _ := primary.CompileRdr()
	return &collector.Group{Primary: compiled}
}

func TestRenderIncludesProductAndLatencySummary(t *testing.T) {
	l := openTestLedger(t)
	runID, err := l.StartRun(0, "cfg")
	require.NoError(t, err)

	l.RecordGroup(runID, testGroup(), "out.h5", 0, 3_000_000) // 3ms

	html, err := Render(l, runID)
	require.NoError(t, err)
	assert.Contains(t, html, "RVIRS")
	assert.Contains(t, html, "granules=1")
	assert.Contains(t, html, "mean_latency_ms=3.00")
}

func TestRenderHandlesRunWithNoGranules(t *testing.T) {
	l := openTestLedger(t)
	runID, err := l.StartRun(0, "cfg")
	require.NoError(t, err)

	html, err := Render(l, runID)
	require.NoError(t, err)
	assert.True(t, strings.Contains(html, "granules=0"))
}
