package accumulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpss-rdr/rdrgen/internal/rdr/codec"
	"github.com/jpss-rdr/rdrgen/internal/rdr/config"
)

func testProduct() config.ProductSpec {
	return config.ProductSpec{
		ProductID: "RVIRS",
		Sensor:    "VIIRS",
		ShortName: "VIIRS-SCIENCE-RDR",
		TypeID:    "SCIENCE",
		GranLen:   85_400_000,
		Apids: []config.ApidSpec{
			{Num: 826, Name: "VIIRS-SCIENCE", MaxExpected: 100},
			{Num: 821, Name: "VIIRS-ENG", MaxExpected: 10},
		},
	}
}

func TestAddPacketRejectsUnconfiguredApid(t *testing.T) {
	sat := config.SatSpec{ShortName: "NPP"}
	r := New(sat, testProduct(), 1_698_019_234_000_000)

	err := r.AddPacket(1_698_019_234_000_000, Packet{Apid: 999, Data: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "999")
}

func TestAddPacketAdvancesOffsetsInArrivalOrder(t *testing.T) {
	sat := config.SatSpec{ShortName: "NPP"}
	r := New(sat, testProduct(), 1_698_019_234_000_000)

	require.NoError(t, r.AddPacket(1_698_019_234_000_001, Packet{Apid: 826, SequenceID: 1, Data: make([]byte, 10)}))
	require.NoError(t, r.AddPacket(1_698_019_234_000_002, Packet{Apid: 821, SequenceID: 2, Data: make([]byte, 5)}))
	require.NoError(t, r.AddPacket(1_698_019_234_000_003, Packet{Apid: 826, SequenceID: 3, Data: make([]byte, 7)}))

	assert.Equal(t, 3, r.TotalPackets())
	assert.Equal(t, int64(22), r.runningOffset)

	// arrival order within an APID is preserved
	trackers := r.trackers[826]
	require.Len(t, trackers, 2)
	assert.Equal(t, int32(0), trackers[0].Offset)
	assert.Equal(t, int32(10+5), trackers[1].Offset)
}

func TestCompileOffsetInvariants(t *testing.T) {
	sat := config.SatSpec{ShortName: "NPP"}
	r := New(sat, testProduct(), 1_698_019_234_000_000)

	require.NoError(t, r.AddPacket(1_698_019_234_000_001, Packet{Apid: 826, SequenceID: 1, Data: []byte("hello")}))
	require.NoError(t, r.AddPacket(1_698_019_234_000_002, Packet{Apid: 821, SequenceID: 2, Data: []byte("hi")}))

	blob, err := r.Compile()
	require.NoError(t, err)

	rdr, err := codec.Decode(blob)
	require.NoError(t, err)

	assert.Equal(t, uint32(codec.StaticHeaderLen), rdr.Header.ApidListOffset)
	assert.Equal(t, uint32(codec.StaticHeaderLen)+uint32(len(rdr.Apids))*codec.ApidInfoLen, rdr.Header.PktTrackerOffset)

	var totalTrackers uint32
	for _, a := range rdr.Apids {
		totalTrackers += a.PktsReceived
	}
	assert.Equal(t, rdr.Header.PktTrackerOffset+totalTrackers*codec.PacketTrackerLen, rdr.Header.ApStorageOffset)
	assert.Equal(t, uint32(len("hello")+len("hi")), rdr.Header.NextPktPosition)

	// APIDs are ordered ascending numerically (821 before 826), regardless
	// of arrival order.
	require.Len(t, rdr.Apids, 2)
	assert.Equal(t, uint32(821), rdr.Apids[0].Value)
	assert.Equal(t, uint32(826), rdr.Apids[1].Value)

	assert.Equal(t, []byte("hellohi"), rdr.ApStorage)
}

func TestReceivedApidsExcludesZeroCount(t *testing.T) {
	sat := config.SatSpec{ShortName: "NPP"}
	r := New(sat, testProduct(), 1_698_019_234_000_000)
	require.NoError(t, r.AddPacket(1_698_019_234_000_001, Packet{Apid: 826, Data: []byte("x")}))

	received := r.ReceivedApids()
	require.Len(t, received, 1)
	assert.Equal(t, uint32(826), received[0].Value)
}

func TestCompileRdrSnapshotsIndependentOfLaterMutation(t *testing.T) {
	sat := config.SatSpec{ShortName: "NPP"}
	r := New(sat, testProduct(), 1_698_019_234_000_000)
	require.NoError(t, r.AddPacket(1_698_019_234_000_001, Packet{Apid: 826, Data: []byte("hello")}))

	compiled, err := r.CompileRdr()
	require.NoError(t, err)
	assert.Equal(t, 1, compiled.PacketCount)
	assert.Equal(t, r.GranStart, compiled.GranStart)
	require.Len(t, compiled.ReceivedApids, 1)

	// A packet absorbed after compiling must not retroactively change the
	// already-compiled snapshot.
	require.NoError(t, r.AddPacket(1_698_019_234_000_002, Packet{Apid: 821, Data: []byte("more")}))
	assert.Equal(t, 1, compiled.PacketCount)
	require.Len(t, compiled.ReceivedApids, 1)
	assert.NotContains(t, string(compiled.Blob), "more")
}
