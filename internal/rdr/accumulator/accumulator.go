// Package accumulator implements RdrData, the per-(product, granule)
// accumulator that absorbs packets in arrival order and compiles them into
// a Common RDR byte stream on demand.
package accumulator

import (
	"math"
	"sort"

	"github.com/jpss-rdr/rdrgen/internal/rdr/codec"
	"github.com/jpss-rdr/rdrgen/internal/rdr/config"
	"github.com/jpss-rdr/rdrgen/internal/rdr/rdrerr"
)

// Packet is the external packet value the codec and accumulator consume.
// The decoder that produces these (CCSDS primary-header parsing) is an
// external collaborator; this package only inspects Apid/SequenceID/Data.
type Packet struct {
	Apid       uint16
	SequenceID uint16 // 14 bits significant
	Data       []byte
}

type storedPacket struct {
	obsTimeIET int64
	pkt        Packet
}

// RdrData is the accumulator for a single (product, granule) key.
type RdrData struct {
	Product  config.ProductSpec
	Sat      config.SatSpec
	GranStart uint64 // IET microseconds
	GranEnd   uint64 // IET microseconds

	apidInfo map[uint16]*codec.ApidInfo
	trackers map[uint16][]codec.PacketTracker
	storage  []storedPacket
	runningOffset int64
}

// New creates an empty accumulator with one ApidInfo per configured APID.
func New(sat config.SatSpec, product config.ProductSpec, granStart uint64) *RdrData {
	r := &RdrData{
		Product:   product,
		Sat:       sat,
		GranStart: granStart,
		GranEnd:   granStart + product.GranLen,
		apidInfo:  make(map[uint16]*codec.ApidInfo, len(product.Apids)),
		trackers:  make(map[uint16][]codec.PacketTracker, len(product.Apids)),
	}
	for _, a := range product.Apids {
		r.apidInfo[a.Num] = &codec.ApidInfo{
			Name:  a.Name,
			Value: uint32(a.Num),
		}
	}
	return r
}

// AddPacket absorbs one packet observed at pktTimeIET (IET microseconds).
func (r *RdrData) AddPacket(pktTimeIET int64, pkt Packet) error {
	info, ok := r.apidInfo[pkt.Apid]
	if !ok {
		return &rdrerr.InvalidPacketApidError{Apid: pkt.Apid, ProductID: r.Product.ProductID}
	}
	if len(pkt.Data) > math.MaxInt32 {
		return &rdrerr.InvalidPacketError{Reason: "packet size overflows int32"}
	}

	info.PktsReserved++
	info.PktsReceived++

	r.trackers[pkt.Apid] = append(r.trackers[pkt.Apid], codec.PacketTracker{
		ObsTime:        pktTimeIET,
		SequenceNumber: int32(pkt.SequenceID),
		Size:           int32(len(pkt.Data)),
		Offset:         int32(r.runningOffset),
		FillPercent:    0,
	})
	r.storage = append(r.storage, storedPacket{obsTimeIET: pktTimeIET, pkt: pkt})
	r.runningOffset += int64(len(pkt.Data))
	return nil
}

// TotalPackets returns the number of packets absorbed so far.
func (r *RdrData) TotalPackets() int {
	return len(r.storage)
}

// ReceivedApids returns the set of APIDs that have received at least one
// packet, used by the writer's N_Packet_Type attribute.
func (r *RdrData) ReceivedApids() []codec.ApidInfo {
	out := make([]codec.ApidInfo, 0, len(r.apidInfo))
	nums := make([]uint16, 0, len(r.apidInfo))
	for num := range r.apidInfo {
		nums = append(nums, num)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	for _, num := range nums {
		if r.apidInfo[num].PktsReceived > 0 {
			out = append(out, *r.apidInfo[num])
		}
	}
	return out
}

// Compile produces the Common RDR byte stream in a single pass, per
// spec §4.3:
//  1. order APIDs by ascending numeric value (the committed policy — the
//     source repository also has a first-seen-order variant; this
//     implementation never mixes the two)
//  2. assign pkt_tracker_start_idx as a running sum of preceding APIDs'
//     received counts
//  3. fill the header's computed offsets and next_pkt_position
//  4. emit header, apid list, trackers grouped by apid order, then all
//     packet payloads in arrival order
func (r *RdrData) Compile() ([]byte, error) {
	nums := make([]uint16, 0, len(r.apidInfo))
	for num := range r.apidInfo {
		nums = append(nums, num)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	apidList := make([]codec.ApidInfo, 0, len(nums))
	var totalTrackers uint32
	for _, num := range nums {
		info := *r.apidInfo[num]
		info.PktTrackerStartIdx = totalTrackers
		apidList = append(apidList, info)
		totalTrackers += info.PktsReceived
	}

	apidListOffset := uint32(codec.StaticHeaderLen)
	pktTrackerOffset := apidListOffset + uint32(len(apidList))*codec.ApidInfoLen
	apStorageOffset := pktTrackerOffset + totalTrackers*codec.PacketTrackerLen

	if r.runningOffset > math.MaxInt64 {
		return nil, &rdrerr.InvalidPacketError{Reason: "accumulated packet bytes overflow int64"}
	}

	hdr := codec.StaticHeader{
		Satellite:        r.Sat.ShortName,
		Sensor:           r.Product.Sensor,
		TypeID:           r.Product.TypeID,
		NumApids:         uint32(len(apidList)),
		ApidListOffset:   apidListOffset,
		PktTrackerOffset: pktTrackerOffset,
		ApStorageOffset:  apStorageOffset,
		NextPktPosition:  uint32(r.runningOffset),
		StartBoundary:    r.GranStart,
		EndBoundary:      r.GranEnd,
	}

	buf := make([]byte, 0, apStorageOffset+uint32(r.runningOffset))
	buf = append(buf, hdr.Encode()...)
	for _, a := range apidList {
		buf = append(buf, a.Encode()...)
	}
	for _, num := range nums {
		for _, t := range r.trackers[num] {
			buf = append(buf, t.Encode()...)
		}
	}
	for _, sp := range r.storage {
		buf = append(buf, sp.pkt.Data...)
	}
	return buf, nil
}

// CompiledRdr is the immutable, already-compiled form of an RdrData,
// produced once at gathering time (spec §4.5) and safe to hand to a
// consumer running concurrently with the producer that is still mutating
// other accumulators.
type CompiledRdr struct {
	Product       config.ProductSpec
	Sat           config.SatSpec
	GranStart     uint64 // IET microseconds
	GranEnd       uint64 // IET microseconds
	Blob          []byte
	ReceivedApids []codec.ApidInfo
	PacketCount   int
}

// CompileRdr snapshots r into a CompiledRdr: the Common RDR byte stream
// plus the handful of fields the writer needs, none of which alias r's
// internal mutable state.
func (r *RdrData) CompileRdr() (*CompiledRdr, error) {
	blob, err := r.Compile()
	if err != nil {
		return nil, err
	}
	return &CompiledRdr{
		Product:       r.Product,
		Sat:           r.Sat,
		GranStart:     r.GranStart,
		GranEnd:       r.GranEnd,
		Blob:          blob,
		ReceivedApids: r.ReceivedApids(),
		PacketCount:   r.TotalPackets(),
	}, nil
}
