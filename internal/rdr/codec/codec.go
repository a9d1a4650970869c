// Package codec implements the byte-exact Common RDR layout: StaticHeader,
// ApidInfo, PacketTracker, and the composite decode/encode of the full
// blob. All integers are big-endian; all strings are fixed-width ASCII,
// NUL-padded on encode and NUL-truncated on decode.
package codec

import (
	"bytes"
	"encoding/binary"

	"github.com/jpss-rdr/rdrgen/internal/rdr/rdrerr"
)

// StaticHeaderLen is the fixed, on-wire size of a StaticHeader.
const StaticHeaderLen = 72

// ApidInfoLen is the fixed, on-wire size of an ApidInfo record.
const ApidInfoLen = 32

// PacketTrackerLen is the fixed, on-wire size of a PacketTracker record.
const PacketTrackerLen = 24

// StaticHeader is the 72-byte Common RDR static header.
type StaticHeader struct {
	Satellite        string // 4 ASCII, NUL-padded
	Sensor           string // 16 ASCII, NUL-padded
	TypeID           string // 16 ASCII, NUL-padded
	NumApids         uint32
	ApidListOffset   uint32
	PktTrackerOffset uint32
	ApStorageOffset  uint32
	NextPktPosition  uint32
	StartBoundary    uint64 // granule start, IET microseconds
	EndBoundary      uint64 // granule end, IET microseconds
}

func putFixedASCII(buf []byte, s string) {
	n := copy(buf, s)
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
}

func getFixedASCII(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		return string(buf[:i])
	}
	return string(buf)
}

// Encode writes the header to a fresh StaticHeaderLen-byte buffer.
func (h StaticHeader) Encode() []byte {
	buf := make([]byte, StaticHeaderLen)
	putFixedASCII(buf[0:4], h.Satellite)
	putFixedASCII(buf[4:20], h.Sensor)
	putFixedASCII(buf[20:36], h.TypeID)
	binary.BigEndian.PutUint32(buf[36:40], h.NumApids)
	binary.BigEndian.PutUint32(buf[40:44], h.ApidListOffset)
	binary.BigEndian.PutUint32(buf[44:48], h.PktTrackerOffset)
	binary.BigEndian.PutUint32(buf[48:52], h.ApStorageOffset)
	binary.BigEndian.PutUint32(buf[52:56], h.NextPktPosition)
	binary.BigEndian.PutUint64(buf[56:64], h.StartBoundary)
	binary.BigEndian.PutUint64(buf[64:72], h.EndBoundary)
	return buf
}

// DecodeStaticHeader decodes a StaticHeader from buf.
func DecodeStaticHeader(buf []byte) (StaticHeader, error) {
	if len(buf) < StaticHeaderLen {
		return StaticHeader{}, &rdrerr.NotEnoughBytesError{Kind: rdrerr.KindStaticHeader, Need: StaticHeaderLen, Got: len(buf)}
	}
	return StaticHeader{
		Satellite:        getFixedASCII(buf[0:4]),
		Sensor:           getFixedASCII(buf[4:20]),
		TypeID:           getFixedASCII(buf[20:36]),
		NumApids:         binary.BigEndian.Uint32(buf[36:40]),
		ApidListOffset:   binary.BigEndian.Uint32(buf[40:44]),
		PktTrackerOffset: binary.BigEndian.Uint32(buf[44:48]),
		ApStorageOffset:  binary.BigEndian.Uint32(buf[48:52]),
		NextPktPosition:  binary.BigEndian.Uint32(buf[52:56]),
		StartBoundary:    binary.BigEndian.Uint64(buf[56:64]),
		EndBoundary:      binary.BigEndian.Uint64(buf[64:72]),
	}, nil
}

// ApidInfo is the 32-byte per-APID catalog entry.
type ApidInfo struct {
	Name               string // 16 ASCII, NUL-padded
	Value              uint32 // the APID number
	PktTrackerStartIdx uint32
	PktsReserved       uint32
	PktsReceived       uint32
}

// Encode writes the record to a fresh ApidInfoLen-byte buffer.
func (a ApidInfo) Encode() []byte {
	buf := make([]byte, ApidInfoLen)
	putFixedASCII(buf[0:16], a.Name)
	binary.BigEndian.PutUint32(buf[16:20], a.Value)
	binary.BigEndian.PutUint32(buf[20:24], a.PktTrackerStartIdx)
	binary.BigEndian.PutUint32(buf[24:28], a.PktsReserved)
	binary.BigEndian.PutUint32(buf[28:32], a.PktsReceived)
	return buf
}

// DecodeApidInfo decodes an ApidInfo from buf.
func DecodeApidInfo(buf []byte) (ApidInfo, error) {
	if len(buf) < ApidInfoLen {
		return ApidInfo{}, &rdrerr.NotEnoughBytesError{Kind: rdrerr.KindApidInfo, Need: ApidInfoLen, Got: len(buf)}
	}
	return ApidInfo{
		Name:               getFixedASCII(buf[0:16]),
		Value:              binary.BigEndian.Uint32(buf[16:20]),
		PktTrackerStartIdx: binary.BigEndian.Uint32(buf[20:24]),
		PktsReserved:       binary.BigEndian.Uint32(buf[24:28]),
		PktsReceived:       binary.BigEndian.Uint32(buf[28:32]),
	}, nil
}

// PacketTracker is the 24-byte per-packet record.
type PacketTracker struct {
	ObsTime        int64 // IET microseconds of the packet's observation time
	SequenceNumber int32
	Size           int32
	Offset         int32 // byte offset into ap_storage; -1 if unavailable
	FillPercent    int32
}

// Encode writes the record to a fresh PacketTrackerLen-byte buffer.
func (p PacketTracker) Encode() []byte {
	buf := make([]byte, PacketTrackerLen)
	binary.BigEndian.PutUint64(buf[0:8], uint64(p.ObsTime))
	binary.BigEndian.PutUint32(buf[8:12], uint32(p.SequenceNumber))
	binary.BigEndian.PutUint32(buf[12:16], uint32(p.Size))
	binary.BigEndian.PutUint32(buf[16:20], uint32(p.Offset))
	binary.BigEndian.PutUint32(buf[20:24], uint32(p.FillPercent))
	return buf
}

// DecodePacketTracker decodes a PacketTracker from buf.
func DecodePacketTracker(buf []byte) (PacketTracker, error) {
	if len(buf) < PacketTrackerLen {
		return PacketTracker{}, &rdrerr.NotEnoughBytesError{Kind: rdrerr.KindPacketTracker, Need: PacketTrackerLen, Got: len(buf)}
	}
	return PacketTracker{
		ObsTime:        int64(binary.BigEndian.Uint64(buf[0:8])),
		SequenceNumber: int32(binary.BigEndian.Uint32(buf[8:12])),
		Size:           int32(binary.BigEndian.Uint32(buf[12:16])),
		Offset:         int32(binary.BigEndian.Uint32(buf[16:20])),
		FillPercent:    int32(binary.BigEndian.Uint32(buf[20:24])),
	}, nil
}

// CommonRDR is the fully decoded composite blob: header, APID catalog,
// per-APID packet trackers (grouped in catalog order, insertion order
// preserved within a group), and the contiguous packet-payload storage
// region.
type CommonRDR struct {
	Header   StaticHeader
	Apids    []ApidInfo
	Trackers []PacketTracker
	ApStorage []byte
}

// Decode parses a full Common RDR byte stream.
//
// Trailing short tracker chunks are silently ignored: the tracker region
// may be over-allocated, leaving a gap shorter than one tracker before
// ap_storage_offset.
func Decode(buf []byte) (CommonRDR, error) {
	hdr, err := DecodeStaticHeader(buf)
	if err != nil {
		return CommonRDR{}, err
	}

	apids := make([]ApidInfo, 0, hdr.NumApids)
	off := int(hdr.ApidListOffset)
	for i := uint32(0); i < hdr.NumApids; i++ {
		if off+ApidInfoLen > len(buf) {
			return CommonRDR{}, &rdrerr.NotEnoughBytesError{Kind: rdrerr.KindApidInfo, Need: ApidInfoLen, Got: len(buf) - off}
		}
		a, err := DecodeApidInfo(buf[off : off+ApidInfoLen])
		if err != nil {
			return CommonRDR{}, err
		}
		apids = append(apids, a)
		off += ApidInfoLen
	}

	var trackers []PacketTracker
	off = int(hdr.PktTrackerOffset)
	end := int(hdr.ApStorageOffset)
	for off+PacketTrackerLen <= end && off+PacketTrackerLen <= len(buf) {
		t, err := DecodePacketTracker(buf[off : off+PacketTrackerLen])
		if err != nil {
			return CommonRDR{}, err
		}
		trackers = append(trackers, t)
		off += PacketTrackerLen
	}

	var storage []byte
	if int(hdr.ApStorageOffset) <= len(buf) {
		storage = buf[hdr.ApStorageOffset:]
	}

	return CommonRDR{Header: hdr, Apids: apids, Trackers: trackers, ApStorage: storage}, nil
}
