// Package ccsds is the minimal CCSDS space-packet reader that stands in
// for the external decoder spec.md §1 calls out of scope. It only parses
// the fixed 6-byte primary header and an assumed CDS time secondary
// header (day + millisecond-of-day + submillisecond, per spec.md §6) —
// no corpus library covers this, and the format is a handful of
// fixed-width integer fields, so it is implemented directly against
// encoding/binary rather than adding a dependency for it (see
// DESIGN.md).
package ccsds

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"sort"

	"github.com/jpss-rdr/rdrgen/internal/rdr/accumulator"
	"github.com/jpss-rdr/rdrgen/internal/rdr/pipeline"
	"github.com/jpss-rdr/rdrgen/internal/rdr/rdrerr"
	"github.com/jpss-rdr/rdrgen/internal/rdr/rdrtime"
)

// apidPriority breaks timestamp ties during merge, mirroring
// hdf5reader's dump-side tie-break (spec.md §6): VIIRS science (826)
// before VIIRS engineering (821).
var apidPriority = []uint16{826, 821}

func priorityRank(apid uint16) int {
	for i, a := range apidPriority {
		if a == apid {
			return i
		}
	}
	return len(apidPriority)
}

const primaryHeaderLen = 6

// secondaryHeaderLen is the CDS time code: 2-byte day (since the mission
// epoch), 4-byte millisecond-of-day, 2-byte submillisecond.
const secondaryHeaderLen = 8

// dayUs is one day in microseconds, used to convert the CDS day
// field to IET microseconds.
const dayUs = 86_400_000_000

// FileSource reads a concatenated stream of CCSDS packets (primary header
// + secondary CDS time header + payload) from r, implementing
// pipeline.Source.
type FileSource struct {
	r   *bufio.Reader
	seq uint16
}

// NewFileSource wraps r as a packet Source.
func NewFileSource(r io.Reader) *FileSource {
	return &FileSource{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next decodes the next packet, or returns ok=false at a clean EOF between
// packets.
func (s *FileSource) Next() (pipeline.TimedPacket, bool, error) {
	hdr := make([]byte, primaryHeaderLen)
	if _, err := io.ReadFull(s.r, hdr); err != nil {
		if err == io.EOF {
			return pipeline.TimedPacket{}, false, nil
		}
		return pipeline.TimedPacket{}, false, &rdrerr.IoError{Op: "read ccsds primary header", Err: err}
	}

	apid := binary.BigEndian.Uint16(hdr[0:2]) & 0x07FF
	secHdrFlag := hdr[0]&0x08 != 0
	seqCount := binary.BigEndian.Uint16(hdr[2:4]) & 0x3FFF
	dataLen := int(binary.BigEndian.Uint16(hdr[4:6])) + 1

	body := make([]byte, dataLen)
	if _, err := io.ReadFull(s.r, body); err != nil {
		return pipeline.TimedPacket{}, false, &rdrerr.IoError{Op: "read ccsds packet body", Err: err}
	}

	var obsIET int64
	payload := body
	if secHdrFlag && len(body) >= secondaryHeaderLen {
		day := binary.BigEndian.Uint16(body[0:2])
		msOfDay := binary.BigEndian.Uint32(body[2:6])
		subMs := binary.BigEndian.Uint16(body[6:8])
		obsIET = int64(day)*dayUs + int64(msOfDay)*1000 + int64(subMs)
		payload = body[secondaryHeaderLen:]
	}

	pkt := accumulator.Packet{Apid: apid, SequenceID: seqCount, Data: payload}
	return pipeline.TimedPacket{Time: rdrtime.FromIETMicros(obsIET), Pkt: pkt}, true, nil
}

// MultiFileSource concatenates multiple FileSources in order, matching
// spec.md §6's merge policy for the simple no-interleaving case (file
// list already time-ordered). For true timecode-interleaved merging of
// unordered multi-file input, see Merge.
type MultiFileSource struct {
	sources []*FileSource
	idx     int
}

// NewMultiFileSource builds a Source over several already-open readers.
func NewMultiFileSource(readers ...io.Reader) *MultiFileSource {
	srcs := make([]*FileSource, len(readers))
	for i, r := range readers {
		srcs[i] = NewFileSource(r)
	}
	return &MultiFileSource{sources: srcs}
}

// Next advances through the current file, then the next, until all are
// exhausted.
func (m *MultiFileSource) Next() (pipeline.TimedPacket, bool, error) {
	for m.idx < len(m.sources) {
		tp, ok, err := m.sources[m.idx].Next()
		if err != nil {
			return pipeline.TimedPacket{}, false, err
		}
		if ok {
			return tp, true, nil
		}
		m.idx++
	}
	return pipeline.TimedPacket{}, false, nil
}

// Merge reads every packet out of paths, orders them by observation time
// (ties broken by apidPriority), and writes the merged wire-format stream
// to dest, implementing spec.md §6's merge policy for unordered
// multi-file input.
func Merge(paths []string, dest io.Writer) error {
	var all []pipeline.TimedPacket
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return &rdrerr.IoError{Op: "open merge input " + p, Err: err}
		}
		src := NewFileSource(f)
		for {
			tp, ok, err := src.Next()
			if err != nil {
				f.Close()
				return err
			}
			if !ok {
				break
			}
			all = append(all, tp)
		}
		f.Close()
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Time.IET() != all[j].Time.IET() {
			return all[i].Time.IET() < all[j].Time.IET()
		}
		return priorityRank(all[i].Pkt.Apid) < priorityRank(all[j].Pkt.Apid)
	})

	w := bufio.NewWriterSize(dest, 64*1024)
	for _, tp := range all {
		if _, err := w.Write(Encode(tp)); err != nil {
			return &rdrerr.IoError{Op: "write merged packet", Err: err}
		}
	}
	return w.Flush()
}

// Encode serializes tp back to CCSDS wire format (primary header +
// secondary CDS time header + payload), the inverse of FileSource.Next,
// used by Merge to produce a single re-orderable stream.
func Encode(tp pipeline.TimedPacket) []byte {
	iet := tp.Time.IET()
	day := iet / dayUs
	rem := iet - day*dayUs
	msOfDay := rem / 1000
	subMs := rem % 1000

	body := make([]byte, secondaryHeaderLen+len(tp.Pkt.Data))
	binary.BigEndian.PutUint16(body[0:2], uint16(day))
	binary.BigEndian.PutUint32(body[2:6], uint32(msOfDay))
	binary.BigEndian.PutUint16(body[6:8], uint16(subMs))
	copy(body[secondaryHeaderLen:], tp.Pkt.Data)

	hdr := make([]byte, primaryHeaderLen)
	binary.BigEndian.PutUint16(hdr[0:2], (tp.Pkt.Apid&0x07FF)|0x0800) // secondary header flag set
	binary.BigEndian.PutUint16(hdr[2:4], (tp.Pkt.SequenceID&0x3FFF)|0xC000) // standalone packet
	binary.BigEndian.PutUint16(hdr[4:6], uint16(len(body)-1))

	out := make([]byte, 0, len(hdr)+len(body))
	out = append(out, hdr...)
	out = append(out, body...)
	return out
}
