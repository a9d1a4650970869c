// Package hdf5reader dumps packets back out of an RDR HDF5 file into
// PDS-named files, and reads file/group/dataset attributes into metadata
// objects, per spec §4.7.
package hdf5reader

import (
	"fmt"
	"os"
	"sort"

	hdf5 "github.com/sbinet/go-hdf5"

	"github.com/jpss-rdr/rdrgen/internal/rdr/codec"
	"github.com/jpss-rdr/rdrgen/internal/rdr/config"
	"github.com/jpss-rdr/rdrgen/internal/rdr/filename"
	"github.com/jpss-rdr/rdrgen/internal/rdr/rdrerr"
	"github.com/jpss-rdr/rdrgen/internal/rdr/rdrtime"
)

// scienceGroups is the fixed list of supported science groups, plus the
// optional spacecraft-diary group, walked by Dump.
var scienceGroups = []string{
	"VIIRS-SCIENCE-RDR_All",
	"CRIS-SCIENCE-RDR_All",
	"ATMS-SCIENCE-RDR_All",
	"OMPS-SCIENCE-RDR_All",
}

const diaryGroup = "SPACECRAFT-DIARY-RDR_All"

// apidPriority breaks timestamp ties during merge: APID 826 (VIIRS
// science) sorts before 821 (VIIRS engineering).
var apidPriority = []uint16{826, 821}

func priorityRank(apid uint16) int {
	for i, a := range apidPriority {
		if a == apid {
			return i
		}
	}
	return len(apidPriority)
}

// extractedPacket is one packet copied out of ap_storage during the walk,
// tagged with the information needed to merge and name PDS output files.
type extractedPacket struct {
	apid    uint16
	obsTime int64
	data    []byte
}

// Dump reads an RDR file and writes merged, time-sorted PDS files into
// outDir, one per science group (and, for the spacecraft-diary group, one
// per APID). It returns the list of written PDS file paths.
//
// A malformed RDR blob within the file is logged and skipped per spec §7;
// the caller supplies the logger via warnf.
func Dump(path, outDir string, scid int, cfg config.Config, warnf func(format string, args ...any)) ([]string, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, &rdrerr.IoError{Op: "open rdr file", Err: err}
	}
	defer f.Close()

	allData, err := f.OpenGroup("All_Data")
	if err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "open /All_Data", Err: err}
	}
	defer allData.Close()

	var written []string

	for _, groupName := range scienceGroups {
		pkts, err := walkGroup(allData, groupName, warnf)
		if err != nil {
			return nil, err
		}
		if pkts == nil {
			continue
		}
		sensor := sensorForGroup(groupName)
		path, err := mergeScience(pkts, outDir, scid, sensor)
		if err != nil {
			return nil, err
		}
		written = append(written, path)
	}

	if pkts, err := walkGroup(allData, diaryGroup, warnf); err == nil && pkts != nil {
		paths, err := mergeDiary(pkts, outDir, scid)
		if err != nil {
			return nil, err
		}
		written = append(written, paths...)
	}

	return written, nil
}

// ExtractGranule reads the raw Common-RDR bytes for one granule directly
// from /All_Data/<shortName>_All/RawApplicationPackets_<idx>, bypassing
// the dump path's merge logic — used by the `extract` CLI subcommand to
// debug the codec in isolation (SPEC_FULL.md §8).
func ExtractGranule(path, shortName string, idx int) ([]byte, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, &rdrerr.IoError{Op: "open rdr file", Err: err}
	}
	defer f.Close()

	allGroupName := shortName + "_All"
	g, err := f.Root().OpenGroupPath("/All_Data/" + allGroupName)
	if err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "open " + allGroupName, Err: err}
	}
	defer g.Close()

	dsName := fmt.Sprintf("RawApplicationPackets_%d", idx)
	ds, err := g.OpenDataset(dsName)
	if err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "open " + dsName, Err: err}
	}
	defer ds.Close()

	buf := make([]byte, ds.Space().SimpleExtentNPoints())
	if err := ds.Read(&buf); err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "read " + dsName, Err: err}
	}
	return buf, nil
}

func sensorForGroup(groupName string) string {
	switch groupName {
	case "VIIRS-SCIENCE-RDR_All":
		return "VIIRS"
	case "CRIS-SCIENCE-RDR_All":
		return "CRIS"
	case "ATMS-SCIENCE-RDR_All":
		return "ATMS"
	case "OMPS-SCIENCE-RDR_All":
		return "OMPS"
	}
	return ""
}

// walkGroup iterates every RawApplicationPackets_<idx> dataset within
// groupName, decodes its StaticHeader, walks the apid list and per-APID
// tracker entries, and copies packet bytes out of ap_storage.
func walkGroup(allData *hdf5.Group, groupName string, warnf func(format string, args ...any)) ([]extractedPacket, error) {
	g, err := allData.OpenGroup(groupName)
	if err != nil {
		return nil, nil // group absent: not an error, just not present in this file
	}
	defer g.Close()

	names, err := g.DatasetNames()
	if err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "list datasets in " + groupName, Err: err}
	}

	var out []extractedPacket
	for _, name := range names {
		ds, err := g.OpenDataset(name)
		if err != nil {
			if warnf != nil {
				warnf("skipping unreadable dataset %s/%s: %v", groupName, name, err)
			}
			continue
		}
		buf := make([]byte, ds.Space().SimpleExtentNPoints())
		if err := ds.Read(&buf); err != nil {
			ds.Close()
			if warnf != nil {
				warnf("skipping unreadable dataset %s/%s: %v", groupName, name, err)
			}
			continue
		}
		ds.Close()

		pkts, err := extractPackets(buf)
		if err != nil {
			if warnf != nil {
				warnf("skipping malformed rdr blob %s/%s: %v", groupName, name, err)
			}
			continue
		}
		out = append(out, pkts...)
	}
	return out, nil
}

func extractPackets(buf []byte) ([]extractedPacket, error) {
	rdr, err := codec.Decode(buf)
	if err != nil {
		return nil, err
	}

	var out []extractedPacket
	trackerIdx := 0
	for _, a := range rdr.Apids {
		for i := uint32(0); i < a.PktsReceived; i++ {
			if trackerIdx >= len(rdr.Trackers) {
				break
			}
			t := rdr.Trackers[trackerIdx]
			trackerIdx++
			if t.Offset < 0 {
				continue
			}
			start := int(t.Offset)
			end := start + int(t.Size)
			if end > len(rdr.ApStorage) {
				continue
			}
			data := make([]byte, t.Size)
			copy(data, rdr.ApStorage[start:end])
			out = append(out, extractedPacket{
				apid:    uint16(a.Value),
				obsTime: t.ObsTime,
				data:    data,
			})
		}
	}
	return out, nil
}

func sortMerged(pkts []extractedPacket) {
	sort.SliceStable(pkts, func(i, j int) bool {
		if pkts[i].obsTime != pkts[j].obsTime {
			return pkts[i].obsTime < pkts[j].obsTime
		}
		return priorityRank(pkts[i].apid) < priorityRank(pkts[j].apid)
	})
}

func mergeScience(pkts []extractedPacket, outDir string, scid int, sensor string) (string, error) {
	sortMerged(pkts)
	var apid int
	if len(pkts) > 0 {
		apid = int(pkts[0].apid)
	}
	t := rdrtime.FromIETMicros(0)
	if len(pkts) > 0 {
		t = rdrtime.FromIETMicros(pkts[0].obsTime)
	}
	name := filename.PDSScience(scid, apid, sensor, t)
	return name, writeConcatenated(outDir, name, pkts)
}

func mergeDiary(pkts []extractedPacket, outDir string, scid int) ([]string, error) {
	byApid := make(map[uint16][]extractedPacket)
	for _, p := range pkts {
		byApid[p.apid] = append(byApid[p.apid], p)
	}
	apids := make([]uint16, 0, len(byApid))
	for a := range byApid {
		apids = append(apids, a)
	}
	sort.Slice(apids, func(i, j int) bool { return apids[i] < apids[j] })

	var written []string
	for _, apid := range apids {
		group := byApid[apid]
		sortMerged(group)
		t := rdrtime.FromIETMicros(group[0].obsTime)
		name := filename.PDSSpacecraft(scid, int(apid), t)
		if err := writeConcatenated(outDir, name, group); err != nil {
			return nil, err
		}
		written = append(written, name)
	}
	return written, nil
}

func writeConcatenated(outDir, name string, pkts []extractedPacket) error {
	f, err := os.Create(outDir + "/" + name)
	if err != nil {
		return &rdrerr.IoError{Op: "create pds file", Err: err}
	}
	defer f.Close()
	for _, p := range pkts {
		if _, err := f.Write(p.data); err != nil {
			return &rdrerr.IoError{Op: "write pds file", Err: err}
		}
	}
	return nil
}
