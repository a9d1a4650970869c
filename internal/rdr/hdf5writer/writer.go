// Package hdf5writer lays out completed collector groups onto the HDF5
// /All_Data and /Data_Products tree mandated by the CDFCB, including the
// dataset-region-reference and object-reference cross-links between them.
package hdf5writer

import (
	"fmt"
	"strings"

	hdf5 "github.com/sbinet/go-hdf5"

	"github.com/jpss-rdr/rdrgen/internal/rdr/accumulator"
	"github.com/jpss-rdr/rdrgen/internal/rdr/codec"
	"github.com/jpss-rdr/rdrgen/internal/rdr/collector"
	"github.com/jpss-rdr/rdrgen/internal/rdr/config"
	"github.com/jpss-rdr/rdrgen/internal/rdr/filename"
	"github.com/jpss-rdr/rdrgen/internal/rdr/rdrerr"
	"github.com/jpss-rdr/rdrgen/internal/rdr/rdrtime"
)

// granuleIndex tracks the next free per-short-name granule index within
// one file: datasets are numbered sequentially from 0 within
// /All_Data/<short_name>_All, and WriteGroup starts a fresh index for
// every file it creates.
type granuleIndex struct {
	next map[string]int
}

func newGranuleIndex() *granuleIndex {
	return &granuleIndex{next: make(map[string]int)}
}

func (g *granuleIndex) take(shortName string) int {
	idx := g.next[shortName]
	g.next[shortName]++
	return idx
}

// Writer creates one HDF5 file per emitted Group.
type Writer struct {
	cfg   config.Config
	outDir string
}

// New builds a Writer that places files under outDir.
func New(cfg config.Config, outDir string) *Writer {
	return &Writer{cfg: cfg, outDir: outDir}
}

// WriteGroup creates a new HDF5 file for group and returns its path.
// Per spec §7, a failure here is recoverable at the file boundary: the
// caller is expected to log and continue with the next group.
func (w *Writer) WriteGroup(group *collector.Group, created rdrtime.Instant) (string, error) {
	rdrs := append([]*accumulator.CompiledRdr{group.Primary}, group.Packed...)

	path, err := filename.Build(w.cfg, rdrs, created)
	if err != nil {
		return "", err
	}
	fullPath := w.outDir + "/" + path

	f, err := hdf5.CreateFile(fullPath, hdf5.F_ACC_TRUNC)
	if err != nil {
		return "", &rdrerr.Hdf5Error{Op: "create file", Err: err}
	}
	defer f.Close()

	if err := writeFileAttrs(f, w.cfg, created); err != nil {
		return "", err
	}

	allData, err := f.CreateGroup("All_Data")
	if err != nil {
		return "", &rdrerr.Hdf5Error{Op: "create /All_Data", Err: err}
	}
	defer allData.Close()

	dataProducts, err := f.CreateGroup("Data_Products")
	if err != nil {
		return "", &rdrerr.Hdf5Error{Op: "create /Data_Products", Err: err}
	}
	defer dataProducts.Close()

	idx := newGranuleIndex()
	bySn := make(map[string][]granuleRef)

	for _, rdr := range rdrs {
		refs, err := w.writeRDR(allData, dataProducts, idx, rdr, created)
		if err != nil {
			return "", err
		}
		bySn[rdr.Product.ShortName] = append(bySn[rdr.Product.ShortName], refs)
	}

	for shortName, refs := range bySn {
		if err := writeAggregate(dataProducts, shortName, refs); err != nil {
			return "", err
		}
	}

	diagf("wrote %s: %d rdrs", fullPath, len(rdrs))
	return fullPath, nil
}

// granuleRef records what's needed to build the _Aggr attributes after
// all granule datasets for a short_name have been written.
type granuleRef struct {
	beginISO, endISO string
	granuleID        string
}

func (w *Writer) writeRDR(allData, dataProducts *hdf5.Group, idx *granuleIndex, rdr *accumulator.CompiledRdr, created rdrtime.Instant) (granuleRef, error) {
	shortName := rdr.Product.ShortName
	i := idx.take(shortName)

	blob := rdr.Blob

	allGroupName := shortName + "_All"
	allGroup, err := openOrCreateGroup(allData, allGroupName)
	if err != nil {
		return granuleRef{}, &rdrerr.Hdf5Error{Op: "create " + allGroupName, Err: err}
	}
	defer allGroup.Close()

	rawName := fmt.Sprintf("RawApplicationPackets_%d", i)
	rawDS, err := createU8Dataset(allGroup, rawName, blob)
	if err != nil {
		return granuleRef{}, err
	}
	defer rawDS.Close()

	productGroup, err := openOrCreateGroup(dataProducts, shortName)
	if err != nil {
		return granuleRef{}, &rdrerr.Hdf5Error{Op: "create " + shortName, Err: err}
	}
	defer productGroup.Close()
	if err := writeProductGroupAttrs(productGroup, rdr.Product); err != nil {
		return granuleRef{}, err
	}

	granDsName := fmt.Sprintf("%s_Gran_%d", shortName, i)
	granDS, err := createRegionRefDataset(productGroup, granDsName, allGroup, rawName)
	if err != nil {
		return granuleRef{}, err
	}
	defer granDS.Close()

	beginIET := rdr.GranStart
	endIET := rdr.GranEnd
	beginInst := rdrtime.FromIETMicros(int64(beginIET))
	endInst := rdrtime.FromIETMicros(int64(endIET))
	granID := collector.GranuleID(w.cfg.Satellite.ShortName, w.cfg.Satellite.BaseTime, beginIET)

	if err := writeGranuleAttrs(granDS, rdr, beginInst, endInst, created, granID, w.cfg); err != nil {
		return granuleRef{}, err
	}

	return granuleRef{
		beginISO:  beginInst.Format("%Y%m%d%H%M%S.%fZ"),
		endISO:    endInst.Format("%Y%m%d%H%M%S.%fZ"),
		granuleID: granID,
	}, nil
}

var scienceAttrNameLimits = map[string]int{
	"Distributor":         4,
	"Mission_Name":         20,
	"Platform_Short_Name":  3,
	"N_Reference_ID":       39,
	"Instrument_Short_Name": 16,
	"N_Collection_Short_Name": 20,
	"N_Dataset_Type_Tag":  4,
	"N_Processing_Domain": 12,
	"N_Granule_Status":    12,
	"N_Granule_Version":   3,
	"N_JPSS_Document_Ref": 39,
	"N_LEOA_Flag":         4,
	"N_Granule_ID":        16,
	"N_IDPS_Mode":         12,
	"N_Software_Version":  39,
	"Beginning_Date":      8,
	"Beginning_Time":      16,
	"Ending_Date":         8,
	"Ending_Time":         16,
	"N_Creation_Date":     8,
	"N_Creation_Time":     16,
}

// RecomputeAggregates opens an existing RDR HDF5 file and rebuilds the
// `<short_name>_Aggr` object-reference dataset for every product group
// under /Data_Products, from the attributes already on its
// `<short_name>_Gran_<idx>` datasets. This is the `aggr` CLI subcommand's
// entry point (SPEC_FULL.md §8), useful when granules were written
// incrementally by separate create runs.
func RecomputeAggregates(path string) error {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDWR)
	if err != nil {
		return &rdrerr.Hdf5Error{Op: "open file for aggregate recompute", Err: err}
	}
	defer f.Close()

	dataProducts, err := f.OpenGroup("Data_Products")
	if err != nil {
		return &rdrerr.Hdf5Error{Op: "open /Data_Products", Err: err}
	}
	defer dataProducts.Close()

	shortNames, err := dataProducts.GroupNames()
	if err != nil {
		return &rdrerr.Hdf5Error{Op: "list /Data_Products groups", Err: err}
	}

	for _, shortName := range shortNames {
		if err := recomputeOneAggregate(dataProducts, shortName); err != nil {
			return err
		}
	}
	return nil
}

func recomputeOneAggregate(dataProducts *hdf5.Group, shortName string) error {
	g, err := dataProducts.OpenGroup(shortName)
	if err != nil {
		return &rdrerr.Hdf5Error{Op: "open product group " + shortName, Err: err}
	}
	defer g.Close()

	names, err := g.DatasetNames()
	if err != nil {
		return &rdrerr.Hdf5Error{Op: "list datasets in " + shortName, Err: err}
	}

	var refs []granuleRef
	prefix := shortName + "_Gran_"
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		ds, err := g.OpenDataset(name)
		if err != nil {
			return &rdrerr.Hdf5Error{Op: "open " + name, Err: err}
		}
		beginDate, err1 := readStringAttr(ds, "Beginning_Date")
		beginTime, err2 := readStringAttr(ds, "Beginning_Time")
		endDate, err3 := readStringAttr(ds, "Ending_Date")
		endTime, err4 := readStringAttr(ds, "Ending_Time")
		granID, err5 := readStringAttr(ds, "N_Granule_ID")
		ds.Close()
		if err := firstErr(err1, err2, err3, err4, err5); err != nil {
			return err
		}
		refs = append(refs, granuleRef{
			beginISO:  beginDate + beginTime,
			endISO:    endDate + endTime,
			granuleID: granID,
		})
	}
	if len(refs) == 0 {
		return nil
	}
	return writeAggregate(dataProducts, shortName, refs)
}

func firstErr(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

func fixedLen(name string, def int) int {
	if n, ok := scienceAttrNameLimits[name]; ok {
		return n
	}
	return def
}

func truncPad(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
