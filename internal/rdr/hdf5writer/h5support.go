package hdf5writer

import (
	"fmt"
	"strings"

	hdf5 "github.com/sbinet/go-hdf5"

	"github.com/jpss-rdr/rdrgen/internal/rdr/accumulator"
	"github.com/jpss-rdr/rdrgen/internal/rdr/config"
	"github.com/jpss-rdr/rdrgen/internal/rdr/rdrerr"
	"github.com/jpss-rdr/rdrgen/internal/rdr/rdrtime"
)

// openOrCreateGroup opens name under parent, creating it if it does not
// already exist. go-hdf5's Group type has no native "open or create", so
// this is check-then-act: any error from OpenGroup is treated as the group
// being absent, and creation is attempted.
func openOrCreateGroup(parent *hdf5.Group, name string) (*hdf5.Group, error) {
	if g, err := parent.OpenGroup(name); err == nil {
		return g, nil
	}
	g, err := parent.CreateGroup(name)
	if err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "open-or-create group " + name, Err: err}
	}
	return g, nil
}

func createU8Dataset(group *hdf5.Group, name string, data []byte) (*hdf5.Dataset, error) {
	space, err := hdf5.CreateSimpleDataspace([]uint{uint(len(data))}, nil)
	if err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "dataspace for " + name, Err: err}
	}
	defer space.Close()

	dtype, err := hdf5.NewDatatypeFromValue(uint8(0))
	if err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "datatype for " + name, Err: err}
	}

	ds, err := group.CreateDataset(name, dtype, space)
	if err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "create dataset " + name, Err: err}
	}
	if err := ds.Write(&data); err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "write dataset " + name, Err: err}
	}
	return ds, nil
}

// createRegionRefDataset creates a one-element dataset of HDF5
// dataset-region-reference type, referencing the entirety of the raw
// bytes dataset rawName within allGroup. Per spec §9 ("HDF5 references"),
// this reference kind is never substituted for an object reference.
func createRegionRefDataset(parent *hdf5.Group, name string, allGroup *hdf5.Group, rawName string) (*hdf5.Dataset, error) {
	rawDS, err := allGroup.OpenDataset(rawName)
	if err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "open raw dataset for region ref", Err: err}
	}
	defer rawDS.Close()

	space, err := rawDS.Space()
	if err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "space of raw dataset", Err: err}
	}
	defer space.Close()
	if err := space.SelectAll(); err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "select all on raw dataset", Err: err}
	}

	ref, err := hdf5.NewRegionReference(rawDS, space)
	if err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "create region reference", Err: err}
	}

	refSpace, err := hdf5.CreateSimpleDataspace([]uint{1}, nil)
	if err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "dataspace for region ref dataset", Err: err}
	}
	defer refSpace.Close()

	ds, err := parent.CreateDataset(name, hdf5.T_STD_REF_DSETREG, refSpace)
	if err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "create region ref dataset " + name, Err: err}
	}
	refs := []hdf5.RegionReference{ref}
	if err := ds.Write(&refs); err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "write region ref dataset " + name, Err: err}
	}
	return ds, nil
}

// createObjectRefDataset creates a one-element dataset of HDF5
// object-reference type pointing at target.
func createObjectRefDataset(parent *hdf5.Group, name string, target hdf5.Locator) (*hdf5.Dataset, error) {
	ref, err := hdf5.NewReference(target)
	if err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "create object reference", Err: err}
	}

	space, err := hdf5.CreateSimpleDataspace([]uint{1}, nil)
	if err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "dataspace for object ref dataset", Err: err}
	}
	defer space.Close()

	ds, err := parent.CreateDataset(name, hdf5.T_STD_REF_OBJ, space)
	if err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "create object ref dataset " + name, Err: err}
	}
	refs := []hdf5.Reference{ref}
	if err := ds.Write(&refs); err != nil {
		return nil, &rdrerr.Hdf5Error{Op: "write object ref dataset " + name, Err: err}
	}
	return ds, nil
}

func writeStringAttr(obj hdf5.AttributeHost, name, value string, length int) error {
	padded := truncPad(value, length)
	attr, err := hdf5.NewFixedStringAttribute(obj, name, length)
	if err != nil {
		return &rdrerr.Hdf5Error{Op: "create attr " + name, Err: err}
	}
	defer attr.Close()
	if err := attr.Write(padded); err != nil {
		return &rdrerr.Hdf5Error{Op: "write attr " + name, Err: err}
	}
	return nil
}

func writeU64Attr(obj hdf5.AttributeHost, name string, value uint64) error {
	attr, err := hdf5.NewScalarAttribute(obj, name, hdf5.T_STD_U64BE)
	if err != nil {
		return &rdrerr.Hdf5Error{Op: "create attr " + name, Err: err}
	}
	defer attr.Close()
	if err := attr.Write(&value); err != nil {
		return &rdrerr.Hdf5Error{Op: "write attr " + name, Err: err}
	}
	return nil
}

func writeU32Attr(obj hdf5.AttributeHost, name string, value uint32) error {
	attr, err := hdf5.NewScalarAttribute(obj, name, hdf5.T_STD_U32BE)
	if err != nil {
		return &rdrerr.Hdf5Error{Op: "create attr " + name, Err: err}
	}
	defer attr.Close()
	if err := attr.Write(&value); err != nil {
		return &rdrerr.Hdf5Error{Op: "write attr " + name, Err: err}
	}
	return nil
}

func writeF32Attr(obj hdf5.AttributeHost, name string, value float32) error {
	attr, err := hdf5.NewScalarAttribute(obj, name, hdf5.T_IEEE_F32BE)
	if err != nil {
		return &rdrerr.Hdf5Error{Op: "create attr " + name, Err: err}
	}
	defer attr.Close()
	if err := attr.Write(&value); err != nil {
		return &rdrerr.Hdf5Error{Op: "write attr " + name, Err: err}
	}
	return nil
}

func writeStringArrayAttr(obj hdf5.AttributeHost, name string, values []string, elemLen int) error {
	padded := make([]string, len(values))
	for i, v := range values {
		padded[i] = truncPad(v, elemLen)
	}
	attr, err := hdf5.NewFixedStringArrayAttribute(obj, name, elemLen, len(padded))
	if err != nil {
		return &rdrerr.Hdf5Error{Op: "create attr " + name, Err: err}
	}
	defer attr.Close()
	if err := attr.Write(padded); err != nil {
		return &rdrerr.Hdf5Error{Op: "write attr " + name, Err: err}
	}
	return nil
}

func writeU64ArrayAttr(obj hdf5.AttributeHost, name string, values []uint64) error {
	attr, err := hdf5.NewArrayAttribute(obj, name, hdf5.T_STD_U64BE, len(values))
	if err != nil {
		return &rdrerr.Hdf5Error{Op: "create attr " + name, Err: err}
	}
	defer attr.Close()
	if err := attr.Write(&values); err != nil {
		return &rdrerr.Hdf5Error{Op: "write attr " + name, Err: err}
	}
	return nil
}

// readStringAttr reads back a fixed-width ASCII attribute previously
// written by writeStringAttr.
func readStringAttr(obj hdf5.AttributeHost, name string) (string, error) {
	attr, err := obj.OpenAttribute(name)
	if err != nil {
		return "", &rdrerr.Hdf5Error{Op: "open attr " + name, Err: err}
	}
	defer attr.Close()
	var s string
	if err := attr.Read(&s); err != nil {
		return "", &rdrerr.Hdf5Error{Op: "read attr " + name, Err: err}
	}
	return strings.TrimRight(s, "\x00"), nil
}

// deleteIfExists removes an existing link named name under parent, if
// present, so a dataset can be recreated idempotently (used by the aggr
// recompute path).
func deleteIfExists(parent *hdf5.Group, name string) {
	if _, err := parent.OpenDataset(name); err == nil {
		parent.Unlink(name)
	}
}

func writeFileAttrs(f *hdf5.File, cfg config.Config, created rdrtime.Instant) error {
	attrs := []struct {
		name, value string
	}{
		{"Distributor", cfg.Distributor},
		{"Mission_Name", cfg.Satellite.Mission},
		{"Platform_Short_Name", cfg.Satellite.ShortName},
		{"N_Dataset_Source", cfg.Origin},
		{"N_HDF_Creation_Date", created.Format("%Y%m%d")},
		{"N_HDF_Creation_Time", created.Format("%H%M%S.%fZ")},
	}
	for _, a := range attrs {
		if err := writeStringAttr(f, a.name, a.value, fixedLen(a.name, len(a.value))); err != nil {
			return err
		}
	}
	return nil
}

func writeProductGroupAttrs(g *hdf5.Group, product config.ProductSpec) error {
	attrs := []struct {
		name, value string
	}{
		{"Instrument_Short_Name", product.Sensor},
		{"N_Collection_Short_Name", product.ShortName},
		{"N_Dataset_Type_Tag", "RDR"},
		{"N_Processing_Domain", "ops"},
	}
	for _, a := range attrs {
		if err := writeStringAttr(g, a.name, a.value, fixedLen(a.name, len(a.value))); err != nil {
			return err
		}
	}
	return nil
}

func writeGranuleAttrs(ds *hdf5.Dataset, rdr *accumulator.CompiledRdr, begin, end, created rdrtime.Instant, granID string, cfg config.Config) error {
	strAttrs := []struct {
		name, value string
	}{
		{"Beginning_Date", begin.Format("%Y%m%d")},
		{"Beginning_Time", begin.Format("%H%M%S.%fZ")},
		{"Ending_Date", end.Format("%Y%m%d")},
		{"Ending_Time", end.Format("%H%M%S.%fZ")},
		{"N_Creation_Date", created.Format("%Y%m%d")},
		{"N_Creation_Time", created.Format("%H%M%S.%fZ")},
		{"N_Granule_Status", "N/A"},
		{"N_Granule_Version", "A1"},
		{"N_JPSS_Document_Ref", ""},
		{"N_LEOA_Flag", "Off"},
		{"N_Reference_ID", fmt.Sprintf("%s:%s:A1", rdr.Product.ShortName, granID)},
		{"N_Granule_ID", granID},
		{"N_IDPS_Mode", cfg.Mode},
		{"N_Software_Version", "rdrgen"},
	}
	for _, a := range strAttrs {
		if err := writeStringAttr(ds, a.name, a.value, fixedLen(a.name, len(a.value))); err != nil {
			return err
		}
	}

	if err := writeU64Attr(ds, "N_Beginning_Orbit_Number", 1); err != nil {
		return err
	}
	if err := writeU64Attr(ds, "N_Beginning_Time_IET", rdr.GranStart); err != nil {
		return err
	}
	if err := writeU64Attr(ds, "N_Ending_Time_IET", rdr.GranEnd); err != nil {
		return err
	}

	received := rdr.ReceivedApids
	names := make([]string, len(received))
	counts := make([]uint64, len(received))
	for i, a := range received {
		names[i] = a.Name
		counts[i] = uint64(a.PktsReceived)
	}
	if err := writeStringArrayAttr(ds, "N_Packet_Type", names, 17); err != nil {
		return err
	}
	if err := writeU64ArrayAttr(ds, "N_Packet_Type_Count", counts); err != nil {
		return err
	}
	if err := writeF32Attr(ds, "N_Percent_Missing_Data", 0); err != nil {
		return err
	}
	return nil
}

func writeAggregate(dataProducts *hdf5.Group, shortName string, refs []granuleRef) error {
	allName := shortName + "_All"
	allGroup, err := dataProducts.Root().OpenGroupPath("/All_Data/" + allName)
	if err != nil {
		return &rdrerr.Hdf5Error{Op: "open " + allName + " for aggregate", Err: err}
	}
	defer allGroup.Close()

	name := shortName + "_Aggr"
	deleteIfExists(dataProducts, name)
	ds, err := createObjectRefDataset(dataProducts, name, allGroup)
	if err != nil {
		return err
	}
	defer ds.Close()

	if err := writeU32Attr(ds, "AggregateBeginningOrbitNumber", 1); err != nil {
		return err
	}
	if err := writeU32Attr(ds, "AggregateEndingOrbitNumber", 1); err != nil {
		return err
	}
	if err := writeU32Attr(ds, "AggregateNumberGranules", uint32(len(refs))); err != nil {
		return err
	}

	begin, end := refs[0], refs[0]
	for _, r := range refs[1:] {
		if r.beginISO < begin.beginISO {
			begin = r
		}
		if r.endISO > end.endISO {
			end = r
		}
	}

	strAttrs := []struct{ name, value string }{
		{"AggregateBeginningDate", begin.beginISO[:8]},
		{"AggregateBeginningTime", begin.beginISO[8:]},
		{"AggregateEndingDate", end.endISO[:8]},
		{"AggregateEndingTime", end.endISO[8:]},
		{"AggregateBeginningGranuleID", begin.granuleID},
		{"AggregateEndingGranuleID", end.granuleID},
	}
	for _, a := range strAttrs {
		if err := writeStringAttr(ds, a.name, a.value, fixedLen(a.name, len(a.value)+4)); err != nil {
			return err
		}
	}
	return nil
}
