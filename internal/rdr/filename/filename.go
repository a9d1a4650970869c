// Package filename builds the IDPS-style RDR HDF5 filename and the PDS
// dump filename, per spec §4.8 and §6.
package filename

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jpss-rdr/rdrgen/internal/rdr/accumulator"
	"github.com/jpss-rdr/rdrgen/internal/rdr/config"
	"github.com/jpss-rdr/rdrgen/internal/rdr/rdrtime"
)

// Build constructs the IDPS-style filename for a completed group (primary
// plus packed RDRs). Only SCIENCE-typed RDRs contribute to start/end
// times (spec §9's documented exclusion of diary granules).
func Build(cfg config.Config, rdrs []*accumulator.CompiledRdr, created rdrtime.Instant) (string, error) {
	if len(rdrs) == 0 {
		return "", fmt.Errorf("filename: no rdrs in group")
	}

	ids := make(map[string]struct{})
	for _, r := range rdrs {
		ids[r.Product.ProductID] = struct{}{}
	}
	sortedIDs := make([]string, 0, len(ids))
	for id := range ids {
		sortedIDs = append(sortedIDs, id)
	}
	sort.Strings(sortedIDs)
	productIDs := strings.Join(sortedIDs, "-")

	var start, end *rdrtime.Instant
	for _, r := range rdrs {
		if r.Product.TypeID != "SCIENCE" {
			continue
		}
		b := rdrtime.FromIETMicros(int64(r.GranStart))
		e := rdrtime.FromIETMicros(int64(r.GranEnd))
		if start == nil || b.IET() < start.IET() {
			start = &b
		}
		if end == nil || e.IET() > end.IET() {
			end = &e
		}
	}
	if start == nil {
		b := rdrtime.FromIETMicros(int64(rdrs[0].GranStart))
		e := rdrtime.FromIETMicros(int64(rdrs[0].GranEnd))
		start, end = &b, &e
	}

	startDate := start.Format("%Y%m%d")
	startTime := start.Format("%H%M%S%f")[:7]
	endTime := end.Format("%H%M%S%f")[:7]
	createdStamp := created.Format("%Y%m%d%H%M%S%f")

	return fmt.Sprintf(
		"%s_%s_d%s_t%s_e%s_b00000_c%s_%su_%s.h5",
		productIDs, cfg.Satellite.ID, startDate, startTime, endTime, createdStamp,
		truncOrigin(cfg.Origin), cfg.Mode,
	), nil
}

func truncOrigin(origin string) string {
	if len(origin) > 3 {
		return origin[:3]
	}
	return origin
}

// PDSScience builds the science PDS dump filename, digit-for-digit per
// CDFCB: P<scid:03>0826VIIRSSCIENCEAS<YYjjjHHMMSS>001.PDS. For OMPS the
// APID portion is literally "????".
func PDSScience(scid int, apid int, sensor string, t rdrtime.Instant) string {
	apidStr := fmt.Sprintf("%04d", apid)
	if sensor == "OMPS" {
		apidStr = "????"
	}
	return fmt.Sprintf("P%03d%s%sSCIENCEAS%s001.PDS", scid, apidStr, sensor, t.Format("%y%j%H%M%S"))
}

// PDSSpacecraft builds the spacecraft-diary PDS dump filename:
// P<scid:03><apid:04>AAAAAAAAAAAAAS<YYjjjHHMMSS>001.PDS
func PDSSpacecraft(scid int, apid int, t rdrtime.Instant) string {
	return fmt.Sprintf("P%03d%04dAAAAAAAAAAAAAS%s001.PDS", scid, apid, t.Format("%y%j%H%M%S"))
}
