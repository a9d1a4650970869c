// Package collector implements the multi-product granule state machine:
// classifies each incoming packet, routes it to a primary or packed
// accumulator keyed by (product, granule time), and emits a completed
// primary granule alongside its time-overlapping packed companions.
package collector

import (
	"sort"

	"github.com/jpss-rdr/rdrgen/internal/rdr/accumulator"
	"github.com/jpss-rdr/rdrgen/internal/rdr/config"
	"github.com/jpss-rdr/rdrgen/internal/rdr/rdrerr"
)

// GranuleStart computes the granule boundary containing pktIET, per
// spec §4.1: ((pkt_iet - base_time) / gran_len) * gran_len + base_time,
// integer division truncating toward zero.
func GranuleStart(pktIET int64, granLen, baseTime uint64) (uint64, error) {
	if pktIET < int64(baseTime) {
		return 0, &rdrerr.InvalidGranuleStartError{PktIET: pktIET, BaseTime: int64(baseTime)}
	}
	delta := uint64(pktIET) - baseTime
	return (delta/granLen)*granLen + baseTime, nil
}

// GranuleID formats the CDFCB granule identifier:
// uppercase(sat_short_name) + zero-padded 12-digit decimal of
// (gran_iet - base_time)/100_000.
func GranuleID(satShortName string, baseTime, granIET uint64) string {
	n := (granIET - baseTime) / 100_000
	return upperASCII(satShortName) + padDecimal(n, 12)
}

func upperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return string(b)
}

func padDecimal(n uint64, width int) string {
	s := uitoa(n)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

func uitoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

type key struct {
	productID string
	granStart uint64
}

// Group is a completed emission: one primary RDR plus its time-overlapping
// packed RDRs, each already compiled (spec §4.5) into an immutable
// CompiledRdr before being handed to the consumer.
type Group struct {
	PrimaryProductID string
	Primary          *accumulator.CompiledRdr
	Packed           []*accumulator.CompiledRdr
}

// Collector is the streaming granule state machine described in spec §4.4.
type Collector struct {
	cfg config.Config

	apidToProduct map[uint16]config.ProductSpec
	primaryIDs    map[string]struct{}
	packedOf      map[string][]string // primary product_id -> packed product_ids

	primary map[key]*accumulator.RdrData
	packed  map[key]*accumulator.RdrData

	maxPrimaryGranLen uint64
	lastEmittedGran   uint64
	haveEmitted       bool
}

// New builds a Collector from a validated Config.
func New(cfg config.Config) *Collector {
	c := &Collector{
		cfg:           cfg,
		apidToProduct: make(map[uint16]config.ProductSpec),
		primaryIDs:    make(map[string]struct{}),
		packedOf:      make(map[string][]string),
		primary:       make(map[key]*accumulator.RdrData),
		packed:        make(map[key]*accumulator.RdrData),
	}
	for _, rdr := range cfg.Rdrs {
		c.primaryIDs[rdr.Product] = struct{}{}
		c.packedOf[rdr.Product] = rdr.PackedWith
	}
	for _, p := range cfg.Products {
		for _, a := range p.Apids {
			c.apidToProduct[a.Num] = p
		}
		if p.GranLen > c.maxPrimaryGranLen {
			if _, isPrimary := c.primaryIDs[p.ProductID]; isPrimary {
				c.maxPrimaryGranLen = p.GranLen
			}
		}
	}
	return c
}

// Add classifies and absorbs one packet observed at pktTimeIET. It returns
// a non-nil Group when adding this packet causes an older primary granule
// to become complete (spec §4.4 step 3's "second-to-last" rule).
func (c *Collector) Add(pktTimeIET int64, pkt accumulator.Packet) (*Group, error) {
	product, ok := c.apidToProduct[pkt.Apid]
	if !ok {
		// unconfigured APID: merged streams routinely carry these;
		// silently ignored per spec §7.
		tracef("dropping packet apid=%d: unconfigured", pkt.Apid)
		return nil, nil
	}

	gran, err := GranuleStart(pktTimeIET, product.GranLen, c.cfg.Satellite.BaseTime)
	if err != nil {
		return nil, err
	}

	_, isPrimary := c.primaryIDs[product.ProductID]
	if isPrimary {
		k := key{productID: product.ProductID, granStart: gran}
		acc, ok := c.primary[k]
		if !ok {
			acc = accumulator.New(c.cfg.Satellite, product, gran)
			c.primary[k] = acc
		}
		if err := acc.AddPacket(pktTimeIET, pkt); err != nil {
			return nil, err
		}

		if c.haveEmitted {
			c.evictStalePacked(c.lastEmittedGran)
		}

		staleKey := key{productID: product.ProductID, granStart: gran - 2*product.GranLen}
		if completing, ok := c.primary[staleKey]; ok {
			delete(c.primary, staleKey)
			return c.emit(product.ProductID, completing)
		}
		return nil, nil
	}

	k := key{productID: product.ProductID, granStart: gran}
	acc, ok := c.packed[k]
	if !ok {
		acc = accumulator.New(c.cfg.Satellite, product, gran)
		c.packed[k] = acc
	}
	if err := acc.AddPacket(pktTimeIET, pkt); err != nil {
		return nil, err
	}
	return nil, nil
}

// Finish flushes every remaining primary accumulator in ascending
// granule-time order, each paired with its overlapping packed granules.
func (c *Collector) Finish() ([]*Group, error) {
	type pending struct {
		k   key
		acc *accumulator.RdrData
	}
	var all []pending
	for k, acc := range c.primary {
		all = append(all, pending{k: k, acc: acc})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].k.granStart != all[j].k.granStart {
			return all[i].k.granStart < all[j].k.granStart
		}
		return all[i].k.productID < all[j].k.productID
	})

	var groups []*Group
	for _, p := range all {
		delete(c.primary, p.k)
		g, err := c.emit(p.k.productID, p.acc)
		if err != nil {
			return nil, err
		}
		if g != nil {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

// emit gathers overlapping packed granules (spec §4.5) and compiles the
// primary plus each packed accumulator on the spot, synchronously, before
// handing the Group to the consumer: a packed accumulator that survives
// in c.packed past this point (it's only removed by evictStalePacked, not
// by being gathered here) must never be aliased into the emitted Group, or
// the producer's later AddPacket calls on it would race the consumer
// reading it.
func (c *Collector) emit(primaryProductID string, primaryAcc *accumulator.RdrData) (*Group, error) {
	compiledPrimary, err := primaryAcc.CompileRdr()
	if err != nil {
		return nil, err
	}
	group := &Group{PrimaryProductID: primaryProductID, Primary: compiledPrimary}

	begin := primaryAcc.GranStart
	end := begin + primaryAcc.Product.GranLen

	for _, packedID := range c.packedOf[primaryProductID] {
		packedProduct, ok := c.cfg.GetProduct(packedID)
		if !ok {
			continue
		}
		for k, acc := range c.packed {
			if k.productID != packedID {
				continue
			}
			p := k.granStart
			if p > begin-packedProduct.GranLen && p < end {
				compiled, err := acc.CompileRdr()
				if err != nil {
					return nil, err
				}
				group.Packed = append(group.Packed, compiled)
			}
		}
	}

	sort.Slice(group.Packed, func(i, j int) bool {
		if group.Packed[i].Product.ProductID != group.Packed[j].Product.ProductID {
			return group.Packed[i].Product.ProductID < group.Packed[j].Product.ProductID
		}
		return group.Packed[i].GranStart < group.Packed[j].GranStart
	})

	if begin > c.lastEmittedGran || !c.haveEmitted {
		c.lastEmittedGran = begin
		c.haveEmitted = true
	}

	diagf("emitted granule product=%s start=%d packed=%d", primaryProductID, begin, len(group.Packed))
	return group, nil
}

// evictStalePacked drops packed accumulators whose granule time has
// fallen more than 2*maxPrimaryGranLen behind emittedGran, the start of
// the most recently emitted primary granule, resolving the source's
// "FIXME: clean up packed products" (spec §9).
func (c *Collector) evictStalePacked(emittedGran uint64) {
	if c.maxPrimaryGranLen == 0 {
		return
	}
	cutoff := int64(emittedGran) - 2*int64(c.maxPrimaryGranLen)
	if cutoff <= 0 {
		return
	}
	for k := range c.packed {
		if int64(k.granStart) < cutoff {
			delete(c.packed, k)
		}
	}
}
