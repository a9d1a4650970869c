// Package config holds the per-spacecraft static data that parameterizes
// the collector and writer: APIDs per product, granule length, product
// identifiers, and the primary/packed "RDR" relationships. Config is
// loaded from a YAML file per spec; see SatSpec/ProductSpec/RdrSpec.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/jpss-rdr/rdrgen/internal/rdr/rdrerr"
	"gopkg.in/yaml.v3"
)

// MissionBaseTimeIET is the mission constant base time shared by all JPSS
// spacecraft, in IET microseconds.
const MissionBaseTimeIET uint64 = 1_698_019_234_000_000

// SatSpec describes a spacecraft.
type SatSpec struct {
	ID        string `yaml:"id"`
	ShortName string `yaml:"short_name"`
	BaseTime  uint64 `yaml:"base_time"`
	Mission   string `yaml:"mission"`
}

// ApidSpec describes one configured APID within a product.
type ApidSpec struct {
	Num         uint16 `yaml:"num"`
	Name        string `yaml:"name"`
	MaxExpected int    `yaml:"max_expected"`
}

// ProductSpec describes one RDR product type (e.g. a sensor science
// stream or the spacecraft diary).
type ProductSpec struct {
	ProductID string     `yaml:"product_id"`
	Sensor    string     `yaml:"sensor"`
	ShortName string     `yaml:"short_name"`
	TypeID    string     `yaml:"type_id"`
	GranLen   uint64     `yaml:"gran_len"`
	Apids     []ApidSpec `yaml:"apids"`
}

// GetApid returns the ApidSpec for num, if configured for this product.
func (p ProductSpec) GetApid(num uint16) (ApidSpec, bool) {
	for _, a := range p.Apids {
		if a.Num == num {
			return a, true
		}
	}
	return ApidSpec{}, false
}

// RdrSpec declares that a primary product's output RDR file must also
// carry all packed products' granules that overlap it in time.
type RdrSpec struct {
	Product   string   `yaml:"product"`
	PackedWith []string `yaml:"packed_with"`
}

// Config is the full per-satellite RDR configuration, as loaded from YAML.
type Config struct {
	Origin      string        `yaml:"origin"`
	Mode        string        `yaml:"mode"`
	Distributor string        `yaml:"distributor"`
	Satellite   SatSpec       `yaml:"satellite"`
	Products    []ProductSpec `yaml:"products"`
	Rdrs        []RdrSpec     `yaml:"rdrs"`
}

// GetProduct returns the ProductSpec with the given product_id.
func (c Config) GetProduct(productID string) (ProductSpec, bool) {
	for _, p := range c.Products {
		if p.ProductID == productID {
			return p, true
		}
	}
	return ProductSpec{}, false
}

func (c Config) validate() (Config, error) {
	ids := make(map[string]struct{}, len(c.Products))
	for _, p := range c.Products {
		ids[p.ProductID] = struct{}{}
	}
	for _, rdr := range c.Rdrs {
		for _, packedID := range rdr.PackedWith {
			if _, ok := ids[packedID]; !ok {
				return Config{}, &rdrerr.ConfigInvalidError{
					Reason: fmt.Sprintf("product %s has invalid packed product %s", rdr.Product, packedID),
				}
			}
		}
	}
	return c, nil
}

// Load reads and validates a Config from a YAML file at path.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, &rdrerr.IoError{Op: "open config", Err: err}
	}
	defer f.Close()
	return LoadReader(f)
}

// LoadReader reads and validates a Config from r.
func LoadReader(r io.Reader) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&c); err != nil {
		return Config{}, &rdrerr.ConfigInvalidError{Reason: err.Error()}
	}
	return c.validate()
}

// satelliteCodeMap maps a spacecraft id to its CDFCB-mandated numeric
// code, used by the PDS filename builder.
var satelliteCodeMap = map[string]int{
	"npp": 157,
	"j01": 159,
	"j02": 177,
	"j03": 178,
	"j04": 179,
}

// SpacecraftCode returns the CDFCB spacecraft code for satid, or 0 if
// unknown.
func SpacecraftCode(satid string) int {
	if c, ok := satelliteCodeMap[satid]; ok {
		return c
	}
	return 0
}

// Default returns the built-in Config for one of the five JPSS spacecraft
// (npp, j01, j02, j03, j04), or false if satid is not recognized.
func Default(satid string) (Config, bool) {
	c, ok := defaultConfigs[satid]
	return c, ok
}
