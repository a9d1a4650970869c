// Package rdrerr defines the error taxonomy shared by the RDR collector,
// codec, and writer/reader packages.
package rdrerr

import "fmt"

// ConfigInvalidError reports malformed YAML or a packed_with reference to
// an unknown product. Fatal at startup.
type ConfigInvalidError struct {
	Reason string
}

func (e *ConfigInvalidError) Error() string {
	return fmt.Sprintf("config invalid: %s", e.Reason)
}

// InvalidGranuleStartError reports a derived granule time preceding the
// mission base time.
type InvalidGranuleStartError struct {
	PktIET, BaseTime int64
}

func (e *InvalidGranuleStartError) Error() string {
	return fmt.Sprintf("invalid granule start: packet iet %d precedes base time %d", e.PktIET, e.BaseTime)
}

// InvalidPacketApidError reports a packet whose APID is routed to a
// product but is not in that product's configured APID list.
type InvalidPacketApidError struct {
	Apid      uint16
	ProductID string
}

func (e *InvalidPacketApidError) Error() string {
	return fmt.Sprintf("apid %d is not configured for product %s", e.Apid, e.ProductID)
}

// InvalidPacketError reports a packet whose size or observation time
// overflows the codec's integer fields.
type InvalidPacketError struct {
	Reason string
}

func (e *InvalidPacketError) Error() string {
	return fmt.Sprintf("invalid packet: %s", e.Reason)
}

// Kind identifies which fixed-layout structure a NotEnoughBytesError refers to.
type Kind string

const (
	KindStaticHeader  Kind = "static_header"
	KindApidInfo      Kind = "apid_info"
	KindPacketTracker Kind = "packet_tracker"
)

// NotEnoughBytesError reports a decoder given a short buffer.
type NotEnoughBytesError struct {
	Kind     Kind
	Need, Got int
}

func (e *NotEnoughBytesError) Error() string {
	return fmt.Sprintf("not enough bytes for %s: need %d, got %d", e.Kind, e.Need, e.Got)
}

// Hdf5Error wraps a native HDF5 error or reference-creation failure.
type Hdf5Error struct {
	Op  string
	Err error
}

func (e *Hdf5Error) Error() string {
	return fmt.Sprintf("hdf5 %s: %v", e.Op, e.Err)
}

func (e *Hdf5Error) Unwrap() error { return e.Err }

// IoError wraps a file system or channel error.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("io %s: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }
