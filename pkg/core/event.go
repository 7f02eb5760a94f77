package core

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// Family identifies the network-layer address family of an AddressEvent.
// The numeric values are part of the 24-byte record layout shared with the
// kernel data plane.
type Family uint32

const (
	FamilyIPv4 Family = 0
	FamilyIPv6 Family = 1
)

// String returns "ipv4" or "ipv6".
func (fam Family) String() string {
	switch fam {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return fmt.Sprintf("family(%d)", uint32(fam))
	}
}

// EventSize is the fixed encoded size of an AddressEvent: ifindex (4),
// family (4), address (16).
const EventSize = 24

// AddressEvent is one extracted source-address record. For FamilyIPv4 only
// the first 4 bytes of Addr are meaningful; the rest are zero.
type AddressEvent struct {
	Ifindex uint32
	Family  Family
	Addr    [16]byte
}

// SourceAddr returns the source address as a netip.Addr.
func (e *AddressEvent) SourceAddr() netip.Addr {
	if e.Family == FamilyIPv4 {
		return netip.AddrFrom4([4]byte(e.Addr[:4]))
	}
	return netip.AddrFrom16(e.Addr)
}

// String renders the event for logs.
func (e *AddressEvent) String() string {
	return fmt.Sprintf("ifindex=%d %s src=%s", e.Ifindex, e.Family, e.SourceAddr())
}

// Encode writes the 24-byte record into dst. The integer fields are
// native-endian, matching what the kernel program writes into its ring.
// dst must be at least EventSize bytes.
func (e *AddressEvent) Encode(dst []byte) {
	_ = dst[EventSize-1]
	binary.NativeEndian.PutUint32(dst[0:4], e.Ifindex)
	binary.NativeEndian.PutUint32(dst[4:8], uint32(e.Family))
	copy(dst[8:24], e.Addr[:])
}

// DecodeEvent parses a 24-byte record produced by either data plane.
func DecodeEvent(src []byte, e *AddressEvent) error {
	if len(src) < EventSize {
		return fmt.Errorf("address event truncated: %d bytes, need %d", len(src), EventSize)
	}
	e.Ifindex = binary.NativeEndian.Uint32(src[0:4])
	e.Family = Family(binary.NativeEndian.Uint32(src[4:8]))
	copy(e.Addr[:], src[8:24])
	return nil
}
