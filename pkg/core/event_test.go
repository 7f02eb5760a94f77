package core

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// TestEventLayout pins the 24-byte record layout shared with the kernel
// program: ifindex at 0, family at 4, address bytes at 8.
func TestEventLayout(t *testing.T) {
	ev := AddressEvent{Ifindex: 0x01020304, Family: FamilyIPv6}
	for i := range ev.Addr {
		ev.Addr[i] = byte(0xA0 + i)
	}

	buf := make([]byte, EventSize)
	ev.Encode(buf)

	if got := binary.NativeEndian.Uint32(buf[0:4]); got != 0x01020304 {
		t.Errorf("ifindex field: got %#08x", got)
	}
	if got := binary.NativeEndian.Uint32(buf[4:8]); got != 1 {
		t.Errorf("family field: got %d, want 1", got)
	}
	if !bytes.Equal(buf[8:24], ev.Addr[:]) {
		t.Errorf("address bytes: got %v", buf[8:24])
	}
}

func TestEventRoundTrip(t *testing.T) {
	in := AddressEvent{Ifindex: 7, Family: FamilyIPv4}
	copy(in.Addr[:], []byte{192, 168, 1, 1})

	buf := make([]byte, EventSize)
	in.Encode(buf)

	var out AddressEvent
	if err := DecodeEvent(buf, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestDecodeEventTruncated(t *testing.T) {
	var ev AddressEvent
	if err := DecodeEvent(make([]byte, EventSize-1), &ev); err == nil {
		t.Error("expected error for truncated record")
	}
}

func TestEventSourceAddr(t *testing.T) {
	v4 := AddressEvent{Family: FamilyIPv4}
	copy(v4.Addr[:], []byte{10, 0, 0, 1})
	if got := v4.SourceAddr().String(); got != "10.0.0.1" {
		t.Errorf("IPv4 source: got %s", got)
	}

	v6 := AddressEvent{Family: FamilyIPv6}
	v6.Addr[0] = 0xfe
	v6.Addr[1] = 0x80
	v6.Addr[15] = 0x01
	if got := v6.SourceAddr().String(); got != "fe80::1" {
		t.Errorf("IPv6 source: got %s", got)
	}
}

func TestFamilyString(t *testing.T) {
	if FamilyIPv4.String() != "ipv4" || FamilyIPv6.String() != "ipv6" {
		t.Error("unexpected family names")
	}
}
