package core

import (
	"bytes"
	"testing"
)

// TestFrameBytes tests the checked window access over a frame.
func TestFrameBytes(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	frame := NewFrame(data, 3, 1)

	// In-bounds fetch returns the exact window.
	got, ok := frame.Bytes(2, 4)
	if !ok {
		t.Fatal("expected in-bounds fetch to succeed")
	}
	if !bytes.Equal(got, []byte{0x03, 0x04, 0x05, 0x06}) {
		t.Errorf("unexpected window contents: %v", got)
	}

	// A fetch ending exactly at the frame end succeeds.
	if _, ok := frame.Bytes(4, 4); !ok {
		t.Error("fetch ending at frame end should succeed")
	}

	// Any range extending past the end fails.
	if _, ok := frame.Bytes(4, 5); ok {
		t.Error("fetch past frame end should fail")
	}
	if _, ok := frame.Bytes(8, 1); ok {
		t.Error("fetch starting at frame end should fail")
	}

	// Negative offsets and lengths fail outright.
	if _, ok := frame.Bytes(-1, 2); ok {
		t.Error("negative offset should fail")
	}
	if _, ok := frame.Bytes(0, -1); ok {
		t.Error("negative length should fail")
	}

	// Zero-length fetch at the end is a valid empty window.
	if _, ok := frame.Bytes(8, 0); !ok {
		t.Error("zero-length fetch at frame end should succeed")
	}
}

// TestFrameBytesOverflowResistance checks that a huge offset/length pair
// cannot wrap around the bounds check.
func TestFrameBytesOverflowResistance(t *testing.T) {
	frame := NewFrame(make([]byte, 64), 1, 0)

	huge := int(^uint(0) >> 1) // max int
	if _, ok := frame.Bytes(huge, huge); ok {
		t.Error("max int offset+length must not pass the bounds check")
	}
	if _, ok := frame.Bytes(1, huge); ok {
		t.Error("max int length must not pass the bounds check")
	}
}

func TestFrameUint16BE(t *testing.T) {
	frame := NewFrame([]byte{0x00, 0x08, 0x00}, 1, 0)

	v, ok := frame.Uint16BE(1)
	if !ok {
		t.Fatal("in-bounds read should succeed")
	}
	if v != 0x0800 {
		t.Errorf("expected 0x0800, got %#04x", v)
	}

	if _, ok := frame.Uint16BE(2); ok {
		t.Error("read straddling frame end should fail")
	}
}

func TestFrameMetadata(t *testing.T) {
	frame := NewFrame(make([]byte, 14), 42, 7)
	if frame.Ifindex() != 42 {
		t.Errorf("ifindex: got %d, want 42", frame.Ifindex())
	}
	if frame.RxQueue() != 7 {
		t.Errorf("rx queue: got %d, want 7", frame.RxQueue())
	}
	if frame.Len() != 14 {
		t.Errorf("length: got %d, want 14", frame.Len())
	}
}

func TestVerdictString(t *testing.T) {
	cases := map[Verdict]string{
		VerdictPass:     "PASS",
		VerdictRedirect: "REDIRECT",
		VerdictAborted:  "ABORTED",
		Verdict(99):     "UNKNOWN",
	}
	for v, want := range cases {
		if got := v.String(); got != want {
			t.Errorf("Verdict(%d).String() = %q, want %q", int(v), got, want)
		}
	}
}
