package core

// Verdict is the decision a hook returns for a frame. The values mirror
// the XDP action codes so the userspace and kernel data planes agree.
type Verdict int

const (
	// VerdictAborted signals a failed redirect. It is never produced by
	// classification itself, only propagated from a redirect target.
	VerdictAborted Verdict = 0

	// VerdictPass hands the frame to the normal network stack.
	VerdictPass Verdict = 2

	// VerdictRedirect hands the frame to a resolved socket endpoint.
	VerdictRedirect Verdict = 4
)

// String returns a short name for the verdict.
func (v Verdict) String() string {
	switch v {
	case VerdictAborted:
		return "ABORTED"
	case VerdictPass:
		return "PASS"
	case VerdictRedirect:
		return "REDIRECT"
	default:
		return "UNKNOWN"
	}
}

// Frame is the bounded byte window for one received link-layer packet,
// together with the receive metadata the hook point supplies. It is valid
// only for the duration of a single hook invocation; hooks must not retain
// the frame or any slice obtained from it.
//
// There is no way to reach the underlying buffer except through Bytes,
// which validates the requested range before any byte is touched.
type Frame struct {
	data    []byte
	ifindex uint32
	rxQueue uint32
}

// NewFrame wraps data as a frame received on the given ingress interface
// and receive queue. The buffer is not copied; the caller owns it and must
// not reuse it until the hook invocation returns.
func NewFrame(data []byte, ifindex, rxQueue uint32) *Frame {
	return &Frame{data: data, ifindex: ifindex, rxQueue: rxQueue}
}

// Len returns the frame length in bytes.
func (f *Frame) Len() int { return len(f.data) }

// Ifindex returns the ingress interface index.
func (f *Frame) Ifindex() uint32 { return f.ifindex }

// RxQueue returns the receive queue the frame arrived on.
func (f *Frame) RxQueue() uint32 { return f.rxQueue }

// Bytes returns the n bytes starting at off, or ok=false when the range
// falls outside the frame. The check happens before any access; callers
// never see a slice that extends past the frame window.
func (f *Frame) Bytes(off, n int) ([]byte, bool) {
	if off < 0 || n < 0 || off > len(f.data)-n {
		return nil, false
	}
	return f.data[off : off+n], true
}

// Uint16BE reads a big-endian 16-bit field at off with the same bounds
// checking as Bytes. Link and network header fields are big-endian on the
// wire.
func (f *Frame) Uint16BE(off int) (uint16, bool) {
	b, ok := f.Bytes(off, 2)
	if !ok {
		return 0, false
	}
	return uint16(b[0])<<8 | uint16(b[1]), true
}
