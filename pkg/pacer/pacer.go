// Package pacer implements the address-extraction hook: a passive tap
// that parses Ethernet and IP headers under strict bounds validation and
// publishes the source address of every IPv4/IPv6 frame into a bounded
// event ring. It never mutates, delays, or drops a frame.
package pacer

import (
	"context"
	"errors"

	"github.com/irctrakz/xdpacer/pkg/core"
	"github.com/irctrakz/xdpacer/pkg/ring"
)

// Header geometry. Only fixed-size leading headers are read; options and
// extension headers are beyond what extraction needs.
const (
	ethHeaderLen  = 14
	ipv4HeaderLen = 20
	ipv6HeaderLen = 40

	etherTypeOffset = 12
	etherTypeIPv4   = 0x0800
	etherTypeIPv6   = 0x86DD

	ipv4SrcOffset = 12 // within the IPv4 header
	ipv6SrcOffset = 8  // within the IPv6 header
)

// Pacer extracts source addresses into a ring. Every failure mode -
// truncated frame, non-IP EtherType, full ring - degrades to VerdictPass
// with no event and no other side effect.
type Pacer struct {
	ring *ring.Ring
}

// New returns a pacer publishing into r.
func New(r *ring.Ring) *Pacer {
	return &Pacer{ring: r}
}

// Ring returns the ring this pacer publishes into.
func (p *Pacer) Ring() *ring.Ring { return p.ring }

// Handle implements core.Hook. The verdict is always VerdictPass:
// extraction is purely observational and the frame continues to the stack
// untouched whether or not an event was emitted.
func (p *Pacer) Handle(frame *core.Frame) core.Verdict {
	if _, ok := frame.Bytes(0, ethHeaderLen); !ok {
		return core.VerdictPass
	}
	proto, ok := frame.Uint16BE(etherTypeOffset)
	if !ok {
		return core.VerdictPass
	}
	switch proto {
	case etherTypeIPv4:
		p.extract(frame, core.FamilyIPv4, ipv4HeaderLen, ethHeaderLen+ipv4SrcOffset, 4)
	case etherTypeIPv6:
		p.extract(frame, core.FamilyIPv6, ipv6HeaderLen, ethHeaderLen+ipv6SrcOffset, 16)
	}
	return core.VerdictPass
}

// extract validates the IP header window, then reserves, populates, and
// commits one event. A failed reservation means the consumer is behind;
// the event is dropped silently in favor of keeping the fast path fast.
func (p *Pacer) extract(frame *core.Frame, family core.Family, hdrLen, srcOff, srcLen int) {
	if _, ok := frame.Bytes(ethHeaderLen, hdrLen); !ok {
		return
	}
	src, ok := frame.Bytes(srcOff, srcLen)
	if !ok {
		return
	}
	res, ok := p.ring.Reserve(core.EventSize)
	if !ok {
		return
	}
	var ev core.AddressEvent
	ev.Ifindex = frame.Ifindex()
	ev.Family = family
	copy(ev.Addr[:], src)
	ev.Encode(res.Bytes())
	res.Commit()
}

// RingSource adapts a ring of encoded address events to core.EventSource,
// giving the consumer one drain interface for both data planes.
type RingSource struct {
	ring *ring.Ring
}

// NewRingSource returns a source draining r.
func NewRingSource(r *ring.Ring) *RingSource {
	return &RingSource{ring: r}
}

// Read implements core.EventSource.
func (s *RingSource) Read(ctx context.Context) (core.AddressEvent, error) {
	var ev core.AddressEvent
	rec, err := s.ring.Read(ctx)
	if err != nil {
		if errors.Is(err, ring.ErrClosed) {
			return ev, core.ErrSourceClosed
		}
		return ev, err
	}
	if err := core.DecodeEvent(rec, &ev); err != nil {
		return ev, err
	}
	return ev, nil
}

// Close implements core.EventSource.
func (s *RingSource) Close() error { return s.ring.Close() }
