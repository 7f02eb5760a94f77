//go:build linux

package xdp

import (
	"context"
	"errors"
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/ringbuf"

	"github.com/irctrakz/xdpacer/pkg/core"
)

// Reader drains 24-byte address records from the kernel ring buffer and
// decodes them. It implements core.EventSource.
type Reader struct {
	rd *ringbuf.Reader
}

func newReader(events *ebpf.Map) (*Reader, error) {
	rd, err := ringbuf.NewReader(events)
	if err != nil {
		return nil, fmt.Errorf("open ring buffer reader: %w", err)
	}
	return &Reader{rd: rd}, nil
}

// Read blocks until the next record is committed by the kernel. It
// returns core.ErrSourceClosed after Close; cancellation of ctx is
// honored between records by closing the reader from another goroutine,
// which is how the daemon shuts the drain loop down.
func (r *Reader) Read(ctx context.Context) (core.AddressEvent, error) {
	var ev core.AddressEvent
	if err := ctx.Err(); err != nil {
		return ev, err
	}
	rec, err := r.rd.Read()
	if err != nil {
		if errors.Is(err, ringbuf.ErrClosed) {
			return ev, core.ErrSourceClosed
		}
		return ev, fmt.Errorf("ring buffer read: %w", err)
	}
	if err := core.DecodeEvent(rec.RawSample, &ev); err != nil {
		return ev, err
	}
	return ev, nil
}

// Close unblocks any pending Read and releases the reader.
func (r *Reader) Close() error { return r.rd.Close() }
