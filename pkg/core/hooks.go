package core

import (
	"context"
	"errors"
)

// ErrSourceClosed is returned by EventSource.Read once the source has
// been closed, regardless of which data plane backs it.
var ErrSourceClosed = errors.New("event source closed")

// Hook processes one frame and returns a verdict. Implementations must be
// safe for concurrent invocation (one frame per receive queue may be in
// flight on every processor), must never block, and must not retain the
// frame past the call.
type Hook interface {
	Handle(frame *Frame) Verdict
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(frame *Frame) Verdict

// Handle implements Hook.
func (fn HookFunc) Handle(frame *Frame) Verdict { return fn(frame) }

// Chain runs hooks in order and stops at the first verdict that is not
// VerdictPass. A redirected frame bypasses the stack, so hooks later in
// the chain never see it, matching the behavior of stacked hook programs
// on one interface.
type Chain []Hook

// Handle implements Hook.
func (c Chain) Handle(frame *Frame) Verdict {
	for _, h := range c {
		if v := h.Handle(frame); v != VerdictPass {
			return v
		}
	}
	return VerdictPass
}

// EventSource is the consumer side of an event channel, independent of
// whether the producer is the kernel ring or the userspace ring.
type EventSource interface {
	// Read blocks until the next committed event is available, the source
	// is closed, or ctx is canceled.
	Read(ctx context.Context) (AddressEvent, error)

	// Close releases the source. Pending and subsequent Reads fail.
	Close() error
}
