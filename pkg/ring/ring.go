// Package ring implements the bounded multi-producer, single-consumer
// event channel used by the userspace data plane. It follows the BPF ring
// buffer producer protocol: space is reserved up front, populated, and
// only made visible to the consumer on commit. A reservation that is
// discarded, or never committed, is never seen by the consumer.
package ring

import (
	"context"
	"errors"
	"sync/atomic"
)

// DefaultCapacity matches the kernel ring: 1 MiB of record data.
const DefaultCapacity = 1 << 20

// recordAlign is the accounting granularity. Reservations are charged in
// 8-byte units, the same alignment the kernel ring buffer applies, which
// also bounds the number of records that can be outstanding at once.
const recordAlign = 8

// ErrClosed is returned by Read after Close.
var ErrClosed = errors.New("ring: closed")

// Ring is a byte-capacity-bounded queue of variable-size records.
//
// Producers call Reserve, fill the reservation, and Commit. Reserve and
// Commit never block; Reserve fails immediately when the free capacity is
// insufficient. Any number of producers may operate concurrently. Commit
// order across concurrent producers is whichever commit lands first on the
// shared queue; within one producer it is program order.
//
// A single consumer drains committed records with Read. Capacity is
// released only once the record has been fully handed to the consumer.
type Ring struct {
	capacity int64
	free     atomic.Int64
	records  chan []byte
	closed   atomic.Bool
	done     chan struct{}
}

// New creates a ring with the given byte capacity. Capacities below one
// accounting unit are rejected by Reserve, so New never fails.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	r := &Ring{
		capacity: int64(capacity),
		// Every outstanding record holds at least recordAlign bytes of
		// capacity, so the queue can never have more entries than this
		// and a commit send never blocks.
		records: make(chan []byte, capacity/recordAlign),
		done:    make(chan struct{}),
	}
	r.free.Store(int64(capacity))
	return r
}

// Capacity returns the configured byte capacity.
func (r *Ring) Capacity() int { return int(r.capacity) }

// Free returns the bytes currently available for reservation.
func (r *Ring) Free() int { return int(r.free.Load()) }

// Reservation is writable space in the ring that is invisible to the
// consumer until committed. Exactly one of Commit or Discard must be
// called; afterwards the reservation, including its buffer, must not be
// touched again.
type Reservation struct {
	ring  *Ring
	buf   []byte
	alloc int64
	spent bool
}

// Bytes returns the record buffer to populate before Commit.
func (res *Reservation) Bytes() []byte { return res.buf }

// Reserve claims size bytes of capacity. It returns ok=false without
// blocking when the ring is closed, the size is invalid, or insufficient
// capacity remains; the caller is expected to treat that as a silent drop.
func (r *Ring) Reserve(size int) (*Reservation, bool) {
	if size <= 0 || r.closed.Load() {
		return nil, false
	}
	alloc := int64((size + recordAlign - 1) &^ (recordAlign - 1))
	if alloc > r.capacity {
		return nil, false
	}
	if r.free.Add(-alloc) < 0 {
		r.free.Add(alloc)
		return nil, false
	}
	return &Reservation{ring: r, buf: make([]byte, size), alloc: alloc}, true
}

// Commit makes the record visible to the consumer.
func (res *Reservation) Commit() {
	if res.spent {
		return
	}
	res.spent = true
	r := res.ring
	if r.closed.Load() {
		// Consumer is gone; the capacity no longer matters but keep the
		// accounting consistent for Free().
		r.free.Add(res.alloc)
		return
	}
	// Guaranteed room: see the channel sizing in New.
	r.records <- res.buf
}

// Discard returns the reserved capacity without publishing anything.
func (res *Reservation) Discard() {
	if res.spent {
		return
	}
	res.spent = true
	res.ring.free.Add(res.alloc)
}

// Read blocks until a committed record is available and returns it,
// releasing its capacity. The returned buffer is owned by the caller.
func (r *Ring) Read(ctx context.Context) ([]byte, error) {
	select {
	case rec := <-r.records:
		r.free.Add(int64((len(rec) + recordAlign - 1) &^ (recordAlign - 1)))
		return rec, nil
	default:
	}
	select {
	case rec := <-r.records:
		r.free.Add(int64((len(rec) + recordAlign - 1) &^ (recordAlign - 1)))
		return rec, nil
	case <-r.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the ring. In-flight commits are dropped; Read returns
// ErrClosed once the queue is empty. Close is idempotent.
func (r *Ring) Close() error {
	if r.closed.CompareAndSwap(false, true) {
		close(r.done)
	}
	return nil
}
