// Package redirect implements the socket-redirect half of the data plane:
// a fixed table mapping receive queues to socket endpoints, and the hook
// that consults it.
package redirect

import (
	"fmt"
	"sync/atomic"

	"github.com/irctrakz/xdpacer/pkg/core"
)

// MaxQueues is the number of table slots, matching the kernel XSK map.
const MaxQueues = 64

// Endpoint is an opaque socket endpoint that redirected frames are
// delivered to. The verdict it returns is final: VerdictRedirect when the
// frame was accepted, or the endpoint's failure code (typically
// VerdictAborted) when it had no room.
type Endpoint interface {
	Redirect(frame *core.Frame) core.Verdict
}

// Table maps queue indexes to endpoints. The read path is a single atomic
// load, safe under concurrent per-queue frame processing; writes belong to
// the control plane and are infrequent. An empty slot is a normal state,
// meaning no socket is bound to that queue yet.
type Table struct {
	slots [MaxQueues]atomic.Pointer[Endpoint]
}

// NewTable returns an empty table.
func NewTable() *Table { return &Table{} }

// Lookup returns the endpoint bound to queue, or nil.
func (t *Table) Lookup(queue uint32) Endpoint {
	if queue >= MaxQueues {
		return nil
	}
	if ep := t.slots[queue].Load(); ep != nil {
		return *ep
	}
	return nil
}

// Bind installs ep as the redirect target for queue.
func (t *Table) Bind(queue uint32, ep Endpoint) error {
	if queue >= MaxQueues {
		return fmt.Errorf("redirect: queue %d out of range (max %d)", queue, MaxQueues-1)
	}
	if ep == nil {
		return fmt.Errorf("redirect: nil endpoint for queue %d", queue)
	}
	t.slots[queue].Store(&ep)
	return nil
}

// Unbind clears the slot for queue. Unbinding an empty slot is a no-op.
func (t *Table) Unbind(queue uint32) {
	if queue < MaxQueues {
		t.slots[queue].Store(nil)
	}
}
