package redirect

import "github.com/irctrakz/xdpacer/pkg/core"

// Dispatcher redirects frames arriving on bound queues to their socket
// endpoint and passes everything else to the stack. Frame content is never
// inspected; only the receive queue index is consulted.
type Dispatcher struct {
	table *Table
}

// NewDispatcher returns a dispatcher over table.
func NewDispatcher(table *Table) *Dispatcher {
	return &Dispatcher{table: table}
}

// Handle implements core.Hook. A table miss yields VerdictPass. On a hit
// the endpoint's verdict is returned verbatim, failure included; there is
// no retry and no fallback to the stack.
func (d *Dispatcher) Handle(frame *core.Frame) core.Verdict {
	ep := d.table.Lookup(frame.RxQueue())
	if ep == nil {
		return core.VerdictPass
	}
	return ep.Redirect(frame)
}
