package redirect

import (
	"sync"
	"testing"

	"github.com/irctrakz/xdpacer/pkg/core"
)

// countingEndpoint records redirected frames and answers with a fixed
// verdict, standing in for a socket endpoint.
type countingEndpoint struct {
	verdict core.Verdict
	frames  int
}

func (e *countingEndpoint) Redirect(frame *core.Frame) core.Verdict {
	e.frames++
	return e.verdict
}

func TestTableBindLookupUnbind(t *testing.T) {
	table := NewTable()

	if ep := table.Lookup(5); ep != nil {
		t.Fatal("empty table should miss")
	}

	ep := &countingEndpoint{verdict: core.VerdictRedirect}
	if err := table.Bind(5, ep); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if got := table.Lookup(5); got != ep {
		t.Error("lookup should return the bound endpoint")
	}
	if got := table.Lookup(6); got != nil {
		t.Error("adjacent queue should miss")
	}

	table.Unbind(5)
	if got := table.Lookup(5); got != nil {
		t.Error("lookup after unbind should miss")
	}
	table.Unbind(5) // no-op
}

func TestTableBounds(t *testing.T) {
	table := NewTable()
	ep := &countingEndpoint{}

	if err := table.Bind(MaxQueues, ep); err == nil {
		t.Error("bind beyond last slot should fail")
	}
	if err := table.Bind(MaxQueues-1, ep); err != nil {
		t.Errorf("bind to last slot: %v", err)
	}
	if err := table.Bind(3, nil); err == nil {
		t.Error("nil endpoint should be rejected")
	}
	if got := table.Lookup(uint32(MaxQueues + 100)); got != nil {
		t.Error("out-of-range lookup should miss, not panic")
	}
}

// TestDispatcherMiss checks that frames on unbound queues always pass,
// regardless of content.
func TestDispatcherMiss(t *testing.T) {
	d := NewDispatcher(NewTable())

	for _, data := range [][]byte{nil, {0x01}, make([]byte, 1500)} {
		frame := core.NewFrame(data, 1, 9)
		if v := d.Handle(frame); v != core.VerdictPass {
			t.Errorf("miss verdict: got %s, want PASS", v)
		}
	}
}

// TestDispatcherHit checks that the endpoint's verdict is returned
// verbatim, including failure, with no retry or fallback.
func TestDispatcherHit(t *testing.T) {
	for _, verdict := range []core.Verdict{core.VerdictRedirect, core.VerdictAborted} {
		table := NewTable()
		ep := &countingEndpoint{verdict: verdict}
		if err := table.Bind(2, ep); err != nil {
			t.Fatalf("bind: %v", err)
		}
		d := NewDispatcher(table)

		const frames = 10
		for i := 0; i < frames; i++ {
			frame := core.NewFrame(make([]byte, i), 1, 2)
			if v := d.Handle(frame); v != verdict {
				t.Fatalf("hit verdict: got %s, want %s", v, verdict)
			}
		}
		if ep.frames != frames {
			t.Errorf("endpoint saw %d frames, want %d", ep.frames, frames)
		}
	}
}

// TestDispatcherIgnoresContent runs frames of every shape through a bound
// queue: the dispatcher consults only the queue index.
func TestDispatcherIgnoresContent(t *testing.T) {
	table := NewTable()
	ep := &countingEndpoint{verdict: core.VerdictRedirect}
	table.Bind(0, ep)
	d := NewDispatcher(table)

	junk := [][]byte{
		{},
		{0xde, 0xad},
		append(make([]byte, 14), 0xff), // truncated "IP"
	}
	for _, data := range junk {
		if v := d.Handle(core.NewFrame(data, 1, 0)); v != core.VerdictRedirect {
			t.Errorf("verdict depended on frame content: %s", v)
		}
	}
}

// TestTableConcurrentLookup exercises lookups racing a control-plane
// rebind; the race detector is the real assertion here.
func TestTableConcurrentLookup(t *testing.T) {
	table := NewTable()
	ep := &countingEndpoint{verdict: core.VerdictRedirect}
	table.Bind(1, ep)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					table.Lookup(1)
				}
			}
		}()
	}
	for i := 0; i < 1000; i++ {
		table.Bind(1, &countingEndpoint{verdict: core.VerdictRedirect})
		table.Unbind(1)
	}
	close(stop)
	wg.Wait()
}

func TestQueueEndpoint(t *testing.T) {
	ep := NewQueueEndpoint(1)
	frame := core.NewFrame([]byte{1, 2, 3}, 1, 0)

	if v := ep.Redirect(frame); v != core.VerdictRedirect {
		t.Fatalf("first redirect: got %s", v)
	}
	// Queue full: failure propagates as ABORTED, frame not queued.
	if v := ep.Redirect(frame); v != core.VerdictAborted {
		t.Fatalf("full queue: got %s, want ABORTED", v)
	}

	got := <-ep.Frames()
	if len(got) != 3 || got[0] != 1 {
		t.Errorf("unexpected delivered frame: %v", got)
	}
	select {
	case extra := <-ep.Frames():
		t.Errorf("rejected frame was queued: %v", extra)
	default:
	}
}
