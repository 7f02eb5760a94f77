package redirect

import "github.com/irctrakz/xdpacer/pkg/core"

// EndpointFunc adapts a function to the Endpoint interface.
type EndpointFunc func(frame *core.Frame) core.Verdict

// Redirect implements Endpoint.
func (fn EndpointFunc) Redirect(frame *core.Frame) core.Verdict { return fn(frame) }

// QueueEndpoint is the userspace analog of an AF_XDP socket: a bounded
// in-process queue an external consumer drains. A full queue is reported
// as VerdictAborted, the same "no room at destination" failure the kernel
// redirect primitive yields, and the frame is not queued.
//
// Frames are copied on delivery because the hook's frame window is only
// valid for the invocation that produced it.
type QueueEndpoint struct {
	frames chan []byte
}

// NewQueueEndpoint creates an endpoint holding at most depth frames.
func NewQueueEndpoint(depth int) *QueueEndpoint {
	if depth <= 0 {
		depth = 256
	}
	return &QueueEndpoint{frames: make(chan []byte, depth)}
}

// Redirect implements Endpoint.
func (q *QueueEndpoint) Redirect(frame *core.Frame) core.Verdict {
	data, ok := frame.Bytes(0, frame.Len())
	if !ok {
		return core.VerdictAborted
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case q.frames <- buf:
		return core.VerdictRedirect
	default:
		return core.VerdictAborted
	}
}

// Frames exposes the consumer side of the queue.
func (q *QueueEndpoint) Frames() <-chan []byte { return q.frames }
