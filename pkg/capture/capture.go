//go:build linux

// Package capture drives the userspace data plane: an AF_PACKET socket
// delivers every frame arriving on one interface, and each frame is run
// through the hook chain exactly as the XDP programs would see it.
//
// AF_PACKET taps frames the stack also receives, so a PASS verdict needs
// no action here; the hooks are observational in this mode apart from
// endpoint delivery on REDIRECT. The receive queue index is not exposed
// by AF_PACKET, so all frames present as queue 0.
package capture

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/irctrakz/xdpacer/pkg/core"
	"github.com/irctrakz/xdpacer/pkg/logging"
)

const maxFrameSize = 65536

// Stats counts what the source has seen, by final verdict.
type Stats struct {
	Frames     uint64
	Passed     uint64
	Redirected uint64
	Aborted    uint64
}

// Source reads frames from one interface and runs them through a hook.
type Source struct {
	fd      int
	ifindex uint32

	frames     atomic.Uint64
	passed     atomic.Uint64
	redirected atomic.Uint64
	aborted    atomic.Uint64
}

// Open binds a raw AF_PACKET socket to the named interface.
func Open(ifaceName string) (*Source, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("capture: lookup interface %q: %w", ifaceName, err)
	}

	proto := htons(unix.ETH_P_ALL)
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(proto))
	if err != nil {
		return nil, fmt.Errorf("capture: create AF_PACKET socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrLinklayer{
		Protocol: proto,
		Ifindex:  iface.Index,
	}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("capture: bind to %s: %w", ifaceName, err)
	}

	// A receive timeout keeps the loop responsive to cancellation
	// without an extra wakeup mechanism.
	tv := unix.Timeval{Sec: 1}
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("capture: set receive timeout: %w", err)
	}

	logging.Infof("capture source open on %s (ifindex %d)", ifaceName, iface.Index)
	return &Source{fd: fd, ifindex: uint32(iface.Index)}, nil
}

// Run feeds frames to hook until ctx is canceled. The frame buffer is
// reused across invocations; hooks must not retain it, which the frame
// contract already demands.
func (s *Source) Run(ctx context.Context, hook core.Hook) error {
	buf := make([]byte, maxFrameSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, _, err := unix.Recvfrom(s.fd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			if errors.Is(err, unix.EBADF) {
				return nil
			}
			return fmt.Errorf("capture: recvfrom: %w", err)
		}
		if n <= 0 {
			continue
		}

		s.frames.Add(1)
		frame := core.NewFrame(buf[:n], s.ifindex, 0)
		switch hook.Handle(frame) {
		case core.VerdictPass:
			s.passed.Add(1)
		case core.VerdictRedirect:
			s.redirected.Add(1)
		default:
			s.aborted.Add(1)
		}
	}
}

// Stats returns a snapshot of the verdict counters.
func (s *Source) Stats() Stats {
	return Stats{
		Frames:     s.frames.Load(),
		Passed:     s.passed.Load(),
		Redirected: s.redirected.Load(),
		Aborted:    s.aborted.Load(),
	}
}

// Close shuts the socket; a blocked Run returns soon after.
func (s *Source) Close() error {
	return unix.Close(s.fd)
}

func htons(v int) uint16 {
	return uint16(v)<<8 | uint16(v)>>8
}
