//go:build linux

// Package xsk implements a minimal AF_XDP receive socket. The kernel
// redirect program delivers frames for a bound queue straight into this
// socket's UMEM, bypassing the network stack.
//
// Ring terminology, kernel to userspace:
//   - FILL ring: UMEM frame addresses userspace hands the kernel for RX.
//   - RX ring: descriptors for frames the kernel delivered.
//
// Only the receive half is implemented; the system never transmits.
package xsk

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Config sizes the socket. Ring sizes must be powers of two; zero fields
// take defaults.
type Config struct {
	// QueueID is the NIC receive queue to bind to.
	QueueID uint32
	// NumFrames is the number of UMEM frames allocated.
	NumFrames uint32
	// FrameSize is the size of each UMEM frame in bytes.
	FrameSize uint32
	// RxSize is the number of RX ring descriptors.
	RxSize uint32
	// FillSize is the number of FILL ring entries.
	FillSize uint32
}

const (
	defaultNumFrames = 4096
	defaultFrameSize = 2048
	defaultRingSize  = 2048
)

func (c *Config) applyDefaults() error {
	if c.NumFrames == 0 {
		c.NumFrames = defaultNumFrames
	}
	if c.FrameSize == 0 {
		c.FrameSize = defaultFrameSize
	}
	if c.RxSize == 0 {
		c.RxSize = defaultRingSize
	}
	if c.FillSize == 0 {
		c.FillSize = defaultRingSize
	}
	for _, n := range []uint32{c.RxSize, c.FillSize} {
		if n&(n-1) != 0 {
			return fmt.Errorf("xsk: ring size %d is not a power of two", n)
		}
	}
	// Frames are reissued to the FILL ring round-robin, so the UMEM must
	// cover everything that can be outstanding in both rings at once.
	if c.NumFrames < c.RxSize+c.FillSize {
		return fmt.Errorf("xsk: NumFrames %d below RxSize+FillSize %d", c.NumFrames, c.RxSize+c.FillSize)
	}
	return nil
}

// ring is one mmap'd AF_XDP ring: shared producer/consumer cursors plus
// the descriptor area. The cached cursor cuts down on atomic loads of the
// shared one, same as the kernel's own libxdp does.
type ring struct {
	mem      []byte
	producer *uint32
	consumer *uint32
	desc     unsafe.Pointer
	mask     uint32
	size     uint32
	cached   uint32
}

func mapRing(fd int, off unix.XDPRingOffset, entries uint32, entrySize int, pgoff int64) (*ring, error) {
	length := int(off.Desc) + int(entries)*entrySize
	mem, err := unix.Mmap(fd, pgoff, length,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return nil, fmt.Errorf("xsk: mmap ring: %w", err)
	}
	base := unsafe.Pointer(&mem[0])
	return &ring{
		mem:      mem,
		producer: (*uint32)(unsafe.Pointer(uintptr(base) + uintptr(off.Producer))),
		consumer: (*uint32)(unsafe.Pointer(uintptr(base) + uintptr(off.Consumer))),
		desc:     unsafe.Pointer(uintptr(base) + uintptr(off.Desc)),
		mask:     entries - 1,
		size:     entries,
	}, nil
}

func (r *ring) unmap() {
	if r != nil && r.mem != nil {
		unix.Munmap(r.mem)
		r.mem = nil
	}
}

// Socket is an AF_XDP socket bound to one (interface, queue) pair.
type Socket struct {
	fd   int
	cfg  Config
	umem []byte
	fill *ring
	rx   *ring

	received atomic.Uint64
}

// NewSocket creates, registers, and binds an AF_XDP socket on the given
// interface and queue, and primes the FILL ring so the kernel can deliver
// immediately. The returned socket's FD goes into the XSK redirect map.
func NewSocket(ifindex int, cfg Config) (*Socket, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_XDP, unix.SOCK_RAW, 0)
	if err != nil {
		return nil, fmt.Errorf("xsk: create socket: %w", err)
	}
	s := &Socket{fd: fd, cfg: cfg}

	if err := s.setup(ifindex); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Socket) setup(ifindex int) error {
	cfg := &s.cfg

	umem, err := unix.Mmap(-1, 0, int(cfg.NumFrames*cfg.FrameSize),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return fmt.Errorf("xsk: allocate UMEM: %w", err)
	}
	s.umem = umem

	reg := unix.XDPUmemReg{
		Addr:     uint64(uintptr(unsafe.Pointer(&umem[0]))),
		Len:      uint64(len(umem)),
		Size:     cfg.FrameSize,
		Headroom: 0,
	}
	if err := setsockopt(s.fd, unix.XDP_UMEM_REG, unsafe.Pointer(&reg), unsafe.Sizeof(reg)); err != nil {
		return fmt.Errorf("xsk: register UMEM: %w", err)
	}

	if err := unix.SetsockoptInt(s.fd, unix.SOL_XDP, unix.XDP_UMEM_FILL_RING, int(cfg.FillSize)); err != nil {
		return fmt.Errorf("xsk: size FILL ring: %w", err)
	}
	// The kernel insists on a completion ring at bind time even though
	// this socket never transmits.
	if err := unix.SetsockoptInt(s.fd, unix.SOL_XDP, unix.XDP_UMEM_COMPLETION_RING, int(cfg.FillSize)); err != nil {
		return fmt.Errorf("xsk: size COMPLETION ring: %w", err)
	}
	if err := unix.SetsockoptInt(s.fd, unix.SOL_XDP, unix.XDP_RX_RING, int(cfg.RxSize)); err != nil {
		return fmt.Errorf("xsk: size RX ring: %w", err)
	}

	var offs unix.XDPMmapOffsets
	if err := getsockopt(s.fd, unix.XDP_MMAP_OFFSETS, unsafe.Pointer(&offs), unsafe.Sizeof(offs)); err != nil {
		return fmt.Errorf("xsk: read mmap offsets: %w", err)
	}

	s.fill, err = mapRing(s.fd, offs.Fr, cfg.FillSize, 8, unix.XDP_UMEM_PGOFF_FILL_RING)
	if err != nil {
		return err
	}
	s.rx, err = mapRing(s.fd, offs.Rx, cfg.RxSize, int(unsafe.Sizeof(unix.XDPDesc{})), unix.XDP_PGOFF_RX_RING)
	if err != nil {
		return err
	}

	addr := &unix.SockaddrXDP{
		Flags:   unix.XDP_USE_NEED_WAKEUP,
		Ifindex: uint32(ifindex),
		QueueID: cfg.QueueID,
	}
	if err := unix.Bind(s.fd, addr); err != nil {
		// Need-wakeup is not universal; retry with no flags (copy mode is
		// then chosen by the kernel as needed).
		addr.Flags = 0
		if err := unix.Bind(s.fd, addr); err != nil {
			return fmt.Errorf("xsk: bind to ifindex %d queue %d: %w", ifindex, cfg.QueueID, err)
		}
	}

	s.repopulateFill()
	return nil
}

// repopulateFill hands every free UMEM frame back to the kernel.
func (s *Socket) repopulateFill() {
	prod := atomic.LoadUint32(s.fill.producer)
	cons := atomic.LoadUint32(s.fill.consumer)
	free := s.fill.size - (prod - cons)
	for i := uint32(0); i < free; i++ {
		frame := (prod + i) % s.cfg.NumFrames
		slot := (*uint64)(unsafe.Pointer(uintptr(s.fill.desc) + uintptr((prod+i)&s.fill.mask)*8))
		*slot = uint64(frame) * uint64(s.cfg.FrameSize)
	}
	atomic.StoreUint32(s.fill.producer, prod+free)
}

// FD returns the socket file descriptor for the XSK redirect map.
func (s *Socket) FD() int { return s.fd }

// QueueID returns the bound receive queue.
func (s *Socket) QueueID() uint32 { return s.cfg.QueueID }

// Received returns the number of frames delivered so far.
func (s *Socket) Received() uint64 { return s.received.Load() }

// Poll waits up to timeoutMs for redirected frames to arrive. A zero
// return with nil error means the timeout elapsed.
func (s *Socket) Poll(timeoutMs int) (int, error) {
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, timeoutMs)
	if err == unix.EINTR {
		return 0, nil
	}
	return n, err
}

// Receive drains the RX ring, invoking fn for each delivered frame. The
// slice passed to fn aliases UMEM and is valid only inside the call.
// Returns the number of frames handled.
func (s *Socket) Receive(fn func(frame []byte)) int {
	prod := atomic.LoadUint32(s.rx.producer)
	cons := atomic.LoadUint32(s.rx.consumer)
	n := 0
	for ; cons != prod; cons++ {
		d := (*unix.XDPDesc)(unsafe.Pointer(uintptr(s.rx.desc) +
			uintptr(cons&s.rx.mask)*unsafe.Sizeof(unix.XDPDesc{})))
		if d.Addr+uint64(d.Len) <= uint64(len(s.umem)) {
			fn(s.umem[d.Addr : d.Addr+uint64(d.Len)])
		}
		n++
	}
	if n > 0 {
		atomic.StoreUint32(s.rx.consumer, cons)
		s.received.Add(uint64(n))
		s.repopulateFill()
	}
	return n
}

// Close unmaps the rings and UMEM and closes the socket.
func (s *Socket) Close() error {
	s.rx.unmap()
	s.fill.unmap()
	if s.umem != nil {
		unix.Munmap(s.umem)
		s.umem = nil
	}
	if s.fd >= 0 {
		err := unix.Close(s.fd)
		s.fd = -1
		return err
	}
	return nil
}

func setsockopt(fd, opt int, val unsafe.Pointer, size uintptr) error {
	_, _, errno := unix.Syscall6(unix.SYS_SETSOCKOPT,
		uintptr(fd), unix.SOL_XDP, uintptr(opt), uintptr(val), size, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func getsockopt(fd, opt int, val unsafe.Pointer, size uintptr) error {
	_, _, errno := unix.Syscall6(unix.SYS_GETSOCKOPT,
		uintptr(fd), unix.SOL_XDP, uintptr(opt), uintptr(val), uintptr(unsafe.Pointer(&size)), 0)
	if errno != 0 {
		return errno
	}
	return nil
}
