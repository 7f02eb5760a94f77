//go:build linux

package xdp

import (
	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"
	"github.com/cilium/ebpf/rlimit"

	"github.com/irctrakz/xdpacer/pkg/logging"
)

// Supported reports whether this process can load XDP programs, by
// loading a minimal one. It removes the memlock rlimit first, which older
// kernels require for any eBPF allocation. A false result means the
// daemon should fall back to the userspace data plane.
func Supported() bool {
	if err := rlimit.RemoveMemlock(); err != nil {
		logging.Debugf("remove memlock rlimit: %v", err)
	}

	prog, err := ebpf.NewProgram(&ebpf.ProgramSpec{
		Type: ebpf.XDP,
		Instructions: asm.Instructions{
			asm.LoadImm(asm.R0, 2, asm.DWord), // XDP_PASS
			asm.Return(),
		},
		License: "GPL",
	})
	if err != nil {
		logging.Debugf("XDP probe program load failed: %v", err)
		return false
	}
	prog.Close()
	return true
}
