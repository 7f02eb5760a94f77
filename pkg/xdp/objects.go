//go:build linux

// Package xdp is the control plane for the kernel data plane: it loads
// the compiled XDP programs, attaches them to interfaces, populates the
// XSK redirect map, and drains the kernel event ring. The hook semantics
// themselves live in bpf/ and, for the userspace rendition, in pkg/pacer
// and pkg/redirect.
package xdp

import (
	"errors"
	"fmt"
	"os"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"

	"github.com/irctrakz/xdpacer/pkg/logging"
)

// Program and map names inside the compiled objects.
const (
	redirectProgName = "xdp_redirect"
	xskMapName       = "xsk_map"
	pacerProgName    = "xdp_pacer"
	eventsMapName    = "events"
)

// objects bundles one loaded collection with the program to attach and
// the interface link once attached.
type objects struct {
	coll *ebpf.Collection
	prog *ebpf.Program
	link link.Link
}

func loadObjects(objPath, progName string) (*objects, error) {
	spec, err := ebpf.LoadCollectionSpec(objPath)
	if err != nil {
		return nil, fmt.Errorf("load spec %s: %w", objPath, err)
	}
	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	prog := coll.Programs[progName]
	if prog == nil {
		coll.Close()
		return nil, fmt.Errorf("program %q not found in %s", progName, objPath)
	}
	return &objects{coll: coll, prog: prog}, nil
}

// attach links the program to the interface, preferring native driver
// mode and falling back to generic mode on drivers without XDP support.
func (o *objects) attach(ifindex int) error {
	lnk, err := link.AttachXDP(link.XDPOptions{
		Program:   o.prog,
		Interface: ifindex,
	})
	if err != nil {
		logging.Debugf("native XDP attach failed (%v), retrying in generic mode", err)
		lnk, err = link.AttachXDP(link.XDPOptions{
			Program:   o.prog,
			Interface: ifindex,
			Flags:     link.XDPGenericMode,
		})
		if err != nil {
			return fmt.Errorf("attach XDP to ifindex %d: %w", ifindex, err)
		}
	}
	o.link = lnk
	return nil
}

func (o *objects) close() error {
	var errs []error
	if o.link != nil {
		if err := o.link.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close XDP link: %w", err))
		}
		o.link = nil
	}
	if o.coll != nil {
		o.coll.Close()
		o.coll = nil
	}
	return errors.Join(errs...)
}

// Redirect owns the loaded socket-redirect program and its XSK map.
type Redirect struct {
	objs   *objects
	xskMap *ebpf.Map
}

// LoadRedirect loads the redirect program from a compiled object file.
func LoadRedirect(objPath string) (*Redirect, error) {
	objs, err := loadObjects(objPath, redirectProgName)
	if err != nil {
		return nil, err
	}
	m := objs.coll.Maps[xskMapName]
	if m == nil {
		objs.close()
		return nil, fmt.Errorf("map %q not found in %s", xskMapName, objPath)
	}
	return &Redirect{objs: objs, xskMap: m}, nil
}

// Attach links the redirect program to the interface.
func (r *Redirect) Attach(ifindex int) error {
	if err := r.objs.attach(ifindex); err != nil {
		return err
	}
	logging.Infof("redirect program attached to ifindex %d", ifindex)
	return nil
}

// BindQueue inserts an AF_XDP socket file descriptor for a receive queue.
// Frames on that queue are redirected to the socket from then on.
func (r *Redirect) BindQueue(queue uint32, fd int) error {
	if err := r.xskMap.Update(queue, uint32(fd), ebpf.UpdateAny); err != nil {
		return fmt.Errorf("bind queue %d: %w", queue, err)
	}
	logging.Debugf("queue %d bound to AF_XDP socket fd %d", queue, fd)
	return nil
}

// UnbindQueue removes the entry for a receive queue. Removing an absent
// entry is not an error.
func (r *Redirect) UnbindQueue(queue uint32) error {
	if err := r.xskMap.Delete(queue); err != nil && !errors.Is(err, ebpf.ErrKeyNotExist) {
		return fmt.Errorf("unbind queue %d: %w", queue, err)
	}
	return nil
}

// Close detaches and releases all redirect resources.
func (r *Redirect) Close() error { return r.objs.close() }

// Pacer owns the loaded address-extraction program and its event ring map.
type Pacer struct {
	objs   *objects
	events *ebpf.Map
}

// LoadPacer loads the pacer program from a compiled object file.
func LoadPacer(objPath string) (*Pacer, error) {
	objs, err := loadObjects(objPath, pacerProgName)
	if err != nil {
		return nil, err
	}
	m := objs.coll.Maps[eventsMapName]
	if m == nil {
		objs.close()
		return nil, fmt.Errorf("map %q not found in %s", eventsMapName, objPath)
	}
	return &Pacer{objs: objs, events: m}, nil
}

// Attach links the pacer program to the interface.
func (p *Pacer) Attach(ifindex int) error {
	if err := p.objs.attach(ifindex); err != nil {
		return err
	}
	logging.Infof("pacer program attached to ifindex %d", ifindex)
	return nil
}

// Events opens the consumer side of the kernel event ring.
func (p *Pacer) Events() (*Reader, error) {
	return newReader(p.events)
}

// Close detaches and releases all pacer resources.
func (p *Pacer) Close() error { return p.objs.close() }

// ObjectPath returns the first existing path among candidates, or an
// error naming them all. Lets deployments ship the .o files next to the
// binary or under a system dir.
func ObjectPath(candidates ...string) (string, error) {
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("no BPF object found (tried %v)", candidates)
}
