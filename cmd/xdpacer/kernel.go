package main

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/irctrakz/xdpacer/pkg/config"
	"github.com/irctrakz/xdpacer/pkg/logging"
	"github.com/irctrakz/xdpacer/pkg/xdp"
	"github.com/irctrakz/xdpacer/pkg/xsk"
)

// runKernel attaches the compiled XDP programs and services them: the
// pacer's ring buffer is drained into the consumer, and for each
// configured redirect queue an AF_XDP socket is created, entered into the
// XSK map, and drained.
func runKernel(ctx context.Context, cfg *config.Config, m *metrics) error {
	pacerIfindex, err := ifindexByName(cfg.Interface)
	if err != nil {
		return err
	}

	pacerProg, err := xdp.LoadPacer(cfg.BPF.PacerObject)
	if err != nil {
		return err
	}
	defer pacerProg.Close()
	if err := pacerProg.Attach(pacerIfindex); err != nil {
		return err
	}

	src, err := pacerProg.Events()
	if err != nil {
		return err
	}

	var redirectSetup func(g *errgroup.Group, gctx context.Context)
	if len(cfg.Redirect.Queues) > 0 {
		rd, socks, err := setupRedirect(cfg, pacerIfindex)
		if err != nil {
			src.Close()
			return err
		}
		defer rd.Close()
		redirectSetup = func(g *errgroup.Group, gctx context.Context) {
			for _, sock := range socks {
				sock := sock
				g.Go(func() error { return drainSocket(gctx, sock, m) })
			}
		}
	}

	logging.Infof("kernel data plane running on %s", cfg.Interface)
	return runSource(ctx, cfg, m, src, redirectSetup)
}

// setupRedirect loads and attaches the redirect program on its own
// interface and binds one AF_XDP socket per configured queue.
func setupRedirect(cfg *config.Config, pacerIfindex int) (*xdp.Redirect, []*xsk.Socket, error) {
	name := cfg.Redirect.Interface
	if name == "" {
		name = cfg.Interface
	}
	ifindex, err := ifindexByName(name)
	if err != nil {
		return nil, nil, err
	}
	if ifindex == pacerIfindex {
		return nil, nil, fmt.Errorf(
			"redirect and pacer cannot share interface %s in kernel mode: one XDP program attaches per interface", name)
	}

	rd, err := xdp.LoadRedirect(cfg.BPF.RedirectObject)
	if err != nil {
		return nil, nil, err
	}
	if err := rd.Attach(ifindex); err != nil {
		rd.Close()
		return nil, nil, err
	}

	var socks []*xsk.Socket
	cleanup := func() {
		for _, s := range socks {
			s.Close()
		}
		rd.Close()
	}
	for _, q := range cfg.Redirect.Queues {
		sock, err := xsk.NewSocket(ifindex, xsk.Config{QueueID: q})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		socks = append(socks, sock)
		if err := rd.BindQueue(q, sock.FD()); err != nil {
			cleanup()
			return nil, nil, err
		}
		logging.Infof("redirect bound: %s queue %d -> AF_XDP socket", name, q)
	}
	return rd, socks, nil
}

// drainSocket consumes redirected frames from one AF_XDP socket. The
// daemon only accounts for them; a deployment embedding this as a library
// would hand the frames to its own consumer here.
func drainSocket(ctx context.Context, sock *xsk.Socket, m *metrics) error {
	defer sock.Close()
	queue := strconv.FormatUint(uint64(sock.QueueID()), 10)
	counter := m.redirected.WithLabelValues(queue)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if _, err := sock.Poll(500); err != nil {
			return fmt.Errorf("poll AF_XDP socket (queue %s): %w", queue, err)
		}
		sock.Receive(func(frame []byte) {
			counter.Inc()
			logging.Debugf("redirected frame on queue %s: %d bytes", queue, len(frame))
		})
	}
}
