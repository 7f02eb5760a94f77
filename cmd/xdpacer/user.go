package main

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/irctrakz/xdpacer/pkg/capture"
	"github.com/irctrakz/xdpacer/pkg/config"
	"github.com/irctrakz/xdpacer/pkg/core"
	"github.com/irctrakz/xdpacer/pkg/logging"
	"github.com/irctrakz/xdpacer/pkg/pacer"
	"github.com/irctrakz/xdpacer/pkg/redirect"
	"github.com/irctrakz/xdpacer/pkg/ring"
)

// runUser runs both hooks in-process over an AF_PACKET tap: the same
// classification logic as the XDP programs, composed into one chain on
// one interface.
func runUser(ctx context.Context, cfg *config.Config, m *metrics) error {
	eventRing := ring.New(cfg.Ring.Capacity)
	tap := pacer.New(eventRing)

	table := redirect.NewTable()
	chain := core.Chain{redirect.NewDispatcher(table), tap}

	endpoints := make(map[uint32]*redirect.QueueEndpoint)
	for _, q := range cfg.Redirect.Queues {
		ep := redirect.NewQueueEndpoint(0)
		if err := table.Bind(q, ep); err != nil {
			return err
		}
		endpoints[q] = ep
		logging.Infof("redirect bound: queue %d -> in-process endpoint", q)
	}

	src, err := capture.Open(cfg.Interface)
	if err != nil {
		return err
	}

	extra := func(g *errgroup.Group, gctx context.Context) {
		g.Go(func() error {
			<-gctx.Done()
			return src.Close()
		})
		g.Go(func() error { return src.Run(gctx, chain) })
		for q, ep := range endpoints {
			counter := m.redirected.WithLabelValues(strconv.FormatUint(uint64(q), 10))
			ep := ep
			g.Go(func() error {
				for {
					select {
					case <-gctx.Done():
						return nil
					case frame := <-ep.Frames():
						counter.Inc()
						logging.Debugf("redirected frame: %d bytes", len(frame))
					}
				}
			})
		}
	}

	logging.Infof("userspace data plane running on %s", cfg.Interface)
	return runSource(ctx, cfg, m, pacer.NewRingSource(eventRing), extra)
}
