package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/irctrakz/xdpacer/pkg/config"
	"github.com/irctrakz/xdpacer/pkg/core"
	"github.com/irctrakz/xdpacer/pkg/logging"
	"github.com/irctrakz/xdpacer/pkg/xdp"
)

func main() {
	var (
		cfgPath string
		iface   string
		mode    string
	)
	flag.StringVar(&cfgPath, "c", "", "path to YAML or JSON config file")
	flag.StringVar(&iface, "i", "", "interface to attach to (overrides config)")
	flag.StringVar(&mode, "mode", "", "data plane: auto, kernel, or user (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if cfgPath != "" {
		if err := config.LoadFromFile(cfgPath, cfg); err != nil {
			logging.Fatalf("config: %v", err)
		}
	}
	config.ApplyEnv(cfg)
	if iface != "" {
		cfg.Interface = iface
	}
	if mode != "" {
		cfg.Mode = mode
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("config: %v", err)
	}

	logging.SetLevel(cfg.Logging.Level)
	if cfg.Logging.File != "" {
		if err := logging.EnableFileLogging(cfg.Logging.Dir, cfg.Logging.File,
			cfg.Logging.MaxSize, cfg.Logging.MaxBackups, cfg.Logging.MaxAge); err != nil {
			logging.Fatalf("file logging: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resolved := cfg.Mode
	if resolved == config.ModeAuto {
		if xdp.Supported() {
			resolved = config.ModeKernel
		} else {
			logging.Infof("XDP unavailable, using the userspace data plane")
			resolved = config.ModeUser
		}
	}

	m := newMetrics()
	var err error
	switch resolved {
	case config.ModeKernel:
		err = runKernel(ctx, cfg, m)
	case config.ModeUser:
		err = runUser(ctx, cfg, m)
	}
	if err != nil {
		logging.Fatalf("%v", err)
	}
}

// consume drains the event source into the metrics and the debug log.
// This is the single consumer of the event channel; capacity frees as it
// reads, so falling behind shows up as upstream reservation drops, never
// as an error here.
func consume(ctx context.Context, src core.EventSource, m *metrics) error {
	for {
		ev, err := src.Read(ctx)
		if err != nil {
			if errors.Is(err, core.ErrSourceClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			m.decodeErrors.Inc()
			logging.Warnf("event read: %v", err)
			continue
		}
		family := ev.Family.String()
		m.events.WithLabelValues(family).Inc()
		m.addresses.WithLabelValues(
			strconv.FormatUint(uint64(ev.Ifindex), 10),
			family,
			ev.SourceAddr().String(),
		).Inc()
		logging.Debugf("event: %s", ev.String())
	}
}

// runSource runs the consumer and metrics endpoint over any event source,
// closing the source when the context ends so a blocked read unwinds.
func runSource(ctx context.Context, cfg *config.Config, m *metrics, src core.EventSource, extra func(g *errgroup.Group, gctx context.Context)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return src.Close()
	})
	g.Go(func() error { return consume(gctx, src, m) })
	if cfg.Metrics.Listen != "" {
		g.Go(func() error { return m.serve(gctx, cfg.Metrics.Listen) })
	}
	if extra != nil {
		extra(g, gctx)
	}
	return g.Wait()
}

func ifindexByName(name string) (int, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return 0, fmt.Errorf("lookup interface %q: %w", name, err)
	}
	return iface.Index, nil
}
