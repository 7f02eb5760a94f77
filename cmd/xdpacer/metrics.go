package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/irctrakz/xdpacer/pkg/logging"
)

// metrics is the consumer-side accounting: event totals by family,
// per-source-address counts, and decode failures. The hooks themselves
// carry no counters; everything observable lives on this side of the
// event channel.
type metrics struct {
	registry *prometheus.Registry

	events       *prometheus.CounterVec
	addresses    *prometheus.CounterVec
	decodeErrors prometheus.Counter
	redirected   *prometheus.CounterVec
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &metrics{
		registry: reg,
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xdpacer_events_total",
			Help: "Address events consumed from the event channel.",
		}, []string{"family"}),
		addresses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xdpacer_address_events_total",
			Help: "Address events by ingress interface and source address.",
		}, []string{"ifindex", "family", "address"}),
		decodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "xdpacer_decode_errors_total",
			Help: "Event records that failed to decode.",
		}),
		redirected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xdpacer_redirected_frames_total",
			Help: "Frames delivered to a redirect socket endpoint, by queue.",
		}, []string{"queue"}),
	}
}

// serve exposes /metrics and /health until ctx is canceled.
func (m *metrics) serve(ctx context.Context, listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: listen, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logging.Infof("metrics listening on %s", listen)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
