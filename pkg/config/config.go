// Package config provides configuration handling for the xdpacer daemon.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/irctrakz/xdpacer/pkg/ring"
)

// Data-plane modes.
const (
	// ModeAuto probes for XDP support and falls back to userspace.
	ModeAuto = "auto"
	// ModeKernel requires the XDP programs; startup fails without them.
	ModeKernel = "kernel"
	// ModeUser forces the userspace data plane.
	ModeUser = "user"
)

// Config is the complete daemon configuration.
type Config struct {
	// Interface is the network interface both hooks attach to.
	Interface string `json:"interface" yaml:"interface"`

	// Mode selects the data plane: auto, kernel, or user.
	Mode string `json:"mode" yaml:"mode"`

	BPF      BPFConfig      `json:"bpf" yaml:"bpf"`
	Redirect RedirectConfig `json:"redirect" yaml:"redirect"`
	Ring     RingConfig     `json:"ring" yaml:"ring"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
}

// BPFConfig locates the compiled XDP object files for the kernel mode.
type BPFConfig struct {
	// RedirectObject is the path to the socket-redirect program.
	RedirectObject string `json:"redirectObject" yaml:"redirectObject"`

	// PacerObject is the path to the address-extraction program.
	PacerObject string `json:"pacerObject" yaml:"pacerObject"`
}

// RedirectConfig names the receive queues that get an AF_XDP socket bound
// and entered into the redirect table. An empty list disables the
// redirect half entirely; the pacer still runs.
type RedirectConfig struct {
	// Interface the redirect program attaches to. In kernel mode this
	// must differ from the pacer's interface, since only one XDP program
	// attaches per interface. Empty inherits the main interface, which
	// the userspace data plane composes into one hook chain.
	Interface string `json:"interface" yaml:"interface"`

	Queues []uint32 `json:"queues" yaml:"queues"`
}

// RingConfig sizes the userspace event channel.
type RingConfig struct {
	// Capacity is the channel capacity in bytes. The kernel ring is fixed
	// at 1 MiB; this only affects the userspace data plane.
	Capacity int `json:"capacity" yaml:"capacity"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	// Listen is the host:port for /metrics and /health. Empty disables it.
	Listen string `json:"listen" yaml:"listen"`
}

// LoggingConfig mirrors pkg/logging's knobs.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`
	Dir        string `json:"dir" yaml:"dir"`
	File       string `json:"file" yaml:"file"`
	MaxSize    int    `json:"maxSize" yaml:"maxSize"`
	MaxBackups int    `json:"maxBackups" yaml:"maxBackups"`
	MaxAge     int    `json:"maxAge" yaml:"maxAge"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Mode: ModeAuto,
		BPF: BPFConfig{
			RedirectObject: "bpf/redirect_kern.o",
			PacerObject:    "bpf/pacer_kern.o",
		},
		Ring:    RingConfig{Capacity: ring.DefaultCapacity},
		Metrics: MetricsConfig{Listen: ":9120"},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// LoadFromFile merges configuration from a YAML or JSON file into cfg.
func LoadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	switch {
	case strings.HasSuffix(path, ".json"):
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse JSON config: %w", err)
		}
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse YAML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}
	return nil
}

// ApplyEnv overrides cfg fields from XDPACER_* environment variables.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("XDPACER_INTERFACE")); v != "" {
		cfg.Interface = v
	}
	if v := strings.TrimSpace(os.Getenv("XDPACER_MODE")); v != "" {
		cfg.Mode = v
	}
	if v := strings.TrimSpace(os.Getenv("XDPACER_METRICS_LISTEN")); v != "" {
		cfg.Metrics.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("XDPACER_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("XDPACER_RING_CAPACITY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Ring.Capacity = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("XDPACER_REDIRECT_QUEUES")); v != "" {
		var queues []uint32
		for _, part := range strings.Split(v, ",") {
			n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
			if err != nil {
				continue
			}
			queues = append(queues, uint32(n))
		}
		cfg.Redirect.Queues = queues
	}
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Interface) == "" {
		return fmt.Errorf("interface is required")
	}
	switch c.Mode {
	case ModeAuto, ModeKernel, ModeUser:
	default:
		return fmt.Errorf("unknown mode %q (want %s, %s, or %s)", c.Mode, ModeAuto, ModeKernel, ModeUser)
	}
	if c.Ring.Capacity <= 0 {
		return fmt.Errorf("ring capacity must be positive, got %d", c.Ring.Capacity)
	}
	for _, q := range c.Redirect.Queues {
		if q >= 64 {
			return fmt.Errorf("redirect queue %d out of range (max 63)", q)
		}
	}
	return nil
}
