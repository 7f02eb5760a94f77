//go:build linux

package xsk

import "testing"

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	if err := cfg.applyDefaults(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if cfg.NumFrames != defaultNumFrames || cfg.FrameSize != defaultFrameSize {
		t.Errorf("unexpected UMEM defaults: %+v", cfg)
	}
	if cfg.RxSize != defaultRingSize || cfg.FillSize != defaultRingSize {
		t.Errorf("unexpected ring defaults: %+v", cfg)
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := Config{RxSize: 1000} // not a power of two
	if err := cfg.applyDefaults(); err == nil {
		t.Error("non-power-of-two ring size should be rejected")
	}

	cfg = Config{NumFrames: 1024, RxSize: 1024, FillSize: 1024}
	if err := cfg.applyDefaults(); err == nil {
		t.Error("UMEM smaller than outstanding ring entries should be rejected")
	}

	cfg = Config{QueueID: 3, NumFrames: 8192, FrameSize: 4096, RxSize: 4096, FillSize: 4096}
	if err := cfg.applyDefaults(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}
