// Package config defines the tunables of the bus-level driver engine.
// The core only declares the struct and its defaults; reading it from a
// file or environment is a host-integration concern (spec.md §1) left to
// something like github.com/spf13/viper decoding into these same
// mapstructure-tagged fields.
package config

import "time"

// Config holds every tunable named in spec.md: registry capacity, the
// per-transaction device timeout, cyclic staleness window, and the USB
// cyclic-endpoint read timeout.
type Config struct {
	// MaxDevices bounds the registry (spec.md §4.E "max_devices, default 20").
	MaxDevices int `mapstructure:"max_devices"`

	// DeviceTimeout bounds every hardware transaction's busy-wait
	// (spec.md §4.B step 3, "typically 200 ms").
	DeviceTimeout time.Duration `mapstructure:"device_timeout"`

	// CyclicStaleness is the window after which a blocking reader forces
	// a cyclic-source re-enable (spec.md §4.F "CYCLIC_TIMEOUT (~2 s)").
	CyclicStaleness time.Duration `mapstructure:"cyclic_staleness"`

	// USBCyclicReadTimeout bounds the USB worker's bulk read of the
	// cyclic IN endpoint (spec.md §4.F "timeout 1.2 s (tunable)").
	USBCyclicReadTimeout time.Duration `mapstructure:"usb_cyclic_read_timeout"`

	// AllowForceReset gates the FORCE_RESET IOCTL (SPEC_FULL.md §6 open
	// question 3): disabled by default, since an unprivileged re-enable of
	// a live IRQ-unsafe device can corrupt an in-flight transaction.
	AllowForceReset bool `mapstructure:"allow_force_reset"`
}

// Default returns the engine's built-in tunables.
func Default() Config {
	return Config{
		MaxDevices:           20,
		DeviceTimeout:        200 * time.Millisecond,
		CyclicStaleness:      2 * time.Second,
		USBCyclicReadTimeout: 1200 * time.Millisecond,
		AllowForceReset:      false,
	}
}
