//go:build !amd64

package ioreg

import "time"

var fallbackLogged bool

// ReadCPUCycles falls back to a monotonic-clock-derived counter on
// architectures without a cheap cycle-counter instruction wired up here.
// The unit is not cycles on this path but nanoseconds; CPUCyclesToNS
// converts it unchanged only when called with freqHz = 1e9.
func ReadCPUCycles() uint64 {
	return uint64(time.Now().UnixNano())
}
