// Package cyclic implements the unified once-per-second tick source of
// spec.md §4.F: a plug-in IRQ path and a USB worker path, both satisfying
// one Source interface so the character-device surface and the IOCTL
// dispatcher never branch on transport kind (SPEC_FULL.md §F).
package cyclic

import (
	"time"

	"github.com/mburnicki/mbgclock-drvr-sub000/device"
)

// CyclicTimeout is the staleness window of spec.md §4.F: "now -
// jiffies_at_last_tick > CYCLIC_TIMEOUT (~2 s)".
const CyclicTimeout = 2 * time.Second

// Source is the interface every cyclic implementation satisfies
// (SPEC_FULL.md §F). Enable is idempotent; force selects the
// re-registration behaviour of spec.md §4.F:
//
//	force == 0: no-op if already enabled.
//	force == 1: enable if not already enabled (e.g. after a USB replug).
//	force == 2: disable then re-enable unconditionally.
type Source interface {
	Enable(force int) error
	Disable()
	Alive() bool
}

// IsStale reports whether dev's last tick is older than CyclicTimeout,
// per spec.md §4.F "Staleness recovery".
func IsStale(dev *device.Device, now time.Time) bool {
	last := dev.JiffiesAtLastTick()
	if last.IsZero() {
		return true
	}
	return now.Sub(last) > CyclicTimeout
}

// RecoverIfStale implements spec.md P7: a blocking reader/poller that
// observes staleness drives exactly one disable->enable cycle per
// timeout window, never more.
func RecoverIfStale(src Source, dev *device.Device, now time.Time) error {
	if !IsStale(dev, now) {
		return nil
	}
	return src.Enable(2)
}
