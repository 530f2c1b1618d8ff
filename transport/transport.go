// Package transport implements the five concrete strategies of spec.md
// §4.B: S5933-mailbox, S5920-mailbox, ASIC-PIO, ASIC-MMIO (with a
// 16-bit-wide PEX8311 variant) and USB-bulk. Every strategy shares the
// identical "send one command byte, read N response bytes" contract
// declared as device.Strategy, so the transaction layer (package
// transaction) never branches on transport kind.
package transport

import (
	"time"

	"github.com/mburnicki/mbgclock-drvr-sub000/device"
	"github.com/mburnicki/mbgclock-drvr-sub000/errs"
	"github.com/mburnicki/mbgclock-drvr-sub000/internal/ioreg"
)

// Status port bit layout (spec.md §6 "Status port").
const (
	StatusBusy = 0x01
	StatusIRQ  = 0x02
	StatusMod  = 0x20
	StatusSec  = 0x40
	StatusMin  = 0x80
)

// DefaultTimeout is the device command timeout translated to the host
// tick source (spec.md §4.B step 3: "typically 200 ms"). It is the
// zero-value fallback when no timeout has been configured; a host
// integration overrides it once at startup from config.Config.DeviceTimeout
// via SetTimeout.
const DefaultTimeout = 200 * time.Millisecond

var busyTimeout = DefaultTimeout

// SetTimeout overrides the device command timeout used by every strategy's
// busy-wait. Intended to be called once at startup with
// config.Config.DeviceTimeout; strategies have no per-instance timeout
// field of their own since every example device in spec.md §4.B shares one
// engine-wide value.
func SetTimeout(d time.Duration) {
	busyTimeout = d
}

// Null is the zero-value transport: it is the no-op that always returns
// Timeout (spec.md §3 invariant: "If transport == Null, read is the
// no-op that returns timeout. No live device ever keeps Null after a
// successful probe.").
type Null struct{}

func (Null) Read(dev *device.Device, cmd []byte, out []byte) error {
	return errs.New(errs.Timeout)
}

func (Null) Write(dev *device.Device, cmd []byte, payload []byte) (byte, error) {
	return 0, errs.New(errs.Timeout)
}

// waitNotBusy polls the given status accessor until BUSY clears or the
// device timeout elapses (spec.md §4.B step 3).
func waitNotBusy(status ioreg.StatusFunc) error {
	if !ioreg.WaitFor(busyTimeout, status, StatusBusy, 0) {
		return errs.New(errs.Timeout)
	}
	return nil
}

// sampleAccessCycles records the CPU cycle counter at the start of a
// transaction (spec.md §4.B step 1), used for access-latency accounting.
func sampleAccessCycles(dev *device.Device) uint64 {
	c := ioreg.ReadCPUCycles()
	dev.AccessCycles = c
	return c
}

// packLE32 assembles up to the first 4 bytes of cmd into a little-endian
// word; bytes beyond len(cmd) are zero. The ASIC strategies use it; the
// S5933/S5920 strategies send only cmd[0].
func packLE32(cmd []byte) uint32 {
	var v uint32
	for i := 0; i < len(cmd) && i < 4; i++ {
		v |= uint32(cmd[i]) << (8 * uint(i))
	}
	return v
}

// packLE16 is the 16-bit-window counterpart of packLE32, used by the
// PEX8311 ASIC-MMIO16 variant.
func packLE16(cmd []byte) uint16 {
	var v uint16
	for i := 0; i < len(cmd) && i < 2; i++ {
		v |= uint16(cmd[i]) << (8 * uint(i))
	}
	return v
}
