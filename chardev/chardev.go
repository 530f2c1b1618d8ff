// Package chardev implements the character-device surface of spec.md
// §4.I: open/release reference counting, the blocking/non-blocking read
// that formats the cached PCPS_TIME as a 32-byte framed string, poll
// readiness, fasync registration, and the mmap decision. Actual node
// creation and the mmap(2)/poll(2) syscalls themselves are a host
// integration concern (spec.md §1 "out of scope"); this package exposes
// the decisions and leaves the syscalls to the wrapper, expressed against
// golang.org/x/sys/unix constants per SPEC_FULL.md §I.
package chardev

import (
	"errors"
	"time"

	"github.com/mburnicki/mbgclock-drvr-sub000/cyclic"
	"github.com/mburnicki/mbgclock-drvr-sub000/device"
	"github.com/mburnicki/mbgclock-drvr-sub000/errs"
	"golang.org/x/sys/unix"
)

const (
	mmapPageSize     = 4096
	mmapAsicHdrBytes = 256
)

// MapDecision is the answer to Mmap (spec.md §4.I "mmap"): either a
// page-sized window into bar 0 beyond the ASIC header, or not mappable.
type MapDecision struct {
	Mappable bool
	Base     uintptr
	Length   uintptr
}

// ErrWouldBlock is returned by Read/Poll in non-blocking mode when no
// sample is available yet (spec.md §4.I "return Again in non-blocking
// mode"). It is deliberately not an errs.Kind: Again is a host-OS errno
// (EAGAIN), not one of the core's closed transport/transaction error
// kinds, so the host wrapper is the one that maps this sentinel to
// unix.EAGAIN.
var ErrWouldBlock = errors.New("chardev: operation would block")

// Handle is one open reference on a Device (spec.md §4.I "open"/"release").
// Multiple Handles may share one Device; Device.OpenCount tracks them.
type Handle struct {
	dev    *device.Device
	cyc    cyclic.Source
	signal chan struct{}
}

// Open bumps dev's open-handle count. No hardware is enabled yet (spec.md
// §4.I "open: ... No hardware is enabled yet.").
func Open(dev *device.Device, cyc cyclic.Source) *Handle {
	dev.Open()
	return &Handle{dev: dev, cyc: cyc}
}

// Release decrements the open-handle count. On the last release, the
// cyclic source is disabled if the device is still connected; if the
// device was already disconnected, nothing further is done: the registry
// slot was already cleared, and the descriptor stays alive only while
// references to it remain (spec.md §4.I "release").
func (h *Handle) Release() {
	if h.signal != nil {
		h.dev.RemoveSignalTarget(h.signal)
	}
	if !h.dev.Release() {
		return
	}
	if h.dev.Connected() {
		h.cyc.Disable()
	}
}

// Read implements spec.md §4.I "read": ensures the cyclic source is
// running, blocks (or returns ErrWouldBlock) until data_available or a
// staleness timeout, then formats the cached time as the 32-byte STX/ETX
// frame, so a 33-byte request returns 32 bytes. The returned slice is
// truncated to min(n, 32).
func (h *Handle) Read(n int, nonBlocking bool) ([]byte, error) {
	if !h.dev.Connected() {
		return nil, errs.New(errs.Interrupted)
	}

	if !h.dev.DataAvailable() {
		if err := h.cyc.Enable(0); err != nil {
			return nil, err
		}
	}

	for !h.dev.DataAvailable() {
		if nonBlocking {
			return nil, ErrWouldBlock
		}

		ch := make(chan struct{})
		h.dev.AddWaiter(ch)

		select {
		case <-ch:
		case <-time.After(cyclic.CyclicTimeout):
			if err := cyclic.RecoverIfStale(h.cyc, h.dev, time.Now()); err != nil {
				return nil, err
			}
		}

		if !h.dev.Connected() {
			return nil, errs.New(errs.Interrupted)
		}
	}

	frame := h.dev.LastTime().Frame()
	out := frame[:]
	if n < len(out) {
		out = out[:n]
	}
	return out, nil
}

// Poll implements spec.md §4.I "poll": same pre-read enable and
// staleness detection as Read, but only reports readiness rather than
// returning data.
func (h *Handle) Poll() (ready bool, err error) {
	if !h.dev.Connected() {
		return false, errs.New(errs.Interrupted)
	}

	if !h.dev.DataAvailable() {
		if err := h.cyc.Enable(0); err != nil {
			return false, err
		}
	}

	if cyclic.IsStale(h.dev, time.Now()) {
		if err := cyclic.RecoverIfStale(h.cyc, h.dev, time.Now()); err != nil {
			return false, err
		}
	}

	return h.dev.DataAvailable(), nil
}

// PollEvents translates Poll's readiness into the unix poll event bits a
// host poll(2) implementation would set in revents.
func PollEvents(ready bool) uint32 {
	if ready {
		return unix.POLLIN | unix.POLLRDNORM
	}
	return 0
}

// Fasync registers ch for SIGIO-style delivery on the next tick (spec.md
// §4.I "fasync: register/unregister for SIGIO delivery").
func (h *Handle) Fasync(ch chan struct{}) {
	h.signal = ch
	h.dev.AddSignalTarget(ch)
}

// FasyncOff unregisters a previously registered fasync target.
func (h *Handle) FasyncOff() {
	if h.signal == nil {
		return
	}
	h.dev.RemoveSignalTarget(h.signal)
	h.signal = nil
}

// Mmap implements spec.md §4.I "mmap": if the device exposes MMIO
// registers, map exactly one page of bar 0 beyond the ASIC header;
// otherwise report not mappable. The returned Prot value is always
// unix.PROT_READ -- the core never hands out a writable mapping of
// device registers through this path.
func (h *Handle) Mmap() (MapDecision, int, error) {
	if !h.dev.HasFeature(device.FeatBuiltin, device.BuiltinHasMMIOTimestamp) {
		return MapDecision{}, 0, errs.New(errs.InvalidParameter)
	}
	if len(h.dev.Resources.Mems) == 0 || h.dev.Resources.Mems[0].Mapped == nil {
		return MapDecision{}, 0, errs.New(errs.InvalidParameter)
	}

	base := h.dev.Resources.Mems[0].Base + mmapAsicHdrBytes
	return MapDecision{Mappable: true, Base: base, Length: mmapPageSize}, unix.PROT_READ, nil
}
