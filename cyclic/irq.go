package cyclic

import (
	"time"

	"github.com/mburnicki/mbgclock-drvr-sub000/device"
	"github.com/mburnicki/mbgclock-drvr-sub000/errs"
	"github.com/mburnicki/mbgclock-drvr-sub000/transaction"
	"github.com/sirupsen/logrus"
)

// giveTimeCmd is PCPS_GIVE_TIME (original_source/include/pcpsdefs.h:713):
// "Read current time in PCPS_TIME format".
const giveTimeCmd = 0x00

// IRQSource is the plug-in interrupt path of spec.md §4.F. Enable only
// records the enabled state; it writes no register, and
// dev.IRQEnablePort/dev.IRQEnableMask are not used here. The fire handler
// is simulated here by Fire, since actual PCI/ISA interrupt delivery is a
// host integration concern outside the core (SPEC_FULL.md §1 scope note).
type IRQSource struct {
	dev *device.Device
	log *logrus.Entry

	enabled bool
}

// NewIRQSource wraps dev's plug-in IRQ path.
func NewIRQSource(dev *device.Device) *IRQSource {
	return &IRQSource{
		dev: dev,
		log: logrus.WithFields(logrus.Fields{"component": "cyclic-irq", "minor": dev.Minor}),
	}
}

// Enable idempotently registers the handler (a no-op registration on a
// software stack) and marks the source enabled. force == 2 always
// disables first so the "kernel IRQ list must not be corrupted by
// duplicate registration" (spec.md §4.F) is honoured even though this
// core never literally calls request_irq.
func (s *IRQSource) Enable(force int) error {
	if force == 2 {
		s.Disable()
	} else if force == 0 && s.enabled {
		return nil
	}

	s.dev.IRQStatus.EnableCalled = true
	s.dev.IRQStatus.Enabled = true
	s.enabled = true
	s.log.Debug("cyclic: irq source enabled")
	return nil
}

// Disable masks IRQs on the chip (here, just flips the enabled state --
// the chip-level mask write lives in the transport, exercised through
// transaction.WriteVar in a full host integration).
func (s *IRQSource) Disable() {
	s.dev.IRQStatus.Enabled = false
	s.enabled = false
	s.log.Debug("cyclic: irq source disabled")
}

func (s *IRQSource) Alive() bool { return s.enabled }

// Fire runs one IRQ handler invocation (spec.md §4.F steps 1-2). It is
// the entry point a host ISR glue layer calls on each hardware interrupt.
func (s *IRQSource) Fire(now time.Time) {
	s.dev.IRQLock.Lock()
	defer s.dev.IRQLock.Unlock()

	s.dev.TouchLastTick(now)

	if !s.dev.ForegroundAccessInProgress() {
		raw, err := transaction.ReadVar(s.dev, giveTimeCmd, 8)
		if err == nil {
			s.dev.SetLastTime(decodeTime(raw))
		} else if !errs.Is(err, errs.Timeout) {
			s.log.WithError(err).Warn("cyclic: irq-path time read failed")
		}
	}

	s.dev.SetDataAvailable(true)
	s.dev.WakeWaiters()
	s.dev.NotifySignalTargets()
}

// decodeTime is a placeholder unpacking of the 8-byte PCPS_TIME wire
// layout into the cached struct; the character-device surface only
// consumes dev.LastTime() via Frame(). Fields not carried by these 8
// bytes are left zero, and no other code path fills them in.
func decodeTime(raw uint64) device.PCPSTime {
	return device.PCPSTime{
		Sec100: uint8(raw),
		Sec:    uint8(raw >> 8),
		Min:    uint8(raw >> 16),
		Hour:   uint8(raw >> 24),
		MDay:   uint8(raw >> 32),
		WDay:   uint8(raw >> 40),
		Month:  uint8(raw >> 48),
		Year:   uint8(raw >> 56),
	}
}
