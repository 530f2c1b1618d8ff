package transport

import (
	"github.com/mburnicki/mbgclock-drvr-sub000/device"
	"github.com/mburnicki/mbgclock-drvr-sub000/errs"
	"github.com/mburnicki/mbgclock-drvr-sub000/internal/ioreg"
)

// S5933 register offsets relative to the mailbox BAR (AMCC-S5933 PCI
// matchmaker ASIC).
const (
	s5933IMB0   = 0x10 // inbound mailbox 0, command write
	s5933FIFO   = 0x18 // inbound FIFO, data read
	s5933Status = 0x20 // status register
)

// s5933StatusFIFOEmpty is checked between FIFO reads (spec.md §4.B
// "S5933: ... checks FIFO-empty bit between reads").
const s5933StatusFIFOEmpty = 0x04

// S5933 implements the AMCC-S5933 mailbox transport (spec.md §4.B).
type S5933 struct {
	Port uint16 // base port for the command/status BAR
}

func (s S5933) portBus(dev *device.Device) ioreg.PortBus { return dev.PortBus }

func (s S5933) status(dev *device.Device) uint32 {
	return uint32(s.portBus(dev).In8(s.Port + s5933Status))
}

// resetMailbox clears the inbound mailbox and FIFO before issuing a new
// command (spec.md §4.B: "reset inbound mailbox & FIFO before step 2").
func (s S5933) resetMailbox(dev *device.Device) {
	bus := s.portBus(dev)
	bus.Out8(s.Port+s5933Status, 0)
}

func (s S5933) Read(dev *device.Device, cmd []byte, out []byte) error {
	sampleAccessCycles(dev)
	bus := s.portBus(dev)

	s.resetMailbox(dev)
	bus.Out8(s.Port+s5933IMB0, cmd[0])

	if err := waitNotBusy(func() uint32 { return s.status(dev) }); err != nil {
		return err
	}

	// Drain out_len bytes from the FIFO four bytes at a time, offset by
	// (i mod 4) within the FIFO window (spec.md §4.B).
	for i := 0; i < len(out); i += 4 {
		for s.status(dev)&s5933StatusFIFOEmpty != 0 {
		}

		n := 4
		if remain := len(out) - i; remain < 4 {
			n = remain
		}

		for j := 0; j < n; j++ {
			out[i+j] = bus.In8(s.Port + s5933FIFO + uint16(j%4))
		}
	}

	return nil
}

func (s S5933) Write(dev *device.Device, cmd []byte, payload []byte) (byte, error) {
	sampleAccessCycles(dev)
	bus := s.portBus(dev)

	s.resetMailbox(dev)
	bus.Out8(s.Port+s5933IMB0, cmd[0])

	if err := waitNotBusy(func() uint32 { return s.status(dev) }); err != nil {
		return 0, err
	}

	// expected byte count, streamed payload, then a one-byte completion
	// readback (spec.md §4.B "Writes share a parallel strategy"). A
	// mismatch between the device-reported count and len(payload) is
	// ByteCount (original_source/pcpsdrvr.c:3034-3043, MBG_ERR_NBYTES).
	n := bus.In8(s.Port + s5933FIFO)
	if int(n) != len(payload) {
		return 0, errs.New(errs.ByteCount)
	}

	for i := 0; i < int(n); i++ {
		bus.Out8(s.Port+s5933IMB0, payload[i])
	}

	completion := bus.In8(s.Port + s5933FIFO)
	return completion, nil
}
