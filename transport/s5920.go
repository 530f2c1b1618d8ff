package transport

import (
	"github.com/mburnicki/mbgclock-drvr-sub000/device"
	"github.com/mburnicki/mbgclock-drvr-sub000/errs"
	"github.com/mburnicki/mbgclock-drvr-sub000/internal/ioreg"
)

// S5920 register offsets: command goes to the outbound mailbox in bar 0,
// data is read from bar 1 (spec.md §4.B "S5920").
const (
	s5920OutboundMailbox = 0x00 // bar 0
	s5920Status          = 0x04 // bar 0
	s5920Data            = 0x00 // bar 1
)

// S5920 implements the PLX/AMCC-S5920 mailbox transport.
type S5920 struct {
	Bar0Port uint16
	Bar1Port uint16
}

func (s S5920) portBus(dev *device.Device) ioreg.PortBus { return dev.PortBus }

func (s S5920) status(dev *device.Device) uint32 {
	return uint32(s.portBus(dev).In8(s.Bar0Port + s5920Status))
}

func (s S5920) Read(dev *device.Device, cmd []byte, out []byte) error {
	sampleAccessCycles(dev)
	bus := s.portBus(dev)

	bus.Out8(s.Bar0Port+s5920OutboundMailbox, cmd[0])

	if err := waitNotBusy(func() uint32 { return s.status(dev) }); err != nil {
		return err
	}

	// Data is read 32 bits at a time from bar 1; unaligned tails are read
	// as one 32-bit word and the surplus bytes discarded (spec.md §4.B).
	i := 0
	for i+4 <= len(out) {
		v := bus.In32(s.Bar1Port + s5920Data)
		out[i] = byte(v)
		out[i+1] = byte(v >> 8)
		out[i+2] = byte(v >> 16)
		out[i+3] = byte(v >> 24)
		i += 4
	}

	if i < len(out) {
		v := bus.In32(s.Bar1Port + s5920Data)
		remaining := len(out) - i
		for j := 0; j < remaining; j++ {
			out[i+j] = byte(v >> (8 * uint(j)))
		}
	}

	return nil
}

func (s S5920) Write(dev *device.Device, cmd []byte, payload []byte) (byte, error) {
	sampleAccessCycles(dev)
	bus := s.portBus(dev)

	bus.Out8(s.Bar0Port+s5920OutboundMailbox, cmd[0])

	if err := waitNotBusy(func() uint32 { return s.status(dev) }); err != nil {
		return 0, err
	}

	// Mismatch between the device-reported count and len(payload) is
	// ByteCount (original_source/pcpsdrvr.c:3034-3043, MBG_ERR_NBYTES).
	n := bus.In8(s.Bar0Port + s5920OutboundMailbox)
	if int(n) != len(payload) {
		return 0, errs.New(errs.ByteCount)
	}

	for i := 0; i < int(n); i++ {
		bus.Out8(s.Bar0Port+s5920OutboundMailbox, payload[i])
	}

	completion := bus.In8(s.Bar0Port + s5920OutboundMailbox)
	return completion, nil
}
