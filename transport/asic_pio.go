package transport

import (
	"github.com/mburnicki/mbgclock-drvr-sub000/device"
	"github.com/mburnicki/mbgclock-drvr-sub000/errs"
	"github.com/mburnicki/mbgclock-drvr-sub000/internal/ioreg"
)

// ASIC config-space register offsets, grounded on the teacher's PCI
// config-space access shape (soc/intel/pci.Device.Read/Write): a 32-bit
// little-endian write/read pair addressed through the bridge's
// command/data register pair (spec.md §4.B "ASIC-PIO").
const (
	asicPciData   = 0x00 // command write
	asicAddonData = 0x04 // response data read
	asicStatus    = 0x08
)

// AsicPIO implements the command being a 32-bit little-endian write to
// the ASIC's pci_data register, data read 32 bits at a time from
// addon_data (spec.md §4.B "ASIC-PIO").
type AsicPIO struct {
	Port uint16
}

func (a AsicPIO) portBus(dev *device.Device) ioreg.PortBus { return dev.PortBus }

func (a AsicPIO) status(dev *device.Device) uint32 {
	return a.portBus(dev).In32(a.Port + asicStatus)
}

func (a AsicPIO) Read(dev *device.Device, cmd []byte, out []byte) error {
	sampleAccessCycles(dev)
	bus := a.portBus(dev)

	bus.Out32(a.Port+asicPciData, packLE32(cmd))

	if err := waitNotBusy(func() uint32 { return a.status(dev) }); err != nil {
		return err
	}

	i := 0
	for i+4 <= len(out) {
		v := bus.In32(a.Port + asicAddonData)
		out[i] = byte(v)
		out[i+1] = byte(v >> 8)
		out[i+2] = byte(v >> 16)
		out[i+3] = byte(v >> 24)
		i += 4
	}
	if i < len(out) {
		v := bus.In32(a.Port + asicAddonData)
		for j := 0; i+j < len(out); j++ {
			out[i+j] = byte(v >> (8 * uint(j)))
		}
	}

	return nil
}

func (a AsicPIO) Write(dev *device.Device, cmd []byte, payload []byte) (byte, error) {
	sampleAccessCycles(dev)
	bus := a.portBus(dev)

	bus.Out32(a.Port+asicPciData, packLE32(cmd))

	if err := waitNotBusy(func() uint32 { return a.status(dev) }); err != nil {
		return 0, err
	}

	// Mismatch between the device-reported count and len(payload) is
	// ByteCount (original_source/pcpsdrvr.c:3034-3043, MBG_ERR_NBYTES).
	n := byte(bus.In32(a.Port + asicAddonData))
	if int(n) != len(payload) {
		return 0, errs.New(errs.ByteCount)
	}

	for i := 0; i < int(n); i++ {
		bus.Out32(a.Port+asicPciData, uint32(payload[i]))
	}

	completion := byte(bus.In32(a.Port + asicAddonData))
	return completion, nil
}
