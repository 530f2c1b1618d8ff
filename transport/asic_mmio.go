package transport

import (
	"github.com/mburnicki/mbgclock-drvr-sub000/device"
	"github.com/mburnicki/mbgclock-drvr-sub000/errs"
)

// AsicMMIO is the same protocol as AsicPIO but via memory-mapped
// pointers (spec.md §4.B "ASIC-MMIO"). Window must be a live MemWindow
// over the ASIC register block.
type AsicMMIO struct {
	Window *device.MemRange
}

func (a AsicMMIO) Read(dev *device.Device, cmd []byte, out []byte) error {
	sampleAccessCycles(dev)
	w := a.Window.Mapped

	w.Write32FromCPU(asicPciData, packLE32(cmd))

	if err := waitNotBusy(func() uint32 { return w.Read32ToCPU(asicStatus) }); err != nil {
		return err
	}

	i := 0
	for i+4 <= len(out) {
		v := w.Read32ToCPU(asicAddonData)
		out[i] = byte(v)
		out[i+1] = byte(v >> 8)
		out[i+2] = byte(v >> 16)
		out[i+3] = byte(v >> 24)
		i += 4
	}
	if i < len(out) {
		v := w.Read32ToCPU(asicAddonData)
		for j := 0; i+j < len(out); j++ {
			out[i+j] = byte(v >> (8 * uint(j)))
		}
	}

	return nil
}

func (a AsicMMIO) Write(dev *device.Device, cmd []byte, payload []byte) (byte, error) {
	sampleAccessCycles(dev)
	w := a.Window.Mapped

	w.Write32FromCPU(asicPciData, packLE32(cmd))

	if err := waitNotBusy(func() uint32 { return w.Read32ToCPU(asicStatus) }); err != nil {
		return 0, err
	}

	// Mismatch between the device-reported count and len(payload) is
	// ByteCount (original_source/pcpsdrvr.c:3034-3043, MBG_ERR_NBYTES).
	n := byte(w.Read32ToCPU(asicAddonData))
	if int(n) != len(payload) {
		return 0, errs.New(errs.ByteCount)
	}

	for i := 0; i < int(n); i++ {
		w.Write32FromCPU(asicPciData, uint32(payload[i]))
	}

	completion := byte(w.Read32ToCPU(asicAddonData))
	return completion, nil
}

// AsicMMIO16 is the PEX8311 variant: the memory window is 16-bit wide, so
// every access is split into 16-bit-wide reads (spec.md §4.B "a variant
// uses 16-bit-wide reads for a chip family (PEX8311) whose memory window
// is 16-bit").
type AsicMMIO16 struct {
	Window *device.MemRange
}

func (a AsicMMIO16) Read(dev *device.Device, cmd []byte, out []byte) error {
	sampleAccessCycles(dev)
	w := a.Window.Mapped

	v := packLE32(cmd)
	w.Write16FromCPU(asicPciData, uint16(v))
	w.Write16FromCPU(asicPciData+2, uint16(v>>16))

	if err := waitNotBusy(func() uint32 {
		lo := uint32(w.Read16ToCPU(asicStatus))
		hi := uint32(w.Read16ToCPU(asicStatus + 2))
		return lo | hi<<16
	}); err != nil {
		return err
	}

	i := 0
	for i+2 <= len(out) {
		v := w.Read16ToCPU(asicAddonData)
		out[i] = byte(v)
		out[i+1] = byte(v >> 8)
		i += 2
	}
	if i < len(out) {
		v := w.Read16ToCPU(asicAddonData)
		out[i] = byte(v)
	}

	return nil
}

func (a AsicMMIO16) Write(dev *device.Device, cmd []byte, payload []byte) (byte, error) {
	sampleAccessCycles(dev)
	w := a.Window.Mapped

	w.Write16FromCPU(asicPciData, packLE16(cmd))

	if err := waitNotBusy(func() uint32 { return uint32(w.Read16ToCPU(asicStatus)) }); err != nil {
		return 0, err
	}

	// Mismatch between the device-reported count and len(payload) is
	// ByteCount (original_source/pcpsdrvr.c:3034-3043, MBG_ERR_NBYTES).
	n := byte(w.Read16ToCPU(asicAddonData))
	if int(n) != len(payload) {
		return 0, errs.New(errs.ByteCount)
	}

	for i := 0; i < int(n); i++ {
		w.Write16FromCPU(asicPciData, uint16(payload[i]))
	}

	completion := byte(w.Read16ToCPU(asicAddonData))
	return completion, nil
}
