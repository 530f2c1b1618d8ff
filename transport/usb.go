package transport

import (
	"context"

	"github.com/mburnicki/mbgclock-drvr-sub000/device"
	"github.com/mburnicki/mbgclock-drvr-sub000/errs"
)

// ReadGPSDataPrefix and WriteGPSDataPrefix are the large-structure
// transport commands of spec.md §4.B/§6: "0x50..0x5F: large-structure
// transport (READ_GPS_DATA, WRITE_GPS_DATA)".
const (
	ReadGPSDataPrefix  = 0x50
	WriteGPSDataPrefix = 0x51
)

// GiveHRTime is the command DetectHighSpeed sends to measure round-trip
// latency and classify the link as USB 2.0 high-bandwidth or USB 1.1
// (spec.md §4.B "On USB 2.0 devices detect 125 µs micro-frame timing").
const GiveHRTime = 0x5E

// usbHighSpeedThreshold is the round-trip below which a device is
// classified as USB 2.0 micro-frame-timed (spec.md §4.B "below 1 ms =>
// USB 2.0 mode").
const usbHighSpeedThreshold = 1_000_000 // nanoseconds

// USB implements the USB-bulk transport strategy (spec.md §4.B "USB").
// Unlike the four register-based strategies it never touches dev.PortBus;
// every transaction round-trips through dev.USB, which must hold a
// gousb-backed handle (see OpenGousb) or, in tests, a fake; Probe does
// not set it. Write sends the command and payload and reads a one-byte
// completion; it reads no device-reported expected byte count.
type USB struct{}

func (USB) Read(dev *device.Device, cmd []byte, out []byte) error {
	sampleAccessCycles(dev)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	if _, err := dev.USB.WriteOut(ctx, cmd); err != nil {
		return errs.Wrap(errs.Timeout, err)
	}

	n, err := dev.USB.ReadIn(ctx, out)
	if err != nil {
		return errs.Wrap(errs.Timeout, err)
	}
	if n != len(out) {
		return errs.New(errs.ByteCount)
	}

	return nil
}

func (USB) Write(dev *device.Device, cmd []byte, payload []byte) (byte, error) {
	sampleAccessCycles(dev)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	if _, err := dev.USB.WriteOut(ctx, cmd); err != nil {
		return 0, errs.Wrap(errs.Timeout, err)
	}

	if len(payload) > 0 {
		if _, err := dev.USB.WriteOut(ctx, payload); err != nil {
			return 0, errs.Wrap(errs.Timeout, err)
		}
	}

	ack := make([]byte, 1)
	if _, err := dev.USB.ReadIn(ctx, ack); err != nil {
		return 0, errs.Wrap(errs.Timeout, err)
	}

	return ack[0], nil
}

// DetectHighSpeed sends one GIVE_HR_TIME command and measures the
// round-trip to classify the link (spec.md §4.B), storing the result in
// dev.USB2HighSpeed. Probe does not call it.
func DetectHighSpeed(ctx context.Context, dev *device.Device, elapsedNS func() uint64) error {
	buf := make([]byte, 8)
	if _, err := dev.USB.WriteOut(ctx, []byte{GiveHRTime}); err != nil {
		return errs.Wrap(errs.Timeout, err)
	}
	if _, err := dev.USB.ReadIn(ctx, buf); err != nil {
		return errs.Wrap(errs.Timeout, err)
	}

	dev.USB2HighSpeed = elapsedNS() < usbHighSpeedThreshold
	return nil
}
