package transport

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// GousbHandle wraps the three bulk endpoints of a Meinberg USB device
// (spec.md §6 "USB endpoints: host-in, host-out, host-in-cyclic") behind
// device.USBBulk. Grounded on guiperry-HASHER's usb_device.go, which opens
// a gousb.Device/Config/Interface and keeps the two bulk endpoints alive
// for the lifetime of the handle.
type GousbHandle struct {
	ctx   *gousb.Context
	dev   *gousb.Device
	cfg   *gousb.Config
	intf  *gousb.Interface
	out   *gousb.OutEndpoint
	in    *gousb.InEndpoint
	cycIn *gousb.InEndpoint
}

// OpenGousb claims the device's bulk interface and resolves all three
// required endpoints, rejecting devices that advertise fewer than three
// (spec.md §6: "A device advertising fewer is rejected.").
func OpenGousb(vid, pid gousb.ID, outEP, inEP, cyclicEP int) (*GousbHandle, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("open usb device: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("usb device %04x:%04x not present", vid, pid)
	}

	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usb config: %w", err)
	}

	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usb claim interface: %w", err)
	}

	out, err := intf.OutEndpoint(outEP)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usb out endpoint: %w", err)
	}

	in, err := intf.InEndpoint(inEP)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usb in endpoint: %w", err)
	}

	cycIn, err := intf.InEndpoint(cyclicEP)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usb cyclic-in endpoint: %w", err)
	}

	return &GousbHandle{ctx: ctx, dev: dev, cfg: cfg, intf: intf, out: out, in: in, cycIn: cycIn}, nil
}

func (h *GousbHandle) WriteOut(ctx context.Context, p []byte) (int, error) {
	return h.out.WriteContext(ctx, p)
}

func (h *GousbHandle) ReadIn(ctx context.Context, p []byte) (int, error) {
	return h.in.ReadContext(ctx, p)
}

func (h *GousbHandle) ReadCyclic(ctx context.Context, p []byte) (int, error) {
	return h.cycIn.ReadContext(ctx, p)
}

func (h *GousbHandle) Close() error {
	h.intf.Close()
	h.cfg.Close()
	h.dev.Close()
	h.ctx.Close()
	return nil
}
