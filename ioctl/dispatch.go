package ioctl

import (
	"github.com/mburnicki/mbgclock-drvr-sub000/config"
	"github.com/mburnicki/mbgclock-drvr-sub000/device"
	"github.com/mburnicki/mbgclock-drvr-sub000/devtype"
	"github.com/mburnicki/mbgclock-drvr-sub000/errs"
	"github.com/mburnicki/mbgclock-drvr-sub000/transaction"
	"github.com/mburnicki/mbgclock-drvr-sub000/tstamp"
)

// Caller carries the host-side identity a dispatch call is made on behalf
// of (spec.md §4.H "Privilege policy"). The core never asks the host
// "are you root" itself; the wrapper resolves that and passes the
// verdict in.
type Caller struct {
	IsAdmin bool
}

// Request is the single IOCTL_GENERIC_REQ shape of spec.md §4.H / Design
// Notes §9: one descriptor naming the code, the input bytes already
// copied in from user space, and the requested output length.
type Request struct {
	Code   uint16
	In     []byte
	OutLen int
}

// Response carries the device completion code and the output bytes to be
// copied back to user space. Map is populated only for CategoryMemoryMap
// commands, and is the core's answer to spec.md §4.I "mmap: if the device
// exposes MMIO registers, map exactly one page of bar 0 beyond the ASIC
// header; otherwise Invalid." The core never calls mmap(2) itself
// (SPEC_FULL.md §I); it hands the wrapper this decision instead.
type Response struct {
	Completion byte
	Out        []byte
	Map        *MapDecision
}

// MapDecision is the answer to a memory-map command.
type MapDecision struct {
	Mappable bool
	Base     uintptr
	Length   uintptr
}

const pageSize = 4096
const asicHeaderSize = 256

// Dispatch looks up req.Code, enforces privilege, feature gating and the
// unsafe-IRQ gate, then runs the matching transaction-layer or probe
// action (spec.md §4.H).
func Dispatch(dev *device.Device, cfg config.Config, caller Caller, req Request) (Response, error) {
	cmd, ok := Lookup(req.Code)
	if !ok {
		return Response{}, errs.New(errs.NotSupportedByDevice)
	}

	if err := checkPrivilege(cmd, caller); err != nil {
		return Response{}, err
	}

	if cmd.Feature != nil && !cmd.Feature(dev) {
		return Response{}, errs.New(errs.NotSupportedByDevice)
	}

	if cmd.Category != CategoryCapabilityQuery && dev.IRQStatus.Unsafe && dev.IRQStatus.Enabled {
		return Response{}, errs.New(errs.Busy)
	}

	if err := checkShape(cmd, req); err != nil {
		return Response{}, err
	}

	switch cmd.Category {
	case CategoryCapabilityQuery:
		return dispatchCapabilityQuery(dev, cmd, req)
	case CategoryCurrentTime:
		return dispatchCurrentTime(dev, cmd)
	case CategoryMemoryMap:
		return dispatchMemoryMap(dev, cmd)
	case CategoryAdmin:
		return dispatchAdmin(dev, cfg, cmd)
	case CategoryGenericIO:
		return dispatchGenericIO(dev, cmd, req)
	default: // CategoryConfig, CategoryUcapEvents
		return dispatchVar(dev, cmd, req)
	}
}

func checkPrivilege(cmd Command, caller Caller) error {
	switch cmd.Privilege {
	case PrivNone, PrivExtStatus, PrivCfgRead:
		return nil
	case PrivCfgWrite, PrivSystem:
		if !caller.IsAdmin {
			return errs.New(errs.Permission)
		}
		return nil
	default:
		return errs.New(errs.Permission)
	}
}

// checkShape enforces spec.md §6 "Every write-shaped code's payload size
// is first queried from the device; a mismatch ... is ByteCount" for the
// fixed-shape (non device-reported) commands. Device-reported shapes are
// validated later, when a register-based transport strategy compares its
// device-read expected count against len(payload) (spec.md §6,
// original_source/pcpsdrvr.c:3034-3043). The USB strategy reads no
// expected count, so USB writes get no such check.
func checkShape(cmd Command, req Request) error {
	if cmd.Shape.InLen >= 0 && len(req.In) != cmd.Shape.InLen {
		return errs.New(errs.ByteCount)
	}
	if cmd.Shape.OutLen >= 0 && req.OutLen != cmd.Shape.OutLen {
		return errs.New(errs.ByteCount)
	}
	return nil
}

func dispatchCapabilityQuery(dev *device.Device, cmd Command, req Request) (Response, error) {
	var has bool

	switch cmd.Name {
	case "DEV_HAS_PTP":
		has = dev.HasFeature(device.FeatPcps, device.PcpsHasPTP)
	case "DEV_HAS_GPIO":
		has = dev.HasFeature(device.FeatPcps, device.PcpsHasGPIO)
	case "DEV_HAS_UCAP":
		has = dev.HasFeature(device.FeatPcps, device.PcpsHasUcap)
	case "DEV_HAS_XMR":
		has = dev.HasFeature(device.FeatPcps, device.PcpsHasXMRSettings)
	case "DEV_IS_GPS":
		has = dev.HasFeature(device.FeatRefType, int(devtype.RefClockGPS))
	case "CHK_DEV_FEAT":
		if len(req.In) != 2 {
			return Response{}, errs.New(errs.InvalidParameter)
		}
		has = dev.HasFeature(device.FeatureKind(req.In[0]), int(req.In[1]))
	default:
		return Response{}, errs.New(errs.NotSupportedByDevice)
	}

	out := byte(0)
	if has {
		out = 1
	}
	return Response{Out: []byte{out}}, nil
}

func dispatchCurrentTime(dev *device.Device, cmd Command) (Response, error) {
	if cmd.Name == "GET_FAST_HR_TIMESTAMP" {
		ts := tstamp.FastTimestamp(dev)
		out := make([]byte, 8)
		encodeLE32(out[0:4], ts.Seconds)
		encodeLE32(out[4:8], ts.BinaryFraction)
		return Response{Out: out}, nil
	}

	v, err := transaction.ReadVar(dev, byte(cmd.Code), cmd.Shape.OutLen)
	if err != nil {
		return Response{}, err
	}
	out := make([]byte, cmd.Shape.OutLen)
	for i := range out {
		out[i] = byte(v >> (8 * uint(i)))
	}
	return Response{Out: out}, nil
}

func dispatchVar(dev *device.Device, cmd Command, req Request) (Response, error) {
	if cmd.Shape.InLen > 0 {
		var v uint64
		for i, b := range req.In {
			v |= uint64(b) << (8 * uint(i))
		}
		c, err := transaction.WriteVar(dev, byte(cmd.Code), v, cmd.Shape.InLen)
		if err != nil {
			return Response{}, err
		}
		return Response{Completion: c}, nil
	}
	if cmd.Shape.OutLen == 0 {
		if err := transaction.WriteCmd(dev, byte(cmd.Code)); err != nil {
			return Response{}, err
		}
		return Response{}, nil
	}

	v, err := transaction.ReadVar(dev, byte(cmd.Code), cmd.Shape.OutLen)
	if err != nil {
		return Response{}, err
	}
	out := make([]byte, cmd.Shape.OutLen)
	for i := range out {
		out[i] = byte(v >> (8 * uint(i)))
	}
	return Response{Out: out}, nil
}

func dispatchGenericIO(dev *device.Device, cmd Command, req Request) (Response, error) {
	completion, out, err := transaction.GenericIO(dev, byte(cmd.Code), req.In, req.OutLen)
	if err != nil {
		return Response{}, err
	}
	return Response{Completion: completion, Out: out}, nil
}

func dispatchMemoryMap(dev *device.Device, cmd Command) (Response, error) {
	if cmd.Name == "UNMAP_MAPPED_MEM" {
		return Response{}, nil
	}

	if len(dev.Resources.Mems) == 0 || dev.Resources.Mems[0].Mapped == nil {
		return Response{Map: &MapDecision{Mappable: false}}, errs.New(errs.NotSupportedOnOs)
	}

	base := dev.Resources.Mems[0].Base + asicHeaderSize
	return Response{Map: &MapDecision{Mappable: true, Base: base, Length: pageSize}}, nil
}

func dispatchAdmin(dev *device.Device, cfg config.Config, cmd Command) (Response, error) {
	if cmd.Name == "FORCE_RESET" {
		if !cfg.AllowForceReset {
			return Response{}, errs.New(errs.Permission)
		}
		if err := transaction.WriteCmd(dev, byte(cmd.Code)); err != nil {
			return Response{}, err
		}
		return Response{}, nil
	}
	return Response{}, errs.New(errs.NotSupportedByDevice)
}

func encodeLE32(dst []byte, v uint32) {
	dst[0], dst[1], dst[2], dst[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}

