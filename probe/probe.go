// Package probe implements the fourteen-step probe and capability engine
// of spec.md §4.D: given a partially-filled device.Device carrying
// bus-kind, device-id and discovered resources, it populates the
// descriptor fully or returns a classified failure.
package probe

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mburnicki/mbgclock-drvr-sub000/config"
	"github.com/mburnicki/mbgclock-drvr-sub000/device"
	"github.com/mburnicki/mbgclock-drvr-sub000/devtype"
	"github.com/mburnicki/mbgclock-drvr-sub000/errs"
	"github.com/mburnicki/mbgclock-drvr-sub000/transport"
	"github.com/sirupsen/logrus"
)

// Command bytes in the 0x40..0x4F "firmware id, serial, generic I/O init,
// ASIC features, status port" band of spec.md §6.
const (
	cmdFirmwareIDPart1 = 0x40
	cmdFirmwareIDPart2 = 0x41
	cmdASICRawVersion  = 0x42
	cmdASICFeatures    = 0x43
	cmdSerialNumber    = 0x44
	cmdIdentLegacy     = 0x45
	cmdReceiverInfo    = 0x46
	cmdXFeature        = 0x47
	cmdTLVInfo         = 0x48
)

const firmwareBlockSize = 16

// BoardReady is the PCIe-boots-Linux-on-card GPIO readiness check of
// spec.md §4.D step 4. A nil BoardReady is treated as "never ready via
// GPIO", falling through to the uptime cap.
type BoardReady func(dev *device.Device) bool

// Options configures a single probe run; fields not set use their
// documented fallback per spec.md §4.D.
type Options struct {
	Uptime     UptimeSource
	BoardReady BoardReady
	Log        *logrus.Entry
}

// Probe runs the fourteen steps of spec.md §4.D, early-exiting on the
// first classified failure.
func Probe(dev *device.Device, cfg config.Config, opts Options) error {
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithFields(logrus.Fields{"bus": dev.Bus.String(), "dev_id": dev.DevID})

	// Step 1: identity lookup.
	if err := lookupIdentity(dev); err != nil {
		log.WithError(err).Warn("probe: device not supported")
		return err
	}

	// Step 2: per-transport wiring, including the PEX8311 BAR swap.
	wireTransport(dev)

	// Step 3: mutexes/spinlocks are zero-value-ready in Go; nothing to defer.

	// Step 4: PCIe-boots-Linux-on-card readiness wait.
	if dev.Type == devtype.TypeMBGPEX || dev.Type == devtype.TypeGNS181PEX {
		waitBoardReady(dev, opts)
	}

	// Step 5: two-part firmware-id read.
	fwID, err := readFirmwareID(dev)
	if err != nil {
		if dev.Bus == devtype.BusISA {
			log.Debug("probe: no device at isa address")
			return errs.New(errs.NoDevice)
		}
		dev.ErrorFlags |= device.ErrBadFirmwareID
		log.WithError(err).Warn("probe: firmware id read failed")
		return errs.Wrap(errs.UnknownFirmwareId, err)
	}
	dev.FirmwareID = fwID

	// Step 6: ISA type inference from firmware-id prefix and magic word.
	if dev.Bus == devtype.BusISA {
		inferISAType(dev)
	}

	// Step 7: parse X.YY firmware revision.
	rev, err := parseFirmwareRevision(fwID)
	if err != nil {
		dev.ErrorFlags |= device.ErrBadFirmwareID
		log.WithError(err).Warn("probe: could not parse firmware revision")
		return errs.Wrap(errs.UnknownFirmwareId, err)
	}
	dev.FirmwareRevision = rev

	profile := typeTable[dev.Type]

	// Step 8: ASIC raw version and features.
	if profile.hasASIC {
		if err := readASIC(dev); err != nil {
			dev.ErrorFlags |= device.ErrIOInitFailed
			log.WithError(err).Warn("probe: asic read failed")
			return err
		}
	}

	// Step 9: feature gating and IRQ-unsafe classification.
	applyFeatureGates(dev, profile)

	// Step 10: serial number.
	serial, err := readSerialNumber(dev, profile)
	if err != nil {
		log.WithError(err).Debug("probe: serial number unavailable")
	}
	dev.SerialNumber = sanitizeSerial(serial)

	// Step 11: receiver_info.
	if dev.HasFeature(device.FeatBuiltin, device.BuiltinHasReceiverInfo) {
		if err := readReceiverInfo(dev); err != nil {
			log.WithError(err).Warn("probe: receiver_info read failed")
			return err
		}
		applyReceiverInfoFeatures(dev)
	} else {
		dev.ReceiverInfo = defaultReceiverInfo(dev)
	}

	// Step 12: extended-feature bitset.
	if dev.HasFeature(device.FeatRI, device.RIFeatXFeature) {
		if err := readXFeature(dev); err != nil {
			log.WithError(err).Warn("probe: xfeature read failed")
			return err
		}
	}

	// Step 13: TLV info.
	if dev.HasFeature(device.FeatXFeat, int(device.RIFeatTLVAPI)) {
		if err := readTLVInfo(dev); err != nil {
			log.WithError(err).Warn("probe: tlv info read failed")
			return err
		}
	}

	log.WithFields(logrus.Fields{
		"type":   dev.Name,
		"fw_rev": fmt.Sprintf("0x%04x", dev.FirmwareRevision),
		"serial": dev.SerialNumber,
		"unsafe": dev.IRQStatus.Unsafe,
	}).Info("probe: device ready")

	return nil
}

func lookupIdentity(dev *device.Device) error {
	var d devtype.Descriptor
	var ok bool

	switch dev.Bus {
	case devtype.BusPCI:
		d, ok = devtype.LookupPCI(devtype.MeinbergVendorID, dev.DevID)
	case devtype.BusUSB:
		d, ok = devtype.LookupUSB(devtype.MeinbergVendorID, dev.DevID)
	case devtype.BusISA, devtype.BusMCA:
		// Step 1 on ISA/MCA only narrows by device-id if the caller
		// already knows it; full ISA inference happens at step 6 once
		// the firmware id is known.
		ok = true
	default:
		ok = false
	}

	if !ok {
		return errs.New(errs.NotSupportedByDevice)
	}

	dev.Type = d.Type
	dev.Name = d.Name
	dev.RefClock = d.RefClock
	return nil
}

func wireTransport(dev *device.Device) {
	if needsPEX8311Swap(dev.Type) {
		dev.Resources.SwapPEX8311BARs()
	}

	switch dev.TransportKind {
	case device.TransportS5933:
		if len(dev.Resources.Ports) > 0 {
			dev.Transport = transport.S5933{Port: dev.Resources.Ports[0].Base}
		}
	case device.TransportS5920:
		if len(dev.Resources.Ports) > 1 {
			dev.Transport = transport.S5920{Bar0Port: dev.Resources.Ports[0].Base, Bar1Port: dev.Resources.Ports[1].Base}
		}
	case device.TransportAsicPio:
		if len(dev.Resources.Ports) > 0 {
			dev.Transport = transport.AsicPIO{Port: dev.Resources.Ports[0].Base}
		}
	case device.TransportAsicMmio:
		if len(dev.Resources.Mems) > 0 {
			dev.Transport = transport.AsicMMIO{Window: &dev.Resources.Mems[0]}
		}
	case device.TransportAsicMmio16:
		if len(dev.Resources.Mems) > 0 {
			dev.Transport = transport.AsicMMIO16{Window: &dev.Resources.Mems[0]}
		}
	case device.TransportUSB:
		dev.Transport = transport.USB{}
	default:
		if dev.Transport == nil {
			dev.Transport = transport.Null{}
		}
	}
}

func needsPEX8311Swap(t devtype.Type) bool {
	return t == devtype.TypePEX511
}

func waitBoardReady(dev *device.Device, opts Options) {
	deadline := time.Now().Add(boardReadyUptimeCap)

	for {
		if opts.BoardReady != nil && opts.BoardReady(dev) {
			return
		}
		if opts.Uptime != nil {
			if up, ok := opts.Uptime.Uptime(); ok {
				if up >= boardReadyUptimeCap {
					return
				}
			} else {
				return // no uptime source: skip the wait
			}
		}
		if time.Now().After(deadline) {
			return
		}
	}
}

func readFirmwareID(dev *device.Device) (string, error) {
	dev.DevMutex.Lock()
	defer dev.DevMutex.Unlock()

	var buf bytes.Buffer
	for _, cmd := range []byte{cmdFirmwareIDPart1, cmdFirmwareIDPart2} {
		part := make([]byte, firmwareBlockSize)
		if err := dev.Transport.Read(dev, []byte{cmd}, part); err != nil {
			return "", err
		}
		buf.Write(part)
	}

	s := strings.TrimRight(buf.String(), "\x00 ")
	return s, nil
}

func inferISAType(dev *device.Device) {
	if len(dev.FirmwareID) < 6 {
		return
	}
	prefix := dev.FirmwareID[:6]

	// base+2 magic word; only meaningful to a live PortBus, defaulted to 0
	// when unavailable, per the optional-ISA-probing decision recorded in
	// DESIGN.md.
	var magic uint16
	if dev.PortBus != nil && len(dev.Resources.Ports) > 0 {
		magic = dev.PortBus.In16(dev.Resources.Ports[0].Base + 2)
	}

	if d, ok := devtype.LookupISA(prefix, magic); ok {
		dev.Type = d.Type
		dev.Name = d.Name
		dev.RefClock = d.RefClock
	}
}

// parseFirmwareRevision parses an embedded "X.YY" substring and packs it
// to 0xXYY (spec.md §4.D step 7).
func parseFirmwareRevision(fwID string) (uint16, error) {
	for i := 0; i < len(fwID); i++ {
		if fwID[i] < '0' || fwID[i] > '9' {
			continue
		}
		if i+4 <= len(fwID) && fwID[i+1] == '.' {
			major, err := strconv.Atoi(fwID[i : i+1])
			if err != nil {
				continue
			}
			minor, err := strconv.Atoi(fwID[i+2 : i+4])
			if err != nil {
				continue
			}
			return uint16(major)<<8 | uint16(minor/10)<<4 | uint16(minor%10), nil
		}
	}
	return 0, fmt.Errorf("probe: no X.YY revision found in %q", fwID)
}

func readASIC(dev *device.Device) error {
	dev.DevMutex.Lock()
	defer dev.DevMutex.Unlock()

	raw := make([]byte, 4)
	if err := dev.Transport.Read(dev, []byte{cmdASICRawVersion}, raw); err != nil {
		return err
	}
	dev.ASICRawVersion = uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24
	dev.ASICVersionMajor, dev.ASICVersionMinor = decodeASICVersion(dev.ASICRawVersion)

	feat := make([]byte, 4)
	if err := dev.Transport.Read(dev, []byte{cmdASICFeatures}, feat); err != nil {
		return err
	}
	dev.ASICFeatures = uint32(feat[0]) | uint32(feat[1])<<8 | uint32(feat[2])<<16 | uint32(feat[3])<<24

	return nil
}

func decodeASICVersion(raw uint32) (major, minor uint8) {
	return uint8(raw >> 8), uint8(raw)
}

func applyFeatureGates(dev *device.Device, profile typeProfile) {
	dev.DefaultBuiltinFeatures = profile.defaultBuiltin
	dev.RealBuiltinFeatures = profile.defaultBuiltin
	dev.PcpsFeatures = profile.basePcps

	for _, gate := range profile.gates {
		if dev.FirmwareRevision >= gate.RequiredFWRev {
			dev.PcpsFeatures |= 1 << uint(gate.Bit)
		}
	}

	for _, gate := range profile.irqUnsafe {
		if gate.below(dev.FirmwareRevision, dev.ASICVersionMajor, dev.ASICVersionMinor) {
			dev.IRQStatus.Unsafe = true
		}
	}
}

func readSerialNumber(dev *device.Device, profile typeProfile) (string, error) {
	dev.DevMutex.Lock()
	defer dev.DevMutex.Unlock()

	if profile.hasSerialCmd {
		buf := make([]byte, 17)
		if err := dev.Transport.Read(dev, []byte{cmdSerialNumber}, buf); err == nil {
			return string(buf), nil
		}
	}

	// Fall back to decoding from the older IDENT payload (spec.md §4.D
	// step 10: "or decode it from an older IDENT payload").
	ident := make([]byte, 32)
	if err := dev.Transport.Read(dev, []byte{cmdIdentLegacy}, ident); err != nil {
		return "", err
	}
	if len(ident) < 17 {
		return "", errs.New(errs.InvalidType)
	}
	return string(ident[len(ident)-17:]), nil
}

// sanitizeSerial strips non-printables and trims trailing spaces/F's,
// substituting a placeholder when nothing is left (spec.md §4.D step 10).
func sanitizeSerial(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 0x20 && r < 0x7f {
			b.WriteRune(r)
		}
	}
	cleaned := strings.TrimRight(b.String(), " F")
	if cleaned == "" {
		return "????????"
	}
	return cleaned
}

func readReceiverInfo(dev *device.Device) error {
	dev.DevMutex.Lock()
	defer dev.DevMutex.Unlock()

	buf := make([]byte, 10)
	if err := dev.Transport.Read(dev, []byte{cmdReceiverInfo}, buf); err != nil {
		return err
	}

	dev.ReceiverInfo = device.ReceiverInfo{
		Model:          uint16(buf[0]) | uint16(buf[1])<<8,
		SoftwareRev:    uint16(buf[2]) | uint16(buf[3])<<8,
		ChannelCount:   buf[4],
		OscillatorType: buf[5],
		Features:       uint32(buf[6]) | uint32(buf[7])<<8 | uint32(buf[8])<<16 | uint32(buf[9])<<24,
	}
	return nil
}

func defaultReceiverInfo(dev *device.Device) device.ReceiverInfo {
	return device.ReceiverInfo{Model: uint16(dev.Type)}
}

// applyReceiverInfoFeatures implements spec.md §4.D step 11: "for each
// GPS-feature bit set, OR the corresponding pcps_features flag from a
// static 32-entry mapping table".
func applyReceiverInfoFeatures(dev *device.Device) {
	for riBit, pcpsBits := range device.RIToPcps {
		if dev.ReceiverInfo.Features&(1<<uint(riBit)) == 0 {
			continue
		}
		for _, pcpsBit := range pcpsBits {
			dev.PcpsFeatures |= 1 << uint(pcpsBit)
		}
	}
}

func readXFeature(dev *device.Device) error {
	dev.DevMutex.Lock()
	defer dev.DevMutex.Unlock()

	buf := make([]byte, 32)
	if err := dev.Transport.Read(dev, []byte{cmdXFeature}, buf); err != nil {
		return err
	}
	dev.XFeatureBuffer = device.XFeatureBuffer(buf)
	return nil
}

func readTLVInfo(dev *device.Device) error {
	dev.DevMutex.Lock()
	defer dev.DevMutex.Unlock()

	buf := make([]byte, 20)
	if err := dev.Transport.Read(dev, []byte{cmdTLVInfo}, buf); err != nil {
		return err
	}

	dev.TLVInfo = device.TLVInfo{
		Flags:     uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24,
		Supported: buf[4:],
	}
	return nil
}
