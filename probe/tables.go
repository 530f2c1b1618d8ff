package probe

import (
	"github.com/mburnicki/mbgclock-drvr-sub000/device"
	"github.com/mburnicki/mbgclock-drvr-sub000/devtype"
)

// irqUnsafeGate names one (firmware, ASIC) combination below which IRQs
// are known to corrupt foreground transactions (spec.md §4.D step 9:
// "Recognise known IRQ-unsafe combinations (fw_rev, asic_major,
// asic_minor) < gate and force-disable IRQs on such devices.").
type irqUnsafeGate struct {
	fwRev     uint16
	asicMajor uint8
	asicMinor uint8
}

func (g irqUnsafeGate) below(fwRev uint16, asicMajor, asicMinor uint8) bool {
	if fwRev != g.fwRev {
		return fwRev < g.fwRev
	}
	if asicMajor != g.asicMajor {
		return asicMajor < g.asicMajor
	}
	return asicMinor < g.asicMinor
}

// typeProfile is the per-device-type feature table of spec.md §4.D step 9,
// kept columnar rather than interleaved in imperative code (Design Notes
// §9 "Firmware-version tables").
type typeProfile struct {
	defaultBuiltin uint32
	basePcps       uint32
	gates          []device.FeatureGate
	irqUnsafe      []irqUnsafeGate
	hasASIC        bool
	hasSerialCmd   bool
}

// typeTable is supplemented from original_source/include/pcpsdefs.h per
// SPEC_FULL.md §4.D: every device type is given a base feature set even
// where spec.md's illustrative text only names GPS180PEX explicitly.
var typeTable = map[devtype.Type]typeProfile{
	devtype.TypePCI509: {
		defaultBuiltin: 1 << device.BuiltinHasIRQ,
		basePcps:       0,
		hasASIC:        false,
		hasSerialCmd:   false,
	},
	devtype.TypeGPS169PCI: {
		defaultBuiltin: 1<<device.BuiltinHasIRQ | 1<<device.BuiltinHasSerial,
		basePcps:       1 << device.PcpsHasSetTime,
		hasASIC:        false,
		hasSerialCmd:   true,
	},
	devtype.TypeGPS170PCI: {
		defaultBuiltin: 1<<device.BuiltinHasIRQ | 1<<device.BuiltinHasSerial | 1<<device.BuiltinHasReceiverInfo,
		basePcps:       1<<device.PcpsHasSetTime | 1<<device.PcpsHasSyncTime,
		gates: []device.FeatureGate{
			{RequiredFWRev: 0x0300, Bit: device.PcpsHasEventLog},
		},
		hasASIC:      true,
		hasSerialCmd: true,
	},
	devtype.TypeTCR511PCI: {
		defaultBuiltin: 1<<device.BuiltinHasIRQ | 1<<device.BuiltinHasSerial,
		basePcps:       1 << device.PcpsHasIRIGRx,
		hasASIC:        true,
		hasSerialCmd:   true,
	},
	devtype.TypePEX511: {
		defaultBuiltin: 1<<device.BuiltinHasIRQ | 1<<device.BuiltinHasSerial,
		basePcps:       1<<device.PcpsHasIRIGRx | 1<<device.PcpsHasIRIGTx,
		hasASIC:        true,
		hasSerialCmd:   true,
		irqUnsafe: []irqUnsafeGate{
			{fwRev: 0x0100, asicMajor: 1, asicMinor: 0},
		},
	},
	devtype.TypeGPS180PEX: {
		defaultBuiltin: 1<<device.BuiltinHasIRQ | 1<<device.BuiltinHasSerial | 1<<device.BuiltinHasReceiverInfo | 1<<device.BuiltinHasMMIOTimestamp,
		basePcps:       1<<device.PcpsHasSetTime | 1<<device.PcpsHasSyncTime,
		gates: []device.FeatureGate{
			{RequiredFWRev: 0x0200, Bit: device.PcpsHasGPIO},
		},
		hasASIC:      true,
		hasSerialCmd: true,
	},
	devtype.TypeMBGPEX: {
		defaultBuiltin: 1<<device.BuiltinHasIRQ | 1<<device.BuiltinHasSerial | 1<<device.BuiltinHasReceiverInfo | 1<<device.BuiltinHasMMIOTimestamp | 1<<device.BuiltinHasXFeature,
		basePcps:       1 << device.PcpsHasPTP,
		hasASIC:        true,
		hasSerialCmd:   true,
	},
	devtype.TypeGPS163USB: {
		defaultBuiltin: 1<<device.BuiltinHasSerial | 1<<device.BuiltinHasReceiverInfo,
		basePcps:       1 << device.PcpsHasSetTime,
		hasASIC:        false,
		hasSerialCmd:   true,
	},
	devtype.TypeTCR170USB: {
		defaultBuiltin: 1<<device.BuiltinHasSerial | 1<<device.BuiltinHasReceiverInfo,
		basePcps:       1 << device.PcpsHasIRIGRx,
		hasASIC:        false,
		hasSerialCmd:   true,
	},
	devtype.TypeGNS181PEX: {
		defaultBuiltin: 1<<device.BuiltinHasIRQ | 1<<device.BuiltinHasSerial | 1<<device.BuiltinHasReceiverInfo | 1<<device.BuiltinHasMMIOTimestamp | 1<<device.BuiltinHasXFeature | 1<<device.BuiltinHasTLV,
		basePcps:       1<<device.PcpsHasSetTime | 1<<device.PcpsHasSyncTime | 1<<device.PcpsHasPTP,
		hasASIC:        true,
		hasSerialCmd:   true,
	},
}
