// Package ioctl implements the command dispatcher of spec.md §4.H: a
// data-driven table of codes (supplemented from
// original_source/include/macioctl.h's ~120-entry switch), each gated by
// a required privilege level and a feature predicate, dispatching into
// the transaction layer, the probe engine's feature predicate, or the
// fast timestamp path.
//
// The table uses exactly the IOCTL_GENERIC_REQ shape (one descriptor
// carrying code, in-length, out-length, in/out pointers) rather than the
// legacy in-band length-prefix ABI: SPEC_FULL.md §H / Design Notes §9
// call for "exactly one" shape, and the generic-request shape is the one
// a modern host integration should use.
package ioctl

import "github.com/mburnicki/mbgclock-drvr-sub000/device"

// Privilege is the access level required to invoke a command (spec.md
// §4.H "required privilege level").
type Privilege int

const (
	PrivNone Privilege = iota
	PrivExtStatus
	PrivCfgRead
	PrivCfgWrite
	PrivSystem
)

// Shape describes a command's input/output sizes. A negative value means
// "device-reported": the transaction layer's generic_io queries the
// device for the expected byte count before the copy (spec.md §6 "Every
// write-shaped code's payload size is first queried from the device").
type Shape struct {
	InLen  int
	OutLen int
}

const deviceReported = -1

// Category groups commands and selects the path Dispatch runs for them;
// CategoryCapabilityQuery commands also bypass the unsafe-IRQ gate.
type Category int

const (
	CategoryCurrentTime Category = iota
	CategoryUcapEvents
	CategoryConfig
	CategoryCapabilityQuery
	CategoryGenericIO
	CategoryMemoryMap
	CategoryAdmin
)

// FeaturePredicate is optional per-command capability gating (spec.md
// §4.H "a feature predicate that must hold"). A nil predicate means the
// command is always available once privilege and IRQ-safety checks pass.
type FeaturePredicate func(dev *device.Device) bool

// Command is one entry of the data-driven dispatch table (SPEC_FULL.md
// §H, Design Notes §9 "columnar layout guidance applied ... to the
// command table").
type Command struct {
	Code      uint16
	Name      string
	Privilege Privilege
	Feature   FeaturePredicate
	Category  Category
	Shape     Shape
}

func featBuiltin(n int) FeaturePredicate {
	return func(dev *device.Device) bool { return dev.HasFeature(device.FeatBuiltin, n) }
}

func featPcps(n int) FeaturePredicate {
	return func(dev *device.Device) bool { return dev.HasFeature(device.FeatPcps, n) }
}

// Table is the command set of spec.md §6's code ranges, supplemented from
// original_source/include/macioctl.h's switch (names kept verbatim so the
// table reads as a faithful transcription, not a reinvention).
var Table = []Command{
	// 0x00..0x0F: fixed-size get-time.
	{Code: 0x00, Name: "GET_FAST_HR_TIMESTAMP", Privilege: PrivNone, Feature: featBuiltin(device.BuiltinHasMMIOTimestamp), Category: CategoryCurrentTime, Shape: Shape{OutLen: 8}},
	{Code: 0x01, Name: "GET_PCPS_HR_TIME", Privilege: PrivNone, Category: CategoryCurrentTime, Shape: Shape{OutLen: 16}},
	{Code: 0x02, Name: "GET_PCPS_TIME", Privilege: PrivNone, Category: CategoryCurrentTime, Shape: Shape{OutLen: 8}},
	{Code: 0x03, Name: "GET_TIME_INFO_HRT", Privilege: PrivNone, Category: CategoryCurrentTime, Shape: Shape{OutLen: 24}},
	{Code: 0x04, Name: "GET_PCPS_TIME_SEC_CHANGE", Privilege: PrivNone, Category: CategoryCurrentTime, Shape: Shape{OutLen: 8}},
	{Code: 0x05, Name: "GET_PCPS_SYNC_TIME", Privilege: PrivNone, Category: CategoryCurrentTime, Shape: Shape{OutLen: 8}},

	// 0x10..0x1F: set-time / set-event-time.
	{Code: 0x10, Name: "SET_GPS_TIME", Privilege: PrivCfgWrite, Category: CategoryConfig, Shape: Shape{InLen: 8}},
	{Code: 0x11, Name: "SET_PCPS_EVENT_TIME", Privilege: PrivCfgWrite, Category: CategoryConfig, Shape: Shape{InLen: 8}},

	// 0x20..0x2F: IRQ control (mostly obsolete -- kept for completeness).
	{Code: 0x20, Name: "GET_IRQ_STAT_INFO", Privilege: PrivExtStatus, Category: CategoryConfig, Shape: Shape{OutLen: 4}},

	// 0x30..0x3F: legacy get/set config.
	{Code: 0x30, Name: "GET_PCPS_TZCODE", Privilege: PrivExtStatus, Feature: featPcps(device.PcpsHasTZCode), Category: CategoryConfig, Shape: Shape{OutLen: 1}},
	{Code: 0x31, Name: "SET_PCPS_TZCODE", Privilege: PrivCfgWrite, Feature: featPcps(device.PcpsHasTZCode), Category: CategoryConfig, Shape: Shape{InLen: 1}},
	{Code: 0x32, Name: "GET_PCPS_TZDL", Privilege: PrivExtStatus, Feature: featPcps(device.PcpsHasTZDL), Category: CategoryConfig, Shape: Shape{OutLen: 6}},
	{Code: 0x33, Name: "SET_PCPS_TZDL", Privilege: PrivCfgWrite, Feature: featPcps(device.PcpsHasTZDL), Category: CategoryConfig, Shape: Shape{InLen: 6}},
	{Code: 0x34, Name: "GET_PCPS_IRIG_RX_INFO", Privilege: PrivExtStatus, Feature: featPcps(device.PcpsHasIRIGRx), Category: CategoryConfig, Shape: Shape{OutLen: 8}},
	{Code: 0x35, Name: "SET_PCPS_IRIG_RX_SETTINGS", Privilege: PrivCfgWrite, Feature: featPcps(device.PcpsHasIRIGRx), Category: CategoryConfig, Shape: Shape{InLen: 8}},
	{Code: 0x36, Name: "GET_PCPS_IRIG_TX_INFO", Privilege: PrivExtStatus, Feature: featPcps(device.PcpsHasIRIGTx), Category: CategoryConfig, Shape: Shape{OutLen: 8}},
	{Code: 0x37, Name: "SET_PCPS_IRIG_TX_SETTINGS", Privilege: PrivCfgWrite, Feature: featPcps(device.PcpsHasIRIGTx), Category: CategoryConfig, Shape: Shape{InLen: 8}},
	{Code: 0x38, Name: "GET_REF_OFFS", Privilege: PrivExtStatus, Feature: featPcps(device.PcpsHasRefOffs), Category: CategoryConfig, Shape: Shape{OutLen: 4}},

	// 0x40..0x4F: firmware id, serial, generic I/O init, ASIC features,
	// status port.
	{Code: 0x40, Name: "GET_PCPS_SERIAL", Privilege: PrivExtStatus, Feature: featBuiltin(device.BuiltinHasSerial), Category: CategoryConfig, Shape: Shape{OutLen: 16}},
	{Code: 0x41, Name: "GET_PCI_ASIC_VERSION", Privilege: PrivExtStatus, Category: CategoryConfig, Shape: Shape{OutLen: 4}},
	{Code: 0x42, Name: "GET_PCI_ASIC_FEATURES", Privilege: PrivExtStatus, Category: CategoryConfig, Shape: Shape{OutLen: 4}},
	{Code: 0x43, Name: "GET_PCPS_STATUS_PORT", Privilege: PrivExtStatus, Category: CategoryConfig, Shape: Shape{OutLen: 1}},
	{Code: 0x44, Name: "GET_GPS_RECEIVER_INFO", Privilege: PrivExtStatus, Feature: featBuiltin(device.BuiltinHasReceiverInfo), Category: CategoryConfig, Shape: Shape{OutLen: 16}},

	// 0x50..0x5F: large-structure transport.
	{Code: 0x50, Name: "PCPS_GENERIC_READ_GPS", Privilege: PrivExtStatus, Feature: featBuiltin(device.BuiltinHasReceiverInfo), Category: CategoryGenericIO, Shape: Shape{OutLen: deviceReported}},
	{Code: 0x51, Name: "PCPS_GENERIC_WRITE_GPS", Privilege: PrivCfgWrite, Feature: featBuiltin(device.BuiltinHasReceiverInfo), Category: CategoryGenericIO, Shape: Shape{InLen: deviceReported}},
	{Code: 0x52, Name: "GET_GPS_POS", Privilege: PrivExtStatus, Feature: featBuiltin(device.BuiltinHasReceiverInfo), Category: CategoryConfig, Shape: Shape{OutLen: 16}},
	{Code: 0x53, Name: "SET_GPS_POS_LLA", Privilege: PrivCfgWrite, Feature: featBuiltin(device.BuiltinHasReceiverInfo), Category: CategoryConfig, Shape: Shape{InLen: 16}},

	// 0x60..0x6F: ucap FIFO, correlation info, transmitter distance,
	// event log.
	{Code: 0x60, Name: "GET_PCPS_UCAP_EVENT", Privilege: PrivExtStatus, Feature: featPcps(device.PcpsHasUcap), Category: CategoryUcapEvents, Shape: Shape{OutLen: 8}},
	{Code: 0x61, Name: "GET_PCPS_UCAP_ENTRIES", Privilege: PrivExtStatus, Feature: featPcps(device.PcpsHasUcap), Category: CategoryUcapEvents, Shape: Shape{OutLen: 1}},
	{Code: 0x62, Name: "PCPS_CLR_UCAP_BUFF", Privilege: PrivCfgWrite, Feature: featPcps(device.PcpsHasUcap), Category: CategoryUcapEvents, Shape: Shape{}},
	{Code: 0x63, Name: "GET_CORR_INFO", Privilege: PrivExtStatus, Feature: featPcps(device.PcpsHasCorrInfo), Category: CategoryConfig, Shape: Shape{OutLen: 8}},
	{Code: 0x64, Name: "GET_TR_DISTANCE", Privilege: PrivExtStatus, Feature: featPcps(device.PcpsHasTXDistance), Category: CategoryConfig, Shape: Shape{OutLen: 4}},
	{Code: 0x65, Name: "GET_NUM_EVT_LOG_ENTRIES", Privilege: PrivExtStatus, Feature: featPcps(device.PcpsHasEventLog), Category: CategoryConfig, Shape: Shape{OutLen: 4}},
	{Code: 0x66, Name: "GET_FIRST_EVT_LOG_ENTRY", Privilege: PrivExtStatus, Feature: featPcps(device.PcpsHasEventLog), Category: CategoryConfig, Shape: Shape{OutLen: 16}},
	{Code: 0x67, Name: "GET_NEXT_EVT_LOG_ENTRY", Privilege: PrivExtStatus, Feature: featPcps(device.PcpsHasEventLog), Category: CategoryConfig, Shape: Shape{OutLen: 16}},
	{Code: 0x68, Name: "CLR_EVT_LOG", Privilege: PrivCfgWrite, Feature: featPcps(device.PcpsHasEventLog), Category: CategoryConfig, Shape: Shape{}},

	// Capability query -- never touches hardware.
	{Code: 0x70, Name: "CHK_DEV_FEAT", Privilege: PrivNone, Category: CategoryCapabilityQuery, Shape: Shape{InLen: 2, OutLen: 1}},
	{Code: 0x71, Name: "DEV_HAS_PTP", Privilege: PrivNone, Category: CategoryCapabilityQuery, Shape: Shape{OutLen: 1}},
	{Code: 0x72, Name: "DEV_HAS_GPIO", Privilege: PrivNone, Category: CategoryCapabilityQuery, Shape: Shape{OutLen: 1}},
	{Code: 0x73, Name: "DEV_HAS_UCAP", Privilege: PrivNone, Category: CategoryCapabilityQuery, Shape: Shape{OutLen: 1}},
	{Code: 0x74, Name: "DEV_HAS_XMR", Privilege: PrivNone, Category: CategoryCapabilityQuery, Shape: Shape{OutLen: 1}},
	{Code: 0x75, Name: "DEV_IS_GPS", Privilege: PrivNone, Category: CategoryCapabilityQuery, Shape: Shape{OutLen: 1}},

	// Memory map.
	{Code: 0x78, Name: "GET_MAPPED_MEM_ADDR", Privilege: PrivExtStatus, Feature: featBuiltin(device.BuiltinHasMMIOTimestamp), Category: CategoryMemoryMap, Shape: Shape{OutLen: 8}},
	{Code: 0x79, Name: "UNMAP_MAPPED_MEM", Privilege: PrivExtStatus, Feature: featBuiltin(device.BuiltinHasMMIOTimestamp), Category: CategoryMemoryMap, Shape: Shape{}},

	// Generic I/O.
	{Code: 0x7C, Name: "PCPS_GENERIC_IO", Privilege: PrivExtStatus, Category: CategoryGenericIO, Shape: Shape{InLen: deviceReported, OutLen: deviceReported}},
	{Code: 0x7D, Name: "PCPS_GENERIC_READ", Privilege: PrivExtStatus, Category: CategoryGenericIO, Shape: Shape{OutLen: deviceReported}},
	{Code: 0x7E, Name: "PCPS_GENERIC_WRITE", Privilege: PrivCfgWrite, Category: CategoryGenericIO, Shape: Shape{InLen: deviceReported}},

	// Admin -- System privilege only.
	{Code: 0x80, Name: "FORCE_RESET", Privilege: PrivSystem, Category: CategoryAdmin, Shape: Shape{}},
}

// byCode is built once for O(1) lookup from Dispatch.
var byCode = func() map[uint16]Command {
	m := make(map[uint16]Command, len(Table))
	for _, c := range Table {
		m[c.Code] = c
	}
	return m
}()

// Lookup returns the Command registered for code, and whether it exists.
func Lookup(code uint16) (Command, bool) {
	c, ok := byCode[code]
	return c, ok
}
