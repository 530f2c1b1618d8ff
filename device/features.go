package device

// Builtin features: fixed capabilities inherent to a device type,
// narrowed by firmware-version gates (spec.md §3 "default_builtin_features,
// real_builtin_features" / §4.D step 9).
const (
	BuiltinHasSerial = iota
	BuiltinHasReceiverInfo
	BuiltinHasIRQ
	BuiltinHasMMIOTimestamp
	BuiltinHasXFeature
	BuiltinHasTLV
)

// Pcps features: derived per device type, then enabled by firmware
// revision thresholds and by cross-referencing receiver_info.features
// (spec.md §4.D step 9/11). Named after the original driver's PCPS_HAS_*
// bit family, supplemented from original_source/include/pcpsdefs.h beyond
// spec.md's illustrative subset, per SPEC_FULL.md §4.D.
const (
	PcpsHasSerial = iota
	PcpsHasSetTime
	PcpsHasSyncTime
	PcpsHasTimeScale
	PcpsHasUTCParm
	PcpsHasPTP
	PcpsHasXMRSettings
	PcpsHasGPIO
	PcpsHasUcap
	PcpsHasEventLog
	PcpsHasTXDistance
	PcpsHasCorrInfo
	PcpsHasLAN
	PcpsHasTZCode
	PcpsHasTZDL
	PcpsHasRefOffs
	PcpsHasOptSettings
	PcpsHasIRIGRx
	PcpsHasIRIGTx
	PcpsHasSynth
	// PcpsHasLongGPSLength selects the 2-byte length field in the
	// READ_GPS_DATA/WRITE_GPS_DATA handshake (spec.md §4.C: "reads either a
	// 1-byte or a 2-byte length field (device-capability-dependent)").
	PcpsHasLongGPSLength
)

// FeatureKind selects which underlying bitset has_feature dispatches
// against (spec.md §4.D step 14).
type FeatureKind int

const (
	FeatBuiltin FeatureKind = iota
	FeatRefType
	FeatPcps
	FeatRI
	FeatXFeat
	FeatTlvFeat
)

// FeatureGate ties a pcps_features bit to the firmware revision at which
// it becomes available (spec.md §4.D step 9).
type FeatureGate struct {
	RequiredFWRev uint16
	Bit           int
}

// ReceiverInfo is the device-supplied capability descriptor above raw
// feature bits (spec.md §3 "receiver_info").
type ReceiverInfo struct {
	Model          uint16
	SoftwareRev    uint16
	ChannelCount   uint8
	OscillatorType uint8
	Features       uint32
}

// receiver_info.features bits (spec.md §3: "GPS-level features such as
// PTP, LAN, XMR, GPIO, XFeature-supported, TLV-supported").
const (
	RIFeatTimeScale = 13
	RIFeatPTP       = 15
	RIFeatLAN       = 16
	RIFeatXMR       = 17
	RIFeatGPIO      = 18
	RIFeatXFeature  = 30
	RIFeatTLVAPI    = 31
)

// RIToPcps maps a receiver_info.features bit to every pcps_features bit it
// implies (spec.md §4.D step 11: "for each GPS-feature bit set, OR the
// corresponding pcps_features flag from a static 32-entry mapping table").
// A bit may imply more than one pcps_features flag: time-scale support
// implies both PcpsHasTimeScale directly and PcpsHasUTCParm (spec.md §8
// scenario 3). Entries not relevant to any pcps_features flag are simply
// omitted; the table need not be dense.
var RIToPcps = map[int][]int{
	RIFeatTimeScale: {PcpsHasTimeScale, PcpsHasUTCParm},
	RIFeatPTP:       {PcpsHasPTP},
	RIFeatLAN:       {PcpsHasLAN},
	RIFeatXMR:       {PcpsHasXMRSettings},
	RIFeatGPIO:      {PcpsHasGPIO},
}

// TLVInfo layers newer capabilities on top of receiver_info.features
// without breaking the old field layout (spec.md §3, Glossary "TLV info").
type TLVInfo struct {
	Flags uint32
	// Supported is an opaque bitset of supported TLV feature types.
	Supported []byte
}

func (t *TLVInfo) bit(n int) bool {
	idx := n / 8
	if idx >= len(t.Supported) {
		return false
	}
	return t.Supported[idx]&(1<<uint(n%8)) != 0
}

// XFeatureBuffer is the opaque extended-feature bitset (spec.md §3:
// "opaque bitset (<= a few hundred bits) listing extended features").
type XFeatureBuffer []byte

func (x XFeatureBuffer) bit(n int) bool {
	idx := n / 8
	if idx >= len(x) {
		return false
	}
	return x[idx]&(1<<uint(n%8)) != 0
}
