package device

import "github.com/mburnicki/mbgclock-drvr-sub000/internal/bitset"

// HasFeature is the single query answering every capability question
// (spec.md §4.D step 14, Glossary "Feature predicate"). It never touches
// hardware.
func (d *Device) HasFeature(kind FeatureKind, n int) bool {
	switch kind {
	case FeatBuiltin:
		return bitset.Get(d.RealBuiltinFeatures, n)
	case FeatRefType:
		return int(d.RefClock) == n
	case FeatPcps:
		return bitset.Get(d.PcpsFeatures, n)
	case FeatRI:
		return bitset.Get(d.ReceiverInfo.Features, n)
	case FeatXFeat:
		return d.XFeatureBuffer.bit(n)
	case FeatTlvFeat:
		return d.TLVInfo.bit(n)
	default:
		return false
	}
}
