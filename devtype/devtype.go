// Package devtype holds the static device-identity tables consulted at
// probe time (spec.md §4.D step 1) and the PCI identity table an external
// plug-and-play layer uses to match candidate hardware (spec.md §6 "PCI").
package devtype

// Bus identifies the physical bus a candidate device was found on.
type Bus int

const (
	BusUnknown Bus = iota
	BusISA
	BusMCA
	BusPCI
	BusUSB
)

func (b Bus) String() string {
	switch b {
	case BusISA:
		return "isa"
	case BusMCA:
		return "mca"
	case BusPCI:
		return "pci"
	case BusUSB:
		return "usb"
	default:
		return "unknown"
	}
}

// RefClockClass is the family of reference clock a device implements.
type RefClockClass int

const (
	RefClockUnknown RefClockClass = iota
	RefClockGPS
	RefClockDCF
	RefClockMSF
	RefClockWWVB
	RefClockJJY
	RefClockIRIG
	RefClockPTP
	RefClockFRC // free-running clock
	RefClockGNSS
)

// Type is a symbolic device type, one entry per hardware variant the
// driver recognises.
type Type int

const (
	TypeUnknown Type = iota
	TypePCI509
	TypeGPS169PCI
	TypeGPS170PCI
	TypeTCR511PCI
	TypePEX511
	TypeGPS180PEX
	TypeMBGPEX
	TypeGPS163USB
	TypeTCR170USB
	TypeGNS181PEX
)

// Descriptor is the static, per-type information returned by the identity
// lookup of spec.md §4.D step 1.
type Descriptor struct {
	Type     Type
	Name     string
	RefClock RefClockClass
}

// isaKey identifies an ISA/MCA device by firmware-id prefix and the magic
// word documented in spec.md §9 open question 1 -- both interpretations
// (MCA POS id and ISA signature id) are kept side by side so either can be
// dropped later without touching callers.
type isaKey struct {
	prefix string
	magic  uint16
}

// pciKey identifies a PCI device by Meinberg vendor id and device id
// (spec.md §6: "Device ids encode a bus family in the high byte and a
// model in the low byte").
type pciKey struct {
	vendor uint16
	device uint16
}

// usbKey identifies a USB device by vendor/product id.
type usbKey struct {
	vendor  uint16
	product uint16
}

const MeinbergVendorID uint16 = 0x1360

var isaTable = map[isaKey]Descriptor{
	{prefix: "PCI509", magic: 0x509a}: {Type: TypePCI509, Name: "PCI509", RefClock: RefClockDCF},
	{prefix: "GPS169", magic: 0x169a}: {Type: TypeGPS169PCI, Name: "GPS169PCI", RefClock: RefClockGPS},
}

var pciTable = map[pciKey]Descriptor{
	{vendor: MeinbergVendorID, device: 0x0101}: {Type: TypeGPS170PCI, Name: "GPS170PCI", RefClock: RefClockGPS},
	{vendor: MeinbergVendorID, device: 0x0102}: {Type: TypeTCR511PCI, Name: "TCR511PCI", RefClock: RefClockIRIG},
	{vendor: MeinbergVendorID, device: 0x0103}: {Type: TypePEX511, Name: "PEX511", RefClock: RefClockIRIG},
	{vendor: MeinbergVendorID, device: 0x0204}: {Type: TypeGPS180PEX, Name: "GPS180PEX", RefClock: RefClockGPS},
	{vendor: MeinbergVendorID, device: 0x0205}: {Type: TypeMBGPEX, Name: "MBGPEX", RefClock: RefClockPTP},
	{vendor: MeinbergVendorID, device: 0x0306}: {Type: TypeGNS181PEX, Name: "GNS181PEX", RefClock: RefClockGNSS},
}

var usbTable = map[usbKey]Descriptor{
	{vendor: MeinbergVendorID, product: 0x0001}: {Type: TypeGPS163USB, Name: "GPS163USB", RefClock: RefClockGPS},
	{vendor: MeinbergVendorID, product: 0x0002}: {Type: TypeTCR170USB, Name: "TCR170USB", RefClock: RefClockIRIG},
}

// LookupPCI implements spec.md §4.D step 1 for PCI-bus candidates. ok is
// false for an unrecognised (vendor, device) pair, which the probe engine
// classifies as errs.NotSupportedByDevice (modelled here as a caller-level
// concern, since devtype has no error-kind dependency).
func LookupPCI(vendor, device uint16) (Descriptor, bool) {
	d, ok := pciTable[pciKey{vendor: vendor, device: device}]
	return d, ok
}

// LookupUSB implements spec.md §4.D step 1 for USB candidates.
func LookupUSB(vendor, product uint16) (Descriptor, bool) {
	d, ok := usbTable[usbKey{vendor: vendor, product: product}]
	return d, ok
}

// LookupISA implements spec.md §4.D step 1 for ISA/MCA candidates, keyed
// on the firmware-id prefix and the base+2 magic word (spec.md §4.D
// step 6). ISA probing is optional per spec.md §9 open question 1.
func LookupISA(prefix string, magic uint16) (Descriptor, bool) {
	d, ok := isaTable[isaKey{prefix: prefix, magic: magic}]
	return d, ok
}

// PCIIdent is one row of the exported PCI identity table an external PnP
// layer uses to match candidate hardware (spec.md §6).
type PCIIdent struct {
	Vendor   uint16
	Device   uint16
	Name     string
	RefClock RefClockClass
}

// PCIIdents returns the full PCI identity table, flattened for PnP
// matching.
func PCIIdents() []PCIIdent {
	idents := make([]PCIIdent, 0, len(pciTable))
	for k, d := range pciTable {
		idents = append(idents, PCIIdent{Vendor: k.vendor, Device: k.device, Name: d.Name, RefClock: d.RefClock})
	}
	return idents
}
