package device

import "github.com/mburnicki/mbgclock-drvr-sub000/internal/ioreg"

// PortRange is one port-I/O resource claimed at probe time (spec.md §3
// "resources": "up to N port ranges (each: raw base address, length,
// mapped address)"). Port ranges need no separate mapping step beyond
// recording the base: port I/O addresses are not "mapped" the way MMIO
// is.
type PortRange struct {
	Base   uint16
	Length uint16
}

// MemRange is one memory-mapped resource. Mapped is nil until a
// successful Map and is set back to nil by Unmap; every accessor that
// dereferences Mapped must be called only while a Device's resource is
// known live, which the probe/registry layers enforce.
type MemRange struct {
	Base   uintptr
	Length uintptr
	Mapped *ioreg.MemWindow
}

// Map installs an already host-mapped window (the host integration layer
// performs the actual mmap syscall; this package only owns the typed
// handle once it exists) and records the pairing so Unmap can be asserted
// symmetric.
func (m *MemRange) Map(w *ioreg.MemWindow) {
	m.Mapped = w
}

// Unmap clears the mapped window. Every Map in Resources must have a
// matching Unmap on device destroy (spec.md §3 invariant).
func (m *MemRange) Unmap() {
	m.Mapped = nil
}

// Resources aggregates every hardware resource claimed for a device at
// probe time.
type Resources struct {
	Ports []PortRange
	Mems  []MemRange
	// IRQ is the interrupt number, or 0 if the device has none routed.
	IRQ int
}

// SwapPEX8311BARs exchanges resource ranges 0 and 1, so that higher-level
// code always finds data registers at index 0 regardless of how the
// PEX8311 bridge exposes them (spec.md §4.D step 2).
func (r *Resources) SwapPEX8311BARs() {
	if len(r.Mems) < 2 {
		return
	}
	r.Mems[0], r.Mems[1] = r.Mems[1], r.Mems[0]
}
