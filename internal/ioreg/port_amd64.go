//go:build amd64

package ioreg

// HardwarePortBus is the real x86 port I/O backend, implemented in
// port_amd64.s. It is only meaningful against actual ISA/PCI hardware
// under a host kernel granting I/O port privilege (e.g. via iopl); tests
// use a fake PortBus instead.
type HardwarePortBus struct{}

// defined in port_amd64.s
func in8(port uint16) uint8
func in16(port uint16) uint16
func in32(port uint16) uint32
func out8(port uint16, val uint8)
func out16(port uint16, val uint16)
func out32(port uint16, val uint32)

func (HardwarePortBus) In8(port uint16) uint8   { return in8(port) }
func (HardwarePortBus) In16(port uint16) uint16 { return in16(port) }
func (HardwarePortBus) In32(port uint16) uint32 { return in32(port) }

func (HardwarePortBus) Out8(port uint16, val uint8)   { out8(port, val) }
func (HardwarePortBus) Out16(port uint16, val uint16) { out16(port, val) }
func (HardwarePortBus) Out32(port uint16, val uint32) { out32(port, val) }
