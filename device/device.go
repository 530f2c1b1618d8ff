// Package device defines the per-device descriptor (spec.md §3) shared by
// every component of the bus-level driver engine: the transport
// strategies, the transaction layer, the probe engine, the registry, the
// cyclic event source, the fast timestamp path and the IOCTL dispatcher
// all operate on a *Device.
package device

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mburnicki/mbgclock-drvr-sub000/devtype"
	"github.com/mburnicki/mbgclock-drvr-sub000/internal/dma"
	"github.com/mburnicki/mbgclock-drvr-sub000/internal/ioreg"
)

// TransportKind tags which of the five transport strategies a device
// uses (spec.md §4.B, §8 P1). TransportNull is the zero value so a
// freshly-allocated Device with no strategy wired in fails closed.
type TransportKind int

const (
	TransportNull TransportKind = iota
	TransportS5933
	TransportS5920
	TransportAsicPio
	TransportAsicMmio
	TransportAsicMmio16
	TransportUSB
)

// Strategy is the contract every transport implementation satisfies
// (spec.md §4.B: "every strategy implements one signature"). It is
// declared here, rather than in the transport package, so Device can hold
// one without an import cycle.
type Strategy interface {
	// Read performs a command/response transaction: write cmd (normally
	// one byte; USB GPS-data transactions send a two-byte command, spec.md
	// §4.B), wait for not-busy, then drain len(out) bytes into out.
	Read(dev *Device, cmd []byte, out []byte) error
	// Write performs a command/payload/readback transaction, returning
	// the device completion code.
	Write(dev *Device, cmd []byte, payload []byte) (completion byte, err error)
}

// IRQStatus tracks the interrupt safety and enablement state of a device
// (spec.md §3 "irq_status").
type IRQStatus struct {
	Unsafe       bool
	EnableCalled bool
	Enabled      bool
}

// ErrorFlags is the mask of probe-time failure classifications
// accumulated in Device.ErrorFlags (spec.md §4.D "Error classification").
type ErrorFlags uint32

const (
	ErrIOInitFailed ErrorFlags = 1 << iota
	ErrIOEnableFailed
	ErrIOResourceConflict
	ErrMemResourceConflict
	ErrTimeout
	ErrBadFirmwareID
)

// USBEndpoints holds the three required USB bulk endpoints (spec.md §6
// "USB endpoints").
type USBEndpoints struct {
	In       int
	Out      int
	InCyclic int
}

// USBBulk is the narrow contract the USB-bulk transport strategy and the
// USB cyclic worker need from a real USB stack. The concrete
// implementation wraps gousb in/out endpoints (see transport package);
// tests substitute a fake.
type USBBulk interface {
	WriteOut(ctx context.Context, p []byte) (int, error)
	ReadIn(ctx context.Context, p []byte) (int, error)
	ReadCyclic(ctx context.Context, p []byte) (int, error)
}

// Device is the descriptor created on probe success and destroyed on
// unplug *and* last-close (spec.md §3 "Lifecycle").
type Device struct {
	// Identity
	ID           uuid.UUID
	Minor        int
	Bus          devtype.Bus
	DevID        uint16
	Type         devtype.Type
	RefClock     devtype.RefClockClass
	Name         string

	// Resources
	Resources Resources

	// Transport
	Transport     Strategy
	TransportKind TransportKind
	ForcedTransport bool

	// Pre-computed status/IRQ register offsets and masks, so fast paths do
	// no branching on transport kind (spec.md §3).
	StatusPortOffset uint16
	IRQEnablePort    uint16
	IRQFlagPort      uint16
	IRQAckPort       uint16
	IRQEnableMask    uint32
	IRQFlagMask      uint32
	IRQAckMask       uint32

	// Firmware / ASIC / serial identity
	FirmwareID       string
	FirmwareRevision uint16 // packed BCD-like, e.g. 0x0270 = v2.70
	ASICRawVersion   uint32
	ASICVersionMajor uint8
	ASICVersionMinor uint8
	ASICFeatures     uint32
	SerialNumber     string

	// Capability model
	ReceiverInfo            ReceiverInfo
	XFeatureBuffer          XFeatureBuffer
	TLVInfo                 TLVInfo
	DefaultBuiltinFeatures  uint32
	RealBuiltinFeatures     uint32
	PcpsFeatures            uint32

	IRQStatus  IRQStatus
	ErrorFlags ErrorFlags

	// AccessCycles is the CPU cycle counter sampled at the start of the
	// most recent transaction (spec.md §4.B step 1).
	AccessCycles uint64

	// Port I/O bus used by the port-based transport strategies
	// (S5933, S5920, ASIC-PIO). nil for MMIO/USB-only devices.
	PortBus ioreg.PortBus

	// USB specifics
	Endpoints     USBEndpoints
	USB           USBBulk
	USB2HighSpeed bool

	// Runtime state
	openCount      int32
	connected      int32
	dataAvailable  int32
	jiffiesAtLastTick atomic.Int64
	lastTime       PCPSTime
	lastTimeMu     sync.Mutex

	DevMutex   sync.Mutex
	TstampLock sync.Mutex
	IRQLock    sync.Mutex
	CyclicSem  sync.Mutex

	waitersMu sync.Mutex
	waiters   []chan struct{}

	signalMu      sync.Mutex
	signalTargets []chan struct{}

	IOBuffer *dma.Buffer

	// foregroundAccess is set while a transaction layer call holds
	// DevMutex, so the IRQ handler knows whether it is safe to read the
	// time itself or must defer to the in-flight transaction (spec.md
	// §4.F step 1).
	foregroundAccess int32
}

// New allocates a Device with its runtime primitives initialised. Probe
// populates the rest of the fields.
func New() *Device {
	d := &Device{
		ID:       uuid.New(),
		IOBuffer: dma.New(256),
	}
	d.connected = 1
	return d
}

func (d *Device) OpenCount() int32 { return atomic.LoadInt32(&d.openCount) }

// Open bumps the open-handle reference count (spec.md §4.I "open").
func (d *Device) Open() int32 {
	return atomic.AddInt32(&d.openCount, 1)
}

// Release decrements the open-handle reference count and reports whether
// it reached zero (spec.md §4.I "release").
func (d *Device) Release() (zero bool) {
	return atomic.AddInt32(&d.openCount, -1) == 0
}

func (d *Device) Connected() bool { return atomic.LoadInt32(&d.connected) != 0 }

// Disconnect marks the device unplugged, wakes every waiter, and leaves
// destruction to the last Release (spec.md §3 invariant).
func (d *Device) Disconnect() {
	atomic.StoreInt32(&d.connected, 0)
	d.WakeWaiters()
}

func (d *Device) DataAvailable() bool { return atomic.LoadInt32(&d.dataAvailable) != 0 }

func (d *Device) SetDataAvailable(v bool) {
	if v {
		atomic.StoreInt32(&d.dataAvailable, 1)
	} else {
		atomic.StoreInt32(&d.dataAvailable, 0)
	}
}

func (d *Device) MarkForegroundAccess(active bool) {
	if active {
		atomic.StoreInt32(&d.foregroundAccess, 1)
	} else {
		atomic.StoreInt32(&d.foregroundAccess, 0)
	}
}

func (d *Device) ForegroundAccessInProgress() bool {
	return atomic.LoadInt32(&d.foregroundAccess) != 0
}

// JiffiesAtLastTick returns the last tick timestamp, used by the
// staleness check of spec.md §4.F.
func (d *Device) JiffiesAtLastTick() time.Time {
	return time.UnixMilli(d.jiffiesAtLastTick.Load())
}

func (d *Device) TouchLastTick(now time.Time) {
	d.jiffiesAtLastTick.Store(now.UnixMilli())
}

// LastTime returns a copy of the cached PCPSTime sample.
func (d *Device) LastTime() PCPSTime {
	d.lastTimeMu.Lock()
	defer d.lastTimeMu.Unlock()
	return d.lastTime
}

// SetLastTime stores the most recently observed PCPSTime sample.
func (d *Device) SetLastTime(t PCPSTime) {
	d.lastTimeMu.Lock()
	d.lastTime = t
	d.lastTimeMu.Unlock()
}

// AddWaiter registers a channel to be closed on the next wake (used by
// the blocking read()/poll() of spec.md §4.I).
func (d *Device) AddWaiter(ch chan struct{}) {
	d.waitersMu.Lock()
	d.waiters = append(d.waiters, ch)
	d.waitersMu.Unlock()
}

// WakeWaiters closes and clears every registered waiter channel.
func (d *Device) WakeWaiters() {
	d.waitersMu.Lock()
	waiters := d.waiters
	d.waiters = nil
	d.waitersMu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
}

// AddSignalTarget registers a channel for SIGIO-style async notification
// (spec.md §4.I "fasync").
func (d *Device) AddSignalTarget(ch chan struct{}) {
	d.signalMu.Lock()
	d.signalTargets = append(d.signalTargets, ch)
	d.signalMu.Unlock()
}

// RemoveSignalTarget unregisters a previously added signal target.
func (d *Device) RemoveSignalTarget(ch chan struct{}) {
	d.signalMu.Lock()
	defer d.signalMu.Unlock()

	for i, c := range d.signalTargets {
		if c == ch {
			d.signalTargets = append(d.signalTargets[:i], d.signalTargets[i+1:]...)
			return
		}
	}
}

// NotifySignalTargets delivers a non-blocking SIGIO-style wake to every
// registered target.
func (d *Device) NotifySignalTargets() {
	d.signalMu.Lock()
	defer d.signalMu.Unlock()

	for _, ch := range d.signalTargets {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
