package transport

import (
	"context"
	"testing"

	"github.com/mburnicki/mbgclock-drvr-sub000/device"
	"github.com/mburnicki/mbgclock-drvr-sub000/errs"
	"github.com/mburnicki/mbgclock-drvr-sub000/internal/ioreg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePortBus scripts port reads by offset so each strategy's busy-poll
// and data-drain sequence can be exercised without real hardware.
type fakePortBus struct {
	mem      map[uint16][]uint32 // queued values per port, consumed FIFO
	writes   []uint16
	byteVals map[uint16]byte
}

func newFakePortBus() *fakePortBus {
	return &fakePortBus{mem: map[uint16][]uint32{}, byteVals: map[uint16]byte{}}
}

func (f *fakePortBus) queue(port uint16, vals ...uint32) {
	f.mem[port] = append(f.mem[port], vals...)
}

func (f *fakePortBus) pop(port uint16) uint32 {
	q := f.mem[port]
	if len(q) == 0 {
		return 0
	}
	v := q[0]
	f.mem[port] = q[1:]
	return v
}

func (f *fakePortBus) In8(port uint16) uint8   { return byte(f.pop(port)) }
func (f *fakePortBus) In16(port uint16) uint16 { return uint16(f.pop(port)) }
func (f *fakePortBus) In32(port uint16) uint32 { return f.pop(port) }

func (f *fakePortBus) Out8(port uint16, val uint8) {
	f.writes = append(f.writes, port)
	f.byteVals[port] = val
}
func (f *fakePortBus) Out16(port uint16, val uint16) { f.writes = append(f.writes, port) }
func (f *fakePortBus) Out32(port uint16, val uint32) { f.writes = append(f.writes, port) }

var _ ioreg.PortBus = (*fakePortBus)(nil)

func TestS5933ReadDrainsFIFOFourAtATime(t *testing.T) {
	bus := newFakePortBus()
	strat := S5933{Port: 0x300}

	// Status: busy once (scenario 1, spec.md §8), then not-busy; FIFO never
	// reports empty so the drain loop proceeds immediately.
	bus.queue(0x300+s5933Status, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00)
	bus.queue(0x300+s5933FIFO, 0xAA)
	bus.queue(0x300+s5933FIFO+1, 0xBB)
	bus.queue(0x300+s5933FIFO+2, 0xCC)
	bus.queue(0x300+s5933FIFO+3, 0xDD)

	dev := &device.Device{PortBus: bus}
	out := make([]byte, 4)
	err := strat.Read(dev, []byte{0x01}, out)

	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD}, out)
}

func TestS5920ReadUnalignedTailDiscardsSurplus(t *testing.T) {
	bus := newFakePortBus()
	strat := S5920{Bar0Port: 0x310, Bar1Port: 0x320}

	bus.queue(0x310+s5920Status, 0x00)
	bus.queue(0x320+s5920Data, 0x0000_0201) // bytes 0x01 0x02 then surplus

	dev := &device.Device{PortBus: bus}
	out := make([]byte, 2)
	err := strat.Read(dev, []byte{0x05}, out)

	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, out)
}

func TestAsicPIOWriteReturnsCompletionCode(t *testing.T) {
	bus := newFakePortBus()
	strat := AsicPIO{Port: 0x330}

	bus.queue(0x330+asicStatus, 0x00)
	bus.queue(0x330+asicAddonData, 2, 0x7E) // byte-count then completion

	dev := &device.Device{PortBus: bus}
	completion, err := strat.Write(dev, []byte{0x10}, []byte{0x01, 0x02})

	require.NoError(t, err)
	assert.Equal(t, byte(0x7E), completion)
}

func TestAsicPIOWriteByteCountMismatchReturnsByteCount(t *testing.T) {
	bus := newFakePortBus()
	strat := AsicPIO{Port: 0x330}

	bus.queue(0x330+asicStatus, 0x00)
	bus.queue(0x330+asicAddonData, 5) // device expects 5 bytes, caller sent 2

	dev := &device.Device{PortBus: bus}
	_, err := strat.Write(dev, []byte{0x10}, []byte{0x01, 0x02})

	assert.True(t, errs.Is(err, errs.ByteCount))
}

func TestAsicMMIORoundTrip(t *testing.T) {
	buf := make([]byte, 32)
	win := ioreg.NewMemWindow(buf)
	strat := AsicMMIO{Window: &device.MemRange{Mapped: win}}

	// Pre-seed status as not-busy and addon_data with a response word.
	win.Write32FromCPU(asicStatus, 0)
	win.Write32FromCPU(asicAddonData, 0x11223344)

	dev := &device.Device{}
	out := make([]byte, 4)
	err := strat.Read(dev, []byte{0x20}, out)

	require.NoError(t, err)
	assert.Equal(t, uint32(0x20), win.Read32ToCPU(asicPciData))
	assert.Equal(t, []byte{0x44, 0x33, 0x22, 0x11}, out)
}

func TestAsicMMIO16PacksTwoByteCommand(t *testing.T) {
	buf := make([]byte, 32)
	win := ioreg.NewMemWindow(buf)
	strat := AsicMMIO16{Window: &device.MemRange{Mapped: win}}

	win.Write16FromCPU(asicStatus, 0)
	win.Write16FromCPU(asicAddonData, 0x1234)

	dev := &device.Device{}
	out := make([]byte, 2)
	err := strat.Read(dev, []byte{0x50, 0x01}, out) // READ_GPS_DATA + sub-type
	require.NoError(t, err)

	assert.Equal(t, uint16(0x0150), win.Read16ToCPU(asicPciData))
	assert.Equal(t, uint16(0x0000), win.Read16ToCPU(asicPciData+2))
	assert.Equal(t, []byte{0x34, 0x12}, out)
}

func TestNullTransportAlwaysTimesOut(t *testing.T) {
	var n Null
	err := n.Read(&device.Device{}, []byte{0x01}, make([]byte, 4))
	assert.True(t, errs.Is(err, errs.Timeout))

	_, err = n.Write(&device.Device{}, []byte{0x01}, nil)
	assert.True(t, errs.Is(err, errs.Timeout))
}

// fakeUSBBulk is an in-memory device.USBBulk double for the USB-bulk
// strategy: the IN buffer is scripted, the OUT writes are recorded.
type fakeUSBBulk struct {
	inPayload   []byte
	outWrites   [][]byte
	shortReadBy int
}

func (f *fakeUSBBulk) WriteOut(ctx context.Context, p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	f.outWrites = append(f.outWrites, cp)
	return len(p), nil
}

func (f *fakeUSBBulk) ReadIn(ctx context.Context, p []byte) (int, error) {
	n := copy(p, f.inPayload)
	return n - f.shortReadBy, nil
}

func (f *fakeUSBBulk) ReadCyclic(ctx context.Context, p []byte) (int, error) {
	return f.ReadIn(ctx, p)
}

func TestUSBReadWritesCommandAndDrainsIn(t *testing.T) {
	fake := &fakeUSBBulk{inPayload: []byte{0xDE, 0xAD, 0xBE, 0xEF}}
	dev := &device.Device{USB: fake}

	var strat USB
	out := make([]byte, 4)
	err := strat.Read(dev, []byte{ReadGPSDataPrefix, 0x01}, out)

	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, out)
	assert.Equal(t, []byte{ReadGPSDataPrefix, 0x01}, fake.outWrites[0])
}

// TestUSBReadLengthMismatchReturnsByteCount mirrors spec.md §8 scenario 2:
// "a transaction's reported length differs from the requested length".
func TestUSBReadLengthMismatchReturnsByteCount(t *testing.T) {
	fake := &fakeUSBBulk{inPayload: []byte{0x01, 0x02, 0x03, 0x04}, shortReadBy: 1}
	dev := &device.Device{USB: fake}

	var strat USB
	out := make([]byte, 4)
	err := strat.Read(dev, []byte{0x10}, out)

	assert.True(t, errs.Is(err, errs.ByteCount))
}
