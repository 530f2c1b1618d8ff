package chardev

import (
	"testing"
	"time"

	"github.com/mburnicki/mbgclock-drvr-sub000/device"
	"github.com/mburnicki/mbgclock-drvr-sub000/errs"
	"github.com/mburnicki/mbgclock-drvr-sub000/internal/ioreg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is a scripted cyclic.Source: Enable synchronously marks data
// available, as a real enable would after its first tick.
type fakeSource struct {
	enableCalls int
	alive       bool
	enableErr   error
}

func (f *fakeSource) Enable(force int) error {
	f.enableCalls++
	if f.enableErr != nil {
		return f.enableErr
	}
	f.alive = true
	return nil
}

func (f *fakeSource) Disable()    { f.alive = false }
func (f *fakeSource) Alive() bool { return f.alive }

func TestOpenBumpsOpenCountWithoutEnabling(t *testing.T) {
	dev := device.New()
	src := &fakeSource{}

	h := Open(dev, src)
	defer h.Release()

	assert.Equal(t, int32(1), dev.OpenCount())
	assert.Equal(t, 0, src.enableCalls)
}

func TestReadNonBlockingReturnsEnableErrorWithNoData(t *testing.T) {
	dev := device.New()
	src := &fakeSource{enableErr: errs.New(errs.Timeout)}

	h := Open(dev, src)
	defer h.Release()

	_, err := h.Read(33, true)
	assert.True(t, errs.Is(err, errs.Timeout))
}

func TestReadNonBlockingReturnsWouldBlockAfterEnableSucceeds(t *testing.T) {
	dev := device.New()
	src := &fakeSource{} // Enable succeeds but does not flip data_available

	h := Open(dev, src)
	defer h.Release()

	_, err := h.Read(33, true)
	assert.Equal(t, ErrWouldBlock, err)
}

func TestReadBlockingWakesOnWaiterAndFormatsFrame(t *testing.T) {
	dev := device.New()
	dev.SetLastTime(device.PCPSTime{MDay: 15, Month: 6, Year: 24, WDay: 3, Hour: 9, Min: 30, Sec: 1, Status: device.StatusSyncd})
	src := &fakeSource{}

	h := Open(dev, src)
	defer h.Release()

	go func() {
		time.Sleep(10 * time.Millisecond)
		dev.SetDataAvailable(true)
		dev.WakeWaiters()
	}()

	out, err := h.Read(32, false)
	require.NoError(t, err)
	assert.Equal(t, 32, len(out))
	assert.Equal(t, byte(0x02), out[0])
	assert.Equal(t, byte(0x03), out[31])
	assert.Equal(t, 1, src.enableCalls)
}

func TestReadTruncatesToRequestedLength(t *testing.T) {
	dev := device.New()
	dev.SetDataAvailable(true)
	src := &fakeSource{}

	h := Open(dev, src)
	defer h.Release()

	out, err := h.Read(10, true)
	require.NoError(t, err)
	assert.Equal(t, 10, len(out))
}

func TestReadAfterDisconnectReturnsInterrupted(t *testing.T) {
	dev := device.New()
	dev.Disconnect()
	src := &fakeSource{}

	h := Open(dev, src)
	defer h.Release()

	_, err := h.Read(33, true)
	assert.True(t, errs.Is(err, errs.Interrupted))
}

func TestReleaseOnLastCloseDisablesCyclicWhenConnected(t *testing.T) {
	dev := device.New()
	src := &fakeSource{alive: true}

	h := Open(dev, src)
	h.Release()

	assert.False(t, src.alive)
	assert.Equal(t, int32(0), dev.OpenCount())
}

func TestReleaseLeavesDisconnectedDescriptorAlone(t *testing.T) {
	dev := device.New()
	dev.Disconnect()
	src := &fakeSource{alive: true}

	h := Open(dev, src)
	h.Release()

	// cyc.Disable is not called on a disconnected device; alive stays true
	// here because nothing touched it, mirroring "destroy descriptor" being
	// the registry's job, not the cyclic source's.
	assert.True(t, src.alive)
}

func TestPollReportsReadyWhenDataAvailable(t *testing.T) {
	dev := device.New()
	dev.SetDataAvailable(true)
	src := &fakeSource{}

	h := Open(dev, src)
	defer h.Release()

	ready, err := h.Poll()
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, uint32(0x0001|0x0040), PollEvents(ready))
}

func TestFasyncRegistersAndUnregisters(t *testing.T) {
	dev := device.New()
	src := &fakeSource{}
	h := Open(dev, src)
	defer h.Release()

	ch := make(chan struct{}, 1)
	h.Fasync(ch)
	dev.NotifySignalTargets()

	select {
	case <-ch:
	default:
		t.Fatal("expected fasync target to be notified")
	}

	h.FasyncOff()
	dev.NotifySignalTargets()
	select {
	case <-ch:
		t.Fatal("expected no notification after FasyncOff")
	default:
	}
}

func TestMmapWithoutMMIOSupportIsInvalid(t *testing.T) {
	dev := device.New()
	h := Open(dev, &fakeSource{})
	defer h.Release()

	_, _, err := h.Mmap()
	assert.True(t, errs.Is(err, errs.InvalidParameter))
}

func TestMmapWithMappedWindowReturnsPageBeyondAsicHeader(t *testing.T) {
	dev := device.New()
	dev.DefaultBuiltinFeatures = 1 << device.BuiltinHasMMIOTimestamp
	dev.RealBuiltinFeatures = 1 << device.BuiltinHasMMIOTimestamp
	dev.Resources.Mems = []device.MemRange{{Base: 0x1000, Mapped: ioreg.NewMemWindow(make([]byte, 4096))}}

	h := Open(dev, &fakeSource{})
	defer h.Release()

	m, prot, err := h.Mmap()
	require.NoError(t, err)
	assert.True(t, m.Mappable)
	assert.Equal(t, uintptr(0x1000+256), m.Base)
	assert.Equal(t, uintptr(4096), m.Length)
	assert.NotZero(t, prot)
}
