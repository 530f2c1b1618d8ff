package cyclic

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mburnicki/mbgclock-drvr-sub000/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nullStrategy answers every transaction with zero bytes and a nil error,
// enough for the IRQ-path time read exercised by Fire.
type nullStrategy struct{}

func (nullStrategy) Read(dev *device.Device, cmd []byte, out []byte) error { return nil }
func (nullStrategy) Write(dev *device.Device, cmd []byte, payload []byte) (byte, error) {
	return 0, nil
}

func TestIsStaleWithNoTickEverIsStale(t *testing.T) {
	dev := device.New()
	assert.True(t, IsStale(dev, time.Now()))
}

func TestIsStaleWithinWindowIsNotStale(t *testing.T) {
	dev := device.New()
	dev.TouchLastTick(time.Now())
	assert.False(t, IsStale(dev, time.Now().Add(time.Second)))
}

func TestIsStaleBeyondWindowIsStale(t *testing.T) {
	dev := device.New()
	dev.TouchLastTick(time.Now())
	assert.True(t, IsStale(dev, time.Now().Add(3*time.Second)))
}

func TestIRQSourceEnableIdempotent(t *testing.T) {
	dev := device.New()
	dev.Transport = nullStrategy{}
	src := NewIRQSource(dev)

	require.NoError(t, src.Enable(0))
	require.NoError(t, src.Enable(0))
	assert.True(t, src.Alive())
	assert.True(t, dev.IRQStatus.Enabled)
}

func TestIRQSourceFireWakesWaitersAndSetsDataAvailable(t *testing.T) {
	dev := device.New()
	dev.Transport = nullStrategy{}
	src := NewIRQSource(dev)
	require.NoError(t, src.Enable(0))

	ch := make(chan struct{})
	dev.AddWaiter(ch)

	src.Fire(time.Now())

	select {
	case <-ch:
	default:
		t.Fatal("expected waiter to be woken")
	}
	assert.True(t, dev.DataAvailable())
}

// countingStrategy counts Read calls so a test can assert Fire skipped
// its GIVE_TIME read.
type countingStrategy struct {
	reads int
}

func (s *countingStrategy) Read(dev *device.Device, cmd []byte, out []byte) error {
	s.reads++
	return nil
}

func (s *countingStrategy) Write(dev *device.Device, cmd []byte, payload []byte) (byte, error) {
	return 0, nil
}

func TestIRQSourceFireSkipsReadDuringForegroundAccess(t *testing.T) {
	dev := device.New()
	strat := &countingStrategy{}
	dev.Transport = strat
	src := NewIRQSource(dev)
	require.NoError(t, src.Enable(0))

	dev.MarkForegroundAccess(true)
	src.Fire(time.Now())
	dev.MarkForegroundAccess(false)

	assert.Equal(t, 0, strat.reads)
	assert.True(t, dev.DataAvailable())

	src.Fire(time.Now())
	assert.Equal(t, 1, strat.reads)
}

func TestIRQSourceForceTwoReEnablesWithoutDoubleRegistration(t *testing.T) {
	dev := device.New()
	dev.Transport = nullStrategy{}
	src := NewIRQSource(dev)

	require.NoError(t, src.Enable(1))
	require.NoError(t, src.Enable(2))
	assert.True(t, src.Alive())
}

// fakeUSBCyclic answers ReadCyclic with scripted samples, then blocks
// until ctx is cancelled.
type fakeUSBCyclic struct {
	mu      sync.Mutex
	samples [][]byte
}

func (f *fakeUSBCyclic) WriteOut(ctx context.Context, p []byte) (int, error) { return len(p), nil }
func (f *fakeUSBCyclic) ReadIn(ctx context.Context, p []byte) (int, error)   { return len(p), nil }

func (f *fakeUSBCyclic) ReadCyclic(ctx context.Context, p []byte) (int, error) {
	f.mu.Lock()
	if len(f.samples) > 0 {
		s := f.samples[0]
		f.samples = f.samples[1:]
		f.mu.Unlock()
		copy(p, s)
		return len(s), nil
	}
	f.mu.Unlock()

	<-ctx.Done()
	return 0, ctx.Err()
}

func TestUSBSourceEnableStoresSampleAndWakesWaiters(t *testing.T) {
	dev := device.New()
	dev.Transport = nullStrategy{}
	dev.USB = &fakeUSBCyclic{samples: [][]byte{
		{0, 30, 12, 9, 1, 2, 8, 25},
	}}

	src := NewUSBSource(dev, 50*time.Millisecond)
	ch := make(chan struct{})
	dev.AddWaiter(ch)

	require.NoError(t, src.Enable(1))
	defer src.Disable()

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected waiter to be woken by cyclic sample")
	}

	last := dev.LastTime()
	assert.Equal(t, uint8(30), last.Sec)
	assert.True(t, src.Alive())
}

func TestUSBSourceDisableJoinsWorker(t *testing.T) {
	dev := device.New()
	dev.Transport = nullStrategy{}
	dev.USB = &fakeUSBCyclic{}

	src := NewUSBSource(dev, 20*time.Millisecond)
	require.NoError(t, src.Enable(1))

	src.Disable()
	assert.False(t, src.Alive())
}

func TestRecoverIfStaleCallsForceTwoEnable(t *testing.T) {
	dev := device.New()
	dev.Transport = nullStrategy{}
	dev.USB = &fakeUSBCyclic{}

	src := NewUSBSource(dev, 20*time.Millisecond)
	require.NoError(t, src.Enable(1))
	defer src.Disable()

	dev.TouchLastTick(time.Now().Add(-3 * time.Second))

	require.NoError(t, RecoverIfStale(src, dev, time.Now()))
	assert.True(t, src.Alive())
}
