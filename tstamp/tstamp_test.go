package tstamp

import (
	"testing"

	"github.com/mburnicki/mbgclock-drvr-sub000/device"
	"github.com/mburnicki/mbgclock-drvr-sub000/internal/ioreg"
	"github.com/stretchr/testify/assert"
)

func devWithWindow(t *testing.T, buf []byte) *device.Device {
	t.Helper()
	dev := device.New()
	dev.DefaultBuiltinFeatures = 1 << device.BuiltinHasMMIOTimestamp
	dev.RealBuiltinFeatures = 1 << device.BuiltinHasMMIOTimestamp
	dev.Resources.Mems = []device.MemRange{{Mapped: ioreg.NewMemWindow(buf)}}
	return dev
}

func TestFastTimestampReadsTwoAdjacentWords(t *testing.T) {
	buf := make([]byte, 8)
	buf[0], buf[1], buf[2], buf[3] = 0x10, 0x00, 0x00, 0x00
	buf[4], buf[5], buf[6], buf[7] = 0x80, 0x00, 0x00, 0x00

	dev := devWithWindow(t, buf)

	ts := FastTimestamp(dev)
	assert.Equal(t, uint32(0x10), ts.Seconds)
	assert.Equal(t, uint32(0x80), ts.BinaryFraction)
	assert.False(t, ts.IsZero())
}

func TestFastTimestampWithoutMMIOSupportReturnsZero(t *testing.T) {
	dev := device.New()

	ts := FastTimestamp(dev)
	assert.True(t, ts.IsZero())
}

func TestFastTimestampWithNoMappedWindowReturnsZero(t *testing.T) {
	dev := device.New()
	dev.DefaultBuiltinFeatures = 1 << device.BuiltinHasMMIOTimestamp
	dev.RealBuiltinFeatures = 1 << device.BuiltinHasMMIOTimestamp

	ts := FastTimestamp(dev)
	assert.True(t, ts.IsZero())
}

func TestFastTimestampWithCyclesSamplesCounter(t *testing.T) {
	buf := make([]byte, 8)
	buf[0] = 0x05
	dev := devWithWindow(t, buf)

	ts, cycles := FastTimestampWithCycles(dev)
	assert.Equal(t, uint32(0x05), ts.Seconds)
	assert.NotZero(t, cycles)
}
