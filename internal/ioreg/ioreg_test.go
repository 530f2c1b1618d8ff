package ioreg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForObservesBusyThenClear(t *testing.T) {
	// Mirrors spec.md §8 scenario 1: status returns BUSY=0x01 once, then
	// clear. WaitFor must observe the clear within the timeout.
	calls := 0
	status := func() uint32 {
		calls++
		if calls == 1 {
			return 0x01
		}
		return 0x00
	}

	ok := WaitFor(50*time.Millisecond, status, 0x01, 0x00)
	require.True(t, ok)
	assert.GreaterOrEqual(t, calls, 2)
}

func TestWaitForTimesOut(t *testing.T) {
	status := func() uint32 { return 0x01 }

	ok := WaitFor(10*time.Millisecond, status, 0x01, 0x00)
	assert.False(t, ok)
}

func TestMemWindowRoundTrip(t *testing.T) {
	buf := make([]byte, 16)
	w := NewMemWindow(buf)

	w.Write32FromCPU(0, 0xdeadbeef)
	assert.Equal(t, uint32(0xdeadbeef), w.Read32ToCPU(0))

	w.Write16FromCPU(4, 0x1234)
	assert.Equal(t, uint16(0x1234), w.Read16ToCPU(4))

	w.Write8(8, 0x42)
	assert.Equal(t, uint8(0x42), w.Read8(8))
}

func TestNewMemWindowNil(t *testing.T) {
	var w *MemWindow
	assert.Equal(t, 0, w.Len())
	assert.Nil(t, NewMemWindow(nil))
}
