package registry

import (
	"testing"

	"github.com/mburnicki/mbgclock-drvr-sub000/device"
	"github.com/mburnicki/mbgclock-drvr-sub000/devtype"
	"github.com/mburnicki/mbgclock-drvr-sub000/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAssignsMinorAndFindByMinor(t *testing.T) {
	r := New(2)
	d := device.New()

	idx, err := r.Add(d)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, d, r.FindByMinor(0))
}

func TestAddReturnsNoMemoryWhenFull(t *testing.T) {
	r := New(1)
	_, err := r.Add(device.New())
	require.NoError(t, err)

	_, err = r.Add(device.New())
	assert.True(t, errs.Is(err, errs.NoMemory))
}

func TestRemoveSurvivesWhileOpen(t *testing.T) {
	r := New(1)
	d := device.New()
	d.Open()

	idx, _ := r.Add(d)
	r.Remove(idx)

	assert.Nil(t, r.FindByMinor(idx))
	// The descriptor itself, held by the caller's open handle, is
	// untouched by Remove.
	assert.Equal(t, int32(1), d.OpenCount())
}

func TestFindByIdentityMatchesBusDevIDSerial(t *testing.T) {
	r := New(4)
	d := device.New()
	d.Bus = devtype.BusUSB
	d.DevID = 0x0001
	d.SerialNumber = "ABC123"
	r.Add(d)

	found := r.FindByIdentity(devtype.BusUSB, 0x0001, "ABC123")
	assert.Equal(t, d, found)

	assert.Nil(t, r.FindByIdentity(devtype.BusUSB, 0x0001, "WRONG"))
}
