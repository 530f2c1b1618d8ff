package probe

import (
	"testing"

	"github.com/mburnicki/mbgclock-drvr-sub000/config"
	"github.com/mburnicki/mbgclock-drvr-sub000/device"
	"github.com/mburnicki/mbgclock-drvr-sub000/devtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedStrategy replays one fixed byte slice per Read call, in order.
type scriptedStrategy struct {
	blocks [][]byte
}

func (s *scriptedStrategy) Read(dev *device.Device, cmd []byte, out []byte) error {
	if len(s.blocks) == 0 {
		copy(out, make([]byte, len(out)))
		return nil
	}
	b := s.blocks[0]
	s.blocks = s.blocks[1:]
	copy(out, b)
	return nil
}

func (s *scriptedStrategy) Write(dev *device.Device, cmd []byte, payload []byte) (byte, error) {
	return 0, nil
}

func pad(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}

// TestFeatureInferenceFromReceiverInfo mirrors spec.md §8 scenario 3:
// GPS180PEX, firmware 0x0210, receiver_info.features bit 13 (time-scale)
// and bit 15 (PTP) set.
func TestFeatureInferenceFromReceiverInfo(t *testing.T) {
	dev := device.New()
	dev.Bus = devtype.BusPCI
	dev.DevID = 0x0204 // GPS180PEX
	dev.TransportKind = device.TransportNull

	features := uint32(1<<device.RIFeatTimeScale | 1<<device.RIFeatPTP)
	strat := &scriptedStrategy{blocks: [][]byte{
		pad("GPS180 V2.10", 16),       // firmware id part 1
		pad("", 16),                   // firmware id part 2
		{0, 0, 0, 0},                  // asic raw version
		{0, 0, 0, 0},                  // asic features
		pad("1234567", 17),            // serial
		{0, 0, 0, 0, 0, 0, byte(features), byte(features >> 8), byte(features >> 16), byte(features >> 24)}, // receiver_info
	}}
	dev.Transport = strat

	err := Probe(dev, config.Default(), Options{})
	require.NoError(t, err)

	assert.Equal(t, uint16(0x0210), dev.FirmwareRevision)
	assert.True(t, dev.HasFeature(device.FeatPcps, device.PcpsHasTimeScale))
	assert.True(t, dev.HasFeature(device.FeatPcps, device.PcpsHasUTCParm))
	assert.True(t, dev.HasFeature(device.FeatPcps, device.PcpsHasPTP))
}

func TestParseFirmwareRevision(t *testing.T) {
	rev, err := parseFirmwareRevision("GPS170PCI V3.45")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0345), rev)

	_, err = parseFirmwareRevision("no revision here")
	assert.Error(t, err)
}

func TestSanitizeSerial(t *testing.T) {
	assert.Equal(t, "12345", sanitizeSerial("12345   FFF"))
	assert.Equal(t, "????????", sanitizeSerial("\x00\x00\x00"))
}

func TestIRQUnsafeGateClassifiesOlderFirmware(t *testing.T) {
	dev := device.New()
	dev.Bus = devtype.BusPCI
	dev.DevID = 0x0103 // PEX511, has an irqUnsafe gate at fw 0x0100/1.0
	dev.FirmwareRevision = 0x0050
	dev.ASICVersionMajor, dev.ASICVersionMinor = 0, 5

	profile := typeTable[devtype.TypePEX511]
	applyFeatureGates(dev, profile)

	assert.True(t, dev.IRQStatus.Unsafe)
}

func TestDecodeASICVersion(t *testing.T) {
	major, minor := decodeASICVersion(0x00000203)
	assert.Equal(t, uint8(2), major)
	assert.Equal(t, uint8(3), minor)
}
