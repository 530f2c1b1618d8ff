// Package transaction implements the uniform request/response contract of
// spec.md §4.C over any transport.Strategy: every exported function
// acquires dev.DevMutex, drives the B-layer Read/Write calls of one
// transaction (one for ReadVar/WriteVar/WriteCmd, several for
// ReadGPS/WriteGPS/GenericIO), and releases the mutex even on error (spec.md: "On any B-layer error the
// mutex is still released and the error propagates."). Each function also
// marks foreground access for its duration, so a concurrent IRQ tick
// (cyclic.IRQSource.Fire) skips its own GIVE_TIME read rather than racing
// this one (spec.md §4.F step 1/2).
package transaction

import (
	"encoding/binary"

	"github.com/mburnicki/mbgclock-drvr-sub000/device"
	"github.com/mburnicki/mbgclock-drvr-sub000/errs"
)

// gpsBlockSize is the fixed block size read_gps/write_gps split their
// payload into (spec.md §4.C "splits len into 16-byte blocks").
const gpsBlockSize = 16

// ReadGPSDataCmd and WriteGPSDataCmd are the large-structure transport
// commands of spec.md §4.B/§6.
const (
	ReadGPSDataCmd  = 0x50
	WriteGPSDataCmd = 0x51
)

// maxVarSize bounds read_var/write_var to spec.md §4.C: "size is
// sizeof(T) (<=16 bytes)".
const maxVarSize = 16

// ReadVar performs a fixed-size read_var<T> transaction (spec.md §4.C):
// write cmd, read exactly size bytes back, decode little-endian.
// size must be between 1 and maxVarSize; for sizes above 8 only the low
// 8 bytes are kept in the result.
func ReadVar(dev *device.Device, cmd byte, size int) (uint64, error) {
	if size <= 0 || size > maxVarSize {
		return 0, errs.New(errs.InvalidParameter)
	}

	dev.DevMutex.Lock()
	defer dev.DevMutex.Unlock()
	dev.MarkForegroundAccess(true)
	defer dev.MarkForegroundAccess(false)

	buf := make([]byte, size)
	if err := dev.Transport.Read(dev, []byte{cmd}, buf); err != nil {
		return 0, err
	}

	return decodeLE(buf), nil
}

// WriteVar performs a write_var<T> transaction: write cmd, then value
// encoded little-endian as the payload, and returns the device completion
// code (spec.md §4.C).
func WriteVar(dev *device.Device, cmd byte, value uint64, size int) (byte, error) {
	if size <= 0 || size > maxVarSize {
		return 0, errs.New(errs.InvalidParameter)
	}

	dev.DevMutex.Lock()
	defer dev.DevMutex.Unlock()
	dev.MarkForegroundAccess(true)
	defer dev.MarkForegroundAccess(false)

	payload := make([]byte, size)
	encodeLE(payload, value)

	return dev.Transport.Write(dev, []byte{cmd}, payload)
}

// WriteCmd sends a payload-less command, e.g. a reset (spec.md §4.C
// "write_cmd(dev, cmd) -> () -- no payload, used for reset-like commands").
func WriteCmd(dev *device.Device, cmd byte) error {
	dev.DevMutex.Lock()
	defer dev.DevMutex.Unlock()
	dev.MarkForegroundAccess(true)
	defer dev.MarkForegroundAccess(false)

	_, err := dev.Transport.Write(dev, []byte{cmd}, nil)
	return err
}

// gpsLengthWidth reports whether a device's firmware reports the GPS-data
// block length as one or two bytes (spec.md §4.C "reads either a 1-byte or
// a 2-byte length field (device-capability-dependent)").
func gpsLengthWidth(dev *device.Device) int {
	if dev.HasFeature(device.FeatPcps, device.PcpsHasLongGPSLength) {
		return 2
	}
	return 1
}

// ReadGPS implements read_gps (spec.md §4.C): splits len into 16-byte
// blocks and, for each, runs the full READ_GPS_DATA handshake.
func ReadGPS(dev *device.Device, subCmd byte, out []byte, length int) error {
	if length != len(out) {
		return errs.New(errs.InvalidParameter)
	}

	dev.DevMutex.Lock()
	defer dev.DevMutex.Unlock()
	dev.MarkForegroundAccess(true)
	defer dev.MarkForegroundAccess(false)

	lenWidth := gpsLengthWidth(dev)

	for offset := 0; offset < length; offset += gpsBlockSize {
		n := gpsBlockSize
		if remain := length - offset; remain < n {
			n = remain
		}

		ack := make([]byte, 1)
		if err := dev.Transport.Read(dev, []byte{ReadGPSDataCmd}, ack); err != nil {
			return err
		}

		lenBuf := make([]byte, lenWidth)
		if err := dev.Transport.Read(dev, []byte{subCmd}, lenBuf); err != nil {
			return err
		}
		reported := int(decodeLE(lenBuf))

		if reported == 0 {
			return errs.New(errs.InvalidType)
		}
		if reported != n {
			return errs.New(errs.ByteCount)
		}

		block := make([]byte, 1+n) // block index then payload
		if err := dev.Transport.Read(dev, []byte{ReadGPSDataCmd, subCmd}, block); err != nil {
			return err
		}
		copy(out[offset:offset+n], block[1:])
	}

	return nil
}

// WriteGPS implements write_gps (spec.md §4.C "symmetric" to read_gps):
// splits in into 16-byte blocks, each streamed through a WRITE_GPS_DATA
// transaction, returning the final device completion code.
func WriteGPS(dev *device.Device, subCmd byte, in []byte, length int) (byte, error) {
	if length != len(in) {
		return 0, errs.New(errs.InvalidParameter)
	}

	dev.DevMutex.Lock()
	defer dev.DevMutex.Unlock()
	dev.MarkForegroundAccess(true)
	defer dev.MarkForegroundAccess(false)

	var completion byte
	for offset := 0; offset < length; offset += gpsBlockSize {
		n := gpsBlockSize
		if remain := length - offset; remain < n {
			n = remain
		}

		payload := append([]byte{subCmd}, in[offset:offset+n]...)

		c, err := dev.Transport.Write(dev, []byte{WriteGPSDataCmd}, payload)
		if err != nil {
			return 0, err
		}
		completion = c
	}

	return completion, nil
}

// GenericIO implements generic_io (spec.md §4.C): three preamble bytes
// (sub_type, in_len, out_len), the in-payload, then a read-back yielding
// completion plus the out-payload.
func GenericIO(dev *device.Device, subType byte, in []byte, outLen int) (completion byte, out []byte, err error) {
	if len(in) > 255 || outLen > 255 {
		return 0, nil, errs.New(errs.InvalidParameter)
	}

	dev.DevMutex.Lock()
	defer dev.DevMutex.Unlock()
	dev.MarkForegroundAccess(true)
	defer dev.MarkForegroundAccess(false)

	cmd := []byte{subType, byte(len(in)), byte(outLen)}

	c, werr := dev.Transport.Write(dev, cmd, in)
	if werr != nil {
		return 0, nil, werr
	}

	if outLen == 0 {
		return c, nil, nil
	}

	out = make([]byte, outLen)
	if err := dev.Transport.Read(dev, cmd, out); err != nil {
		return 0, nil, err
	}

	return c, out, nil
}

func decodeLE(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	default:
		var v uint64
		for i := len(b) - 1; i >= 0; i-- {
			v = v<<8 | uint64(b[i])
		}
		return v
	}
}

func encodeLE(dst []byte, v uint64) {
	switch len(dst) {
	case 1:
		dst[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(dst, v)
	default:
		for i := range dst {
			dst[i] = byte(v >> (8 * uint(i)))
		}
	}
}
