package ioreg

import (
	"encoding/binary"
	"unsafe"
)

// nativeEndian is resolved once at init time and used only for the Raw
// accessors, which intentionally skip the device-endianness conversion.
var nativeEndian binary.ByteOrder

func init() {
	var i uint16 = 1
	b := (*[2]byte)(unsafe.Pointer(&i))

	if b[0] == 1 {
		nativeEndian = binary.LittleEndian
	} else {
		nativeEndian = binary.BigEndian
	}
}
