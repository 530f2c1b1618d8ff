package device

import "fmt"

// Status bits of a PCPSTime sample, carried in PCPSTime.Status.
const (
	StatusSyncd = 1 << iota
	StatusFreeRun
	StatusUTC
	StatusAnnounce // DST or leap second announced
)

// PCPSTime is the cached time-of-last-tick sample, opaque payload
// layout aside from the fields the character device surface needs to
// format (spec.md §3 "a copy of the last read PCPS_TIME").
type PCPSTime struct {
	Sec100  uint8
	Sec     uint8
	Min     uint8
	Hour    uint8
	MDay    uint8
	WDay    uint8
	Month   uint8
	Year    uint8
	Status  uint16
	Signal  int8
	OffsUTC int16
}

// statusFlags renders the four single-character status indicators of
// original_source/mbgclock_main.c's pcps_time_to_time_str: synced,
// free-running, UTC-vs-local, DST/leap announce.
func (t PCPSTime) statusFlags() string {
	flag := func(set bool, ch byte) byte {
		if set {
			return ch
		}
		return ' '
	}

	b := []byte{
		flag(t.Status&StatusSyncd != 0, 'S'),
		flag(t.Status&StatusFreeRun != 0, 'F'),
		flag(t.Status&StatusUTC != 0, 'U'),
		flag(t.Status&StatusAnnounce != 0, 'A'),
	}

	return string(b)
}

// Frame formats the cached time as the 32-byte STX/ETX wire frame of
// spec.md §4.I / §6 / §8 scenario 4:
//
//	STX D:DD.MM.YY;T:w;U:HH:MM:SS;flags ETX
//
// The frame is a fixed 32 bytes including the STX/ETX delimiters,
// consumed verbatim by an external time-sync daemon -- it is a wire
// contract and must not be reformatted.
func (t PCPSTime) Frame() [32]byte {
	const stx, etx = 0x02, 0x03

	body := fmt.Sprintf("D:%02d.%02d.%02d;T:%d;U:%02d:%02d:%02d;%s",
		t.MDay, t.Month, t.Year, t.WDay, t.Hour, t.Min, t.Sec, t.statusFlags())

	var out [32]byte
	out[0] = stx
	n := copy(out[1:31], body)
	for i := 1 + n; i < 31; i++ {
		out[i] = ' '
	}
	out[31] = etx

	return out
}
