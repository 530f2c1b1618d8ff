package ioreg

// CPUCyclesToNS converts a CPU cycle delta to nanoseconds given the CPU
// frequency in Hz. On architectures where ReadCPUCycles already returns a
// nanosecond-denominated fallback counter, freq should be passed as 1e9 so
// the conversion is the identity.
func CPUCyclesToNS(cycles uint64, freqHz uint64) uint64 {
	if freqHz == 0 {
		return 0
	}
	return cycles * 1_000_000_000 / freqHz
}
