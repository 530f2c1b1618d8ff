package probe

import "time"

// UptimeSource reports host uptime for the PCIe-boots-Linux-on-card
// readiness wait (spec.md §4.D step 4). ok is false for hosts with no
// uptime source, which skip the wait entirely.
type UptimeSource interface {
	Uptime() (d time.Duration, ok bool)
}

// NoUptimeSource always reports ok=false (spec.md: "Hosts without an
// uptime source skip the wait.").
type NoUptimeSource struct{}

func (NoUptimeSource) Uptime() (time.Duration, bool) { return 0, false }

// FakeUptime reports a fixed uptime, grounded on the pattern of
// substituting a deterministic clock for a host-supplied one.
type FakeUptime struct {
	D time.Duration
}

func (f FakeUptime) Uptime() (time.Duration, bool) { return f.D, true }

// boardReadyUptimeCap is the known upper bound a PCIe-boots-Linux-on-card
// board needs to flag itself ready (spec.md §4.D step 4: "host uptime
// exceeds a known upper bound (27 s)").
const boardReadyUptimeCap = 27 * time.Second
