// Package registry implements the fixed-capacity device table of
// spec.md §4.E: add/remove/locate-by-minor/locate-by-identity, tolerant
// of unplug while a handle remains open.
package registry

import (
	"sync"

	"github.com/mburnicki/mbgclock-drvr-sub000/device"
	"github.com/mburnicki/mbgclock-drvr-sub000/devtype"
	"github.com/mburnicki/mbgclock-drvr-sub000/errs"
	"github.com/sirupsen/logrus"
)

// Registry is a fixed-size slot table keyed by minor number (spec.md
// §4.E "Fixed table of size max_devices"). A cleared slot's descriptor
// survives until its last Release, so FindByMinor can still return it for
// an already-open handle after the underlying hardware is gone.
type Registry struct {
	mu    sync.Mutex
	slots []*device.Device
	log   *logrus.Entry
}

// New allocates a registry of the given capacity (spec.md §4.E
// "max_devices, default 20" -- the default lives in package config).
func New(capacity int) *Registry {
	return &Registry{
		slots: make([]*device.Device, capacity),
		log:   logrus.WithField("component", "registry"),
	}
}

// Add installs dev in the first free slot and returns its minor number,
// or errs.NoMemory if the registry is full (spec.md §4.E "add(dev) ->
// index|Full").
func (r *Registry) Add(dev *device.Device) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, slot := range r.slots {
		if slot == nil {
			r.slots[i] = dev
			dev.Minor = i
			r.log.WithFields(logrus.Fields{"minor": i, "id": dev.ID}).Info("registry: device added")
			return i, nil
		}
	}

	return -1, errs.New(errs.NoMemory)
}

// Remove clears the slot at index. It is safe to call while open handles
// remain on dev: the slot is cleared so no new open() can find it, but the
// descriptor itself survives via whatever reference the open handle still
// holds (spec.md §4.E "the slot clears, the descriptor survives until last
// release").
func (r *Registry) Remove(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= len(r.slots) {
		return
	}
	r.slots[index] = nil
	r.log.WithField("minor", index).Info("registry: device removed")
}

// FindByMinor returns the device at index, or nil if the slot is empty or
// index is out of range.
func (r *Registry) FindByMinor(index int) *device.Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= len(r.slots) {
		return nil
	}
	return r.slots[index]
}

// FindByIdentity locates a live or just-unplugged descriptor by
// (bus-kind, device-id, serial) -- used by USB probe to reattach an
// existing descriptor after an unplug/replug while still opened (spec.md
// §3 "Registry").
func (r *Registry) FindByIdentity(bus devtype.Bus, devID uint16, serial string) *device.Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, slot := range r.slots {
		if slot == nil {
			continue
		}
		if slot.Bus == bus && slot.DevID == devID && slot.SerialNumber == serial {
			return slot
		}
	}
	return nil
}

// Len returns the registry's fixed capacity.
func (r *Registry) Len() int {
	return len(r.slots)
}
