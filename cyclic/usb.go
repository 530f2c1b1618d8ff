package cyclic

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mburnicki/mbgclock-drvr-sub000/device"
	"github.com/mburnicki/mbgclock-drvr-sub000/transaction"
	"github.com/sirupsen/logrus"
)

// irqNoneCmd and irq1SecCmd are PCPS_IRQ_NONE / PCPS_IRQ_1_SEC
// (original_source/include/pcpsdefs.h:723-724): "(-w) Disable IRQs" /
// "(-w) Enable IRQ per 1 second", reused verbatim as the USB cyclic
// enable/disable commands per spec.md §4.F "USB path".
const (
	irqNoneCmd byte = 0x20
	irq1SecCmd byte = 0x21
)

// USBSource is the USB worker path of spec.md §4.F: Enable sends
// IRQ_1_SEC, then starts a goroutine that bulk-reads the cyclic IN
// endpoint in a loop, storing each received PCPS_TIME under
// dev.CyclicSem instead of dev.IRQLock (bulk transfer may block, so the
// plug-in spinlock rendezvous is unsuitable -- spec.md §4.I "USB
// cyclic_sem").
type USBSource struct {
	dev     *device.Device
	timeout time.Duration
	log     *logrus.Entry

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	alive   bool
	fatal   error
}

// NewUSBSource wraps dev's USB cyclic endpoint. timeout is the per-read
// bulk transfer deadline (config.USBCyclicReadTimeout, default 1.2 s).
func NewUSBSource(dev *device.Device, timeout time.Duration) *USBSource {
	return &USBSource{
		dev:     dev,
		timeout: timeout,
		log:     logrus.WithFields(logrus.Fields{"component": "cyclic-usb", "minor": dev.Minor}),
	}
}

// Enable implements spec.md §4.F "USB path": force==2 disables and joins
// the running worker before restarting it, so re-enable never leaves two
// workers racing on the same endpoint.
func (s *USBSource) Enable(force int) error {
	s.mu.Lock()
	already := s.alive
	s.mu.Unlock()

	if already {
		if force == 2 {
			s.Disable()
		} else {
			return nil
		}
	}

	if err := transaction.WriteCmd(s.dev, irq1SecCmd); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.cancel = cancel
	s.alive = true
	s.fatal = nil
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)

	s.dev.IRQStatus.EnableCalled = true
	s.dev.IRQStatus.Enabled = true
	s.log.Debug("cyclic: usb worker enabled")
	return nil
}

// Disable sends IRQ_NONE and joins the worker (spec.md §4.F "disable(dev)
// is symmetric").
func (s *USBSource) Disable() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	_ = transaction.WriteCmd(s.dev, irqNoneCmd)

	s.mu.Lock()
	s.alive = false
	s.mu.Unlock()

	s.dev.IRQStatus.Enabled = false
	s.log.Debug("cyclic: usb worker disabled")
}

// Alive reports whether the worker goroutine is still running.
func (s *USBSource) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

// run is the worker body of spec.md §4.F: bulk-read the cyclic endpoint
// with a timeout, continue on Timeout, exit and mark the source dead on
// any other error, store the sample under dev.CyclicSem on success.
func (s *USBSource) run(ctx context.Context) {
	defer s.wg.Done()

	buf := make([]byte, 8)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		readCtx, cancel := context.WithTimeout(ctx, s.timeout)
		n, err := s.dev.USB.ReadCyclic(readCtx, buf)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			s.mu.Lock()
			s.alive = false
			s.fatal = err
			s.mu.Unlock()
			s.log.WithError(err).Warn("cyclic: usb cyclic read failed, worker exiting")
			return
		}
		if n != len(buf) {
			continue
		}

		s.dev.CyclicSem.Lock()
		s.dev.SetLastTime(decodeTime(leUint64(buf)))
		s.dev.TouchLastTick(time.Now())
		s.dev.CyclicSem.Unlock()

		s.dev.SetDataAvailable(true)
		s.dev.WakeWaiters()
		s.dev.NotifySignalTargets()
	}
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < len(b) && i < 8; i++ {
		v |= uint64(b[i]) << (8 * uint(i))
	}
	return v
}
