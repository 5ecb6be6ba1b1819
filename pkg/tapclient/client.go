// Package tapclient is the consumer-facing contract over the driver's
// shared capture region. The reader runs unprivileged, in its own process,
// on its own schedule; the only coordination with the driver is the region
// header's atomic cursors and active flag.
package tapclient

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quiet-signal-labs/audiotap/internal/ring"
	"github.com/quiet-signal-labs/audiotap/internal/shmem"
)

// ErrRegionUnavailable reports that the capture region does not exist, is
// malformed, or has been closed under this handle.
var ErrRegionUnavailable = errors.New("capture region unavailable")

// RegionName is the fixed name the driver publishes the region under.
const RegionName = shmem.DefaultRegionName

// IsRegionAvailable reports whether a driver has published the capture
// region.
func IsRegionAvailable() bool {
	return shmem.Available(RegionName)
}

// Handle is one open attachment to the capture region. Handles are not safe
// for concurrent use; open one per reader.
type Handle struct {
	id     uuid.UUID
	logger *slog.Logger

	region *shmem.Region
	cons   *ring.Consumer

	closeOnce sync.Once
	closed    bool
}

// Open attaches to the capture region. Reading is restartable: closing a
// handle and opening a new one resumes from the oldest retained audio.
func Open() (*Handle, error) {
	id := uuid.New()
	logger := slog.Default().With("tap handle", id)

	region, err := shmem.Open(RegionName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegionUnavailable, err)
	}

	cons, err := ring.Attach(region)
	if err != nil {
		region.Close()
		return nil, fmt.Errorf("%w: %v", ErrRegionUnavailable, err)
	}

	logger.Debug("attached to capture region",
		"sampleRate", cons.SampleRate(),
		"channels", cons.Channels(),
		"capacityFrames", cons.Capacity(),
	)
	return &Handle{id: id, logger: logger, region: region, cons: cons}, nil
}

// ReadAvailableFrames copies unread interleaved samples into dst and returns
// how many were copied, always whole frames and finite per call. Zero means
// no new audio since the last read.
func (h *Handle) ReadAvailableFrames(dst []float32) (int, error) {
	if h.closed {
		return 0, ErrRegionUnavailable
	}
	return h.cons.ReadAvailable(dst)
}

// Format returns the producer's published sample rate and channel count.
func (h *Handle) Format() (sampleRate, channels int) {
	return h.cons.SampleRate(), h.cons.Channels()
}

// Producing reports the driver's active flag: true while the device is
// running and feeding the ring.
func (h *Handle) Producing() bool {
	return !h.closed && h.cons.Active()
}

// ProducerAlive reports whether the driver is still writing. It first
// consults the active flag, then waits up to timeout for the write cursor
// to advance. A driver that has exited (or stopped without clearing up)
// shows an unmoving cursor and reads as dead, so consumer teardown never
// blocks on a vanished producer.
func (h *Handle) ProducerAlive(timeout time.Duration) bool {
	if h.closed || !h.cons.Active() {
		return false
	}

	start := h.cons.WriteCursor()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if h.cons.WriteCursor() != start {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return h.cons.WriteCursor() != start
}

// TornReads counts reads this handle had to retry against an overwriting
// producer. Diagnostic only.
func (h *Handle) TornReads() uint64 {
	return h.cons.TornReads()
}

// Close detaches from the region. Idempotent. The region itself stays alive
// for other readers and the producer.
func (h *Handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.closed = true
		err = h.region.Close()
		h.logger.Debug("detached from capture region")
	})
	return err
}
