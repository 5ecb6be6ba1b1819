package ring

import (
	"fmt"
	"sync/atomic"

	"github.com/quiet-signal-labs/audiotap/internal/shmem"
)

// tornReadRetries bounds how often a read races a wrapping writer before the
// consumer gives up for this poll. The capacity margin (seconds of audio per
// region versus milliseconds per quantum) makes even one retry rare.
const tornReadRetries = 4

// Consumer is the read side of the ring, attached from another process. It
// owns the read cursor; the producer only ever reads it.
type Consumer struct {
	hdr      *header
	payload  []float32
	capacity uint64
	channels int

	tornReads uint64
}

// Attach validates the region header and returns the consumer view.
func Attach(region *shmem.Region) (*Consumer, error) {
	if region.Size() < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrRegionTooSmall, region.Size())
	}
	b := region.Bytes()
	hdr := mapHeader(b)

	channels := int(hdr.channels)
	if channels <= 0 || channels > 8 {
		return nil, fmt.Errorf("%w: channel count %d", ErrBadHeader, channels)
	}
	if int(hdr.frameSize) != channels*bytesPerSample {
		return nil, fmt.Errorf("%w: frame size %d for %d channels", ErrBadHeader, hdr.frameSize, channels)
	}
	capacity := (region.Size() - HeaderSize) / (channels * bytesPerSample)
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: no payload", ErrRegionTooSmall)
	}

	return &Consumer{
		hdr:      hdr,
		payload:  mapPayload(b, capacity*channels),
		capacity: uint64(capacity),
		channels: channels,
	}, nil
}

// ReadAvailable copies as many unread samples as fit in dst and advances the
// read cursor past them. It returns the number of samples copied, always a
// whole number of frames and finite per call.
//
// A race with an overwriting producer is detected after the copy: if the
// write cursor has moved past the span that was copied, the data may be torn
// and the read is retried from fresh cursors. The race is benign: at worst
// stale bytes are copied and discarded, never dereferenced out of bounds.
func (c *Consumer) ReadAvailable(dst []float32) (int, error) {
	maxFrames := uint64(len(dst) / c.channels)
	if maxFrames == 0 {
		return 0, nil
	}

	for attempt := 0; attempt <= tornReadRetries; attempt++ {
		w := atomic.LoadUint64(&c.hdr.writeCursor)
		r := atomic.LoadUint64(&c.hdr.readCursor)
		if r > w {
			// Producer restarted with a fresh region under us.
			r = w
		}
		if w-r > c.capacity {
			// Fell behind; oldest retained frame is write - capacity.
			r = w - c.capacity
		}

		frames := min(w-r, maxFrames)
		if frames == 0 {
			return 0, nil
		}

		start := (r % c.capacity) * uint64(c.channels)
		n := copy(dst[:frames*uint64(c.channels)], c.payload[start:])
		if n < int(frames)*c.channels {
			copy(dst[n:frames*uint64(c.channels)], c.payload)
		}

		// Revalidate: if the producer lapped the copied span, the bytes
		// above may interleave old and new audio.
		if atomic.LoadUint64(&c.hdr.writeCursor)-r <= c.capacity {
			atomic.StoreUint64(&c.hdr.readCursor, r+frames)
			return int(frames) * c.channels, nil
		}
		c.tornReads++
	}

	// Still racing after the bounded retries; report nothing this poll and
	// let the caller's next poll land on stable cursors.
	return 0, nil
}

// Active reports the producer's published active flag.
func (c *Consumer) Active() bool {
	return atomic.LoadUint32(&c.hdr.active) != 0
}

// SampleRate returns the producer's published sample rate.
func (c *Consumer) SampleRate() int { return int(c.hdr.sampleRate) }

// Channels returns the interleaved channel count.
func (c *Consumer) Channels() int { return c.channels }

// Capacity returns the ring capacity in frames.
func (c *Consumer) Capacity() int { return int(c.capacity) }

// WriteCursor exposes the producer's monotonic cursor, used by liveness
// checks to tell a silent producer from a dead one.
func (c *Consumer) WriteCursor() uint64 {
	return atomic.LoadUint64(&c.hdr.writeCursor)
}

// TornReads counts reads that had to be retried because the producer lapped
// them mid-copy.
func (c *Consumer) TornReads() uint64 { return c.tornReads }
