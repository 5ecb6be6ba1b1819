// Package ring implements the single-producer single-consumer audio ring
// buffer that lives inside a shared memory region. The producer side runs on
// the host's real-time thread; the consumer side runs in another process.
// The two coordinate through nothing but the atomic cursors and the active
// flag in the region header.
package ring

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/quiet-signal-labs/audiotap/internal/shmem"
)

// HeaderSize is the byte length of the region header. The float32 payload
// starts immediately after it.
const HeaderSize = 32

const bytesPerSample = 4

var (
	// ErrRegionTooSmall reports a region that cannot hold the header plus
	// at least one frame.
	ErrRegionTooSmall = errors.New("ring: region too small")

	// ErrBadHeader reports a header whose fields do not describe the
	// region that contains it.
	ErrBadHeader = errors.New("ring: malformed region header")
)

// header is the exact wire layout at offset 0 of the region, native
// endianness. Cursors count frames and only ever increase; the buffer offset
// of a cursor is cursor mod capacity.
type header struct {
	writeCursor uint64
	readCursor  uint64
	active      uint32
	sampleRate  uint32
	channels    uint32
	frameSize   uint32
}

// Stats counts producer-side events since the ring was created.
type Stats struct {
	FramesWritten     uint64
	FramesOverwritten uint64
	ShortWrites       uint64
}

// Size returns the region size in bytes needed for a ring of the given
// geometry.
func Size(capacityFrames, channels int) int {
	return HeaderSize + capacityFrames*channels*bytesPerSample
}

func mapHeader(b []byte) *header {
	return (*header)(unsafe.Pointer(&b[0]))
}

func mapPayload(b []byte, samples int) []float32 {
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[HeaderSize])), samples)
}

// Producer is the write side of the ring. Exactly one exists per region, in
// the driver process. All methods other than the constructor are safe to
// call from the real-time thread: they allocate nothing and never block.
type Producer struct {
	hdr      *header
	payload  []float32
	capacity uint64 // frames
	channels int

	framesWritten     uint64
	framesOverwritten uint64
	shortWrites       uint64
}

// New initializes the region header for the given geometry and returns the
// producer view. The payload is assumed zeroed (freshly created regions are).
func New(region *shmem.Region, capacityFrames, channels, sampleRate int) (*Producer, error) {
	if capacityFrames <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: capacity %d channels %d", ErrBadHeader, capacityFrames, channels)
	}
	need := Size(capacityFrames, channels)
	if region.Size() < need {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrRegionTooSmall, region.Size(), need)
	}

	b := region.Bytes()
	hdr := mapHeader(b)
	atomic.StoreUint64(&hdr.writeCursor, 0)
	atomic.StoreUint64(&hdr.readCursor, 0)
	atomic.StoreUint32(&hdr.active, 0)
	hdr.sampleRate = uint32(sampleRate)
	hdr.channels = uint32(channels)
	hdr.frameSize = uint32(channels * bytesPerSample)

	return &Producer{
		hdr:      hdr,
		payload:  mapPayload(b, capacityFrames*channels),
		capacity: uint64(capacityFrames),
		channels: channels,
	}, nil
}

// Write appends interleaved samples to the ring. A trailing partial frame is
// dropped and counted. When unread depth would exceed capacity the oldest
// frames are silently overwritten; the producer never waits for the reader.
//
// The payload is stored before the write cursor advances, so a consumer that
// acquire-loads the cursor only ever dereferences published samples.
func (p *Producer) Write(samples []float32) {
	frames := uint64(len(samples) / p.channels)
	if rem := len(samples) % p.channels; rem != 0 {
		samples = samples[:len(samples)-rem]
		p.shortWrites++
	}
	if frames == 0 {
		return
	}

	// A single write larger than the whole ring reduces to its tail.
	if frames > p.capacity {
		skip := frames - p.capacity
		samples = samples[skip*uint64(p.channels):]
		p.framesOverwritten += skip
		p.framesWritten += skip
		frames = p.capacity
	}

	w := atomic.LoadUint64(&p.hdr.writeCursor)
	start := (w % p.capacity) * uint64(p.channels)
	n := copy(p.payload[start:], samples)
	if n < len(samples) {
		copy(p.payload, samples[n:]) // wrap: second contiguous segment
	}
	atomic.StoreUint64(&p.hdr.writeCursor, w+frames)

	p.framesWritten += frames
	if r := atomic.LoadUint64(&p.hdr.readCursor); w+frames-r > p.capacity {
		p.framesOverwritten += min(frames, w+frames-r-p.capacity)
	}
}

// SetActive publishes whether the device is producing. Toggled on lifecycle
// transitions, independent of the cursors.
func (p *Producer) SetActive(active bool) {
	var v uint32
	if active {
		v = 1
	}
	atomic.StoreUint32(&p.hdr.active, v)
}

// Active reports the published flag.
func (p *Producer) Active() bool {
	return atomic.LoadUint32(&p.hdr.active) != 0
}

// Clear logically empties the ring by advancing the read cursor to the write
// cursor. Cursors stay monotonic, so a concurrently attached consumer sees
// an empty ring rather than a rewound one.
func (p *Producer) Clear() {
	atomic.StoreUint64(&p.hdr.readCursor, atomic.LoadUint64(&p.hdr.writeCursor))
}

// SetSampleRate republishes the header's sample rate after a nominal rate
// change. Only legal while IO is stopped.
func (p *Producer) SetSampleRate(rate int) {
	p.hdr.sampleRate = uint32(rate)
}

// Capacity returns the ring capacity in frames.
func (p *Producer) Capacity() int { return int(p.capacity) }

// Channels returns the interleaved channel count.
func (p *Producer) Channels() int { return p.channels }

// WriteCursor returns the monotonic frame count written so far.
func (p *Producer) WriteCursor() uint64 {
	return atomic.LoadUint64(&p.hdr.writeCursor)
}

// ReadFrames copies frames starting at the given cursor into dst without
// touching the shared read cursor. This serves the in-process loopback path,
// which must not disturb the external consumer's progress. Frames that have
// been overwritten or not yet written come back as silence; the return value
// is the frame count actually copied from the ring.
func (p *Producer) ReadFrames(cursor uint64, dst []float32) int {
	frames := uint64(len(dst)) / uint64(p.channels)
	w := atomic.LoadUint64(&p.hdr.writeCursor)

	for i := range dst {
		dst[i] = 0
	}
	if frames == 0 || w == 0 {
		return 0
	}
	oldest := uint64(0)
	if w > p.capacity {
		oldest = w - p.capacity
	}
	if cursor < oldest {
		cursor = oldest
	}
	if cursor >= w {
		return 0
	}
	frames = min(frames, w-cursor)

	start := (cursor % p.capacity) * uint64(p.channels)
	n := copy(dst[:frames*uint64(p.channels)], p.payload[start:])
	if n < int(frames)*p.channels {
		copy(dst[n:frames*uint64(p.channels)], p.payload)
	}
	return int(frames)
}

// Stats returns a snapshot of the producer counters. Not for use on the
// real-time thread.
func (p *Producer) Stats() Stats {
	return Stats{
		FramesWritten:     p.framesWritten,
		FramesOverwritten: p.framesOverwritten,
		ShortWrites:       p.shortWrites,
	}
}
