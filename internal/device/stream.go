package device

import (
	"sync/atomic"

	"github.com/quiet-signal-labs/audiotap/internal/hal"
)

// Stream is one direction of the device. Streams have no payload of their
// own; their format mirrors the owning device's nominal rate and channel
// count.
type Stream struct {
	id        hal.ObjectID
	direction uint32
	terminal  uint32
	device    *Device

	active atomic.Bool
}

func newStream(id hal.ObjectID, direction, terminal uint32, device *Device) *Stream {
	s := &Stream{
		id:        id,
		direction: direction,
		terminal:  terminal,
		device:    device,
	}
	s.active.Store(true)
	return s
}

// ID returns the stream's object ID.
func (s *Stream) ID() hal.ObjectID { return s.id }

// Direction returns the contract's direction value.
func (s *Stream) Direction() uint32 { return s.direction }

// TerminalType returns the contract's terminal type value.
func (s *Stream) TerminalType() uint32 { return s.terminal }

// Active reports whether the host has the stream enabled.
func (s *Stream) Active() bool { return s.active.Load() }

// SetActive toggles the stream. Settable by the host through the property
// path.
func (s *Stream) SetActive(active bool) { s.active.Store(active) }

// StartingChannel returns the first device channel this stream covers.
// Always 1 for this single-stream-per-direction device.
func (s *Stream) StartingChannel() uint32 { return 1 }

// Latency returns the stream's latency hint in frames.
func (s *Stream) Latency() uint32 { return s.device.cfg.LatencyFrames }

// Format describes the current sample layout: packed native-endian float32,
// interleaved, at the device's nominal rate.
func (s *Stream) Format() hal.StreamFormat {
	return formatForRate(s.device.NominalRate(), s.device.cfg.Channels)
}

// AvailableFormats lists one format per supported nominal rate.
func (s *Stream) AvailableFormats() []hal.StreamFormat {
	formats := make([]hal.StreamFormat, 0, len(s.device.cfg.SupportedRates))
	for _, rate := range s.device.cfg.SupportedRates {
		formats = append(formats, formatForRate(rate, s.device.cfg.Channels))
	}
	return formats
}

func formatForRate(rate, channels int) hal.StreamFormat {
	bytesPerFrame := uint32(channels) * 4
	return hal.StreamFormat{
		SampleRate:       float64(rate),
		FormatFlags:      hal.FormatFlagIsFloat | hal.FormatFlagIsPacked | hal.FormatFlagNativeEndian,
		BytesPerPacket:   bytesPerFrame,
		FramesPerPacket:  1,
		BytesPerFrame:    bytesPerFrame,
		ChannelsPerFrame: uint32(channels),
		BitsPerChannel:   32,
	}
}
