package device

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/quiet-signal-labs/audiotap/internal/hal"
)

// Property values cross the contract boundary as raw bytes in the host's
// native endianness, mirroring the shared-memory layout.
var nativeEndian = func() interface {
	binary.ByteOrder
	binary.AppendByteOrder
} {
	var probe uint16 = 1
	if *(*byte)(unsafe.Pointer(&probe)) == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}()

func appendU32(b []byte, v uint32) []byte {
	return nativeEndian.AppendUint32(b, v)
}

func appendBool32(b []byte, v bool) []byte {
	if v {
		return appendU32(b, 1)
	}
	return appendU32(b, 0)
}

func appendF32(b []byte, v float32) []byte {
	return nativeEndian.AppendUint32(b, math.Float32bits(v))
}

func appendF64(b []byte, v float64) []byte {
	return nativeEndian.AppendUint64(b, math.Float64bits(v))
}

func appendObjectIDs(b []byte, ids ...hal.ObjectID) []byte {
	for _, id := range ids {
		b = appendU32(b, uint32(id))
	}
	return b
}

func appendFormat(b []byte, f hal.StreamFormat) []byte {
	b = appendF64(b, f.SampleRate)
	b = appendU32(b, f.FormatFlags)
	b = appendU32(b, f.BytesPerPacket)
	b = appendU32(b, f.FramesPerPacket)
	b = appendU32(b, f.BytesPerFrame)
	b = appendU32(b, f.ChannelsPerFrame)
	return appendU32(b, f.BitsPerChannel)
}

func decodeU32(data []byte) (uint32, bool) {
	if len(data) < 4 {
		return 0, false
	}
	return nativeEndian.Uint32(data), true
}

func decodeF32(data []byte) (float32, bool) {
	v, ok := decodeU32(data)
	return math.Float32frombits(v), ok
}

func decodeF64(data []byte) (float64, bool) {
	if len(data) < 8 {
		return 0, false
	}
	return math.Float64frombits(nativeEndian.Uint64(data)), true
}
