package main

import (
	"encoding/binary"
	"log/slog"
	"math"

	"github.com/gen2brain/malgo"
)

const micChannels = 2

// micSource captures stereo float32 audio from the default input device.
// Captured samples are buffered on a channel; if the capture callback falls
// behind the host cadence, Fill pads the quantum with silence.
type micSource struct {
	mctx    *malgo.AllocatedContext
	device  *malgo.Device
	samples chan float32
	dropped int
}

func newMicSource(sampleRate int) (*micSource, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("miniaudio", "message", message)
	})
	if err != nil {
		return nil, err
	}

	src := &micSource{
		mctx: mctx,
		// Half a second of backlog before the callback starts dropping.
		samples: make(chan float32, sampleRate*micChannels/2),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = micChannels
	deviceConfig.SampleRate = uint32(sampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(outputSamples, inputSamples []byte, frameCount uint32) {
			for i := 0; i+4 <= len(inputSamples); i += 4 {
				s := math.Float32frombits(binary.NativeEndian.Uint32(inputSamples[i:]))
				select {
				case src.samples <- s:
				default:
					src.dropped++
				}
			}
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		mctx.Uninit()
		mctx.Free()
		return nil, err
	}
	src.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		mctx.Free()
		return nil, err
	}
	return src, nil
}

func (m *micSource) Fill(buf []float32, frames int) {
	want := frames * micChannels
	for i := 0; i < want; i++ {
		select {
		case s := <-m.samples:
			buf[i] = s
		default:
			buf[i] = 0
		}
	}
}

func (m *micSource) Close() {
	m.device.Uninit()
	if m.dropped > 0 {
		slog.Warn("microphone samples dropped", "count", m.dropped)
	}
	if err := m.mctx.Uninit(); err != nil {
		slog.Warn("error while closing audio context", "err", err)
	}
	m.mctx.Free()
}
