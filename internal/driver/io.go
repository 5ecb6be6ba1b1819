package driver

import (
	"github.com/quiet-signal-labs/audiotap/internal/downmix"
	"github.com/quiet-signal-labs/audiotap/internal/hal"
)

// Everything in this file runs on the host's real-time IO thread, under a
// hard per-quantum deadline. No allocation, no logging, no locks beyond the
// StartIO/StopIO reference count; failures are status codes only.

// StartIO begins a client's IO. The first active client moves the device to
// Running, which anchors the clock, clears the ring and raises the active
// flag. Starting while already running is a no-op.
func (d *Driver) StartIO(dev hal.ObjectID, clientID uint32) hal.Status {
	if dev != hal.ObjectDevice {
		return hal.StatusBadObject
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ioRefs++
	if d.ioRefs == 1 {
		if st := d.dev.SetRunning(true); st != hal.StatusOK {
			d.ioRefs--
			return st
		}
	}
	return hal.StatusOK
}

// StopIO ends a client's IO. The last stop moves the device to Stopped and
// drops the active flag. Stopping while already stopped is a no-op.
func (d *Driver) StopIO(dev hal.ObjectID, clientID uint32) hal.Status {
	if dev != hal.ObjectDevice {
		return hal.StatusBadObject
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ioRefs == 0 {
		// No IO clients, but the device may have been started through the
		// property path; running state stays the single source of truth.
		if d.dev.IsRunning() {
			return d.dev.SetRunning(false)
		}
		return hal.StatusOK
	}
	d.ioRefs--
	if d.ioRefs == 0 {
		return d.dev.SetRunning(false)
	}
	return hal.StatusOK
}

// ZeroTimeStamp returns the current quantized sample/host time anchor.
func (d *Driver) ZeroTimeStamp(dev hal.ObjectID) (float64, uint64, uint64, hal.Status) {
	if dev != hal.ObjectDevice {
		return 0, 0, 0, hal.StatusBadObject
	}
	if !d.dev.IsRunning() {
		return 0, 0, 0, hal.StatusInvalidState
	}
	sampleTime, hostTime, seed := d.clock.zeroTimeStamp()
	return sampleTime, hostTime, seed, hal.StatusOK
}

// WillDoIOOperation declares which cycle phases the driver participates in:
// only input reads and the output mix.
func (d *Driver) WillDoIOOperation(dev hal.ObjectID, op hal.IOOperation) (bool, bool) {
	switch op {
	case hal.IOOperationReadInput, hal.IOOperationWriteMix:
		return true, true
	default:
		return false, true
	}
}

func (d *Driver) checkIO(dev hal.ObjectID, frames int) hal.Status {
	if dev != hal.ObjectDevice {
		return hal.StatusBadObject
	}
	if !d.dev.IsRunning() {
		return hal.StatusInvalidState
	}
	if frames <= 0 || frames > maxQuantumFrames {
		return hal.StatusBadPropertySize
	}
	return hal.StatusOK
}

// BeginIOOperation opens one phase of a render quantum.
func (d *Driver) BeginIOOperation(dev hal.ObjectID, clientID uint32, op hal.IOOperation, frames int, info *hal.CycleInfo) hal.Status {
	return d.checkIO(dev, frames)
}

// DoIOOperation performs the phase. For a write/mix cycle the interleaved
// device-format buffer is gain-scaled, downmixed when the ring is mono and
// appended to the shared ring; for a read/input cycle the ring is played
// back into the buffer at the loopback cursor.
func (d *Driver) DoIOOperation(dev, stream hal.ObjectID, clientID uint32, op hal.IOOperation, frames int, info *hal.CycleInfo, buf []float32) hal.Status {
	if st := d.checkIO(dev, frames); st != hal.StatusOK {
		return st
	}
	if stream != hal.ObjectStreamInput && stream != hal.ObjectStreamOutput {
		return hal.StatusBadObject
	}

	devChannels := d.dev.Channels()
	if len(buf) < frames*devChannels {
		return hal.StatusBadPropertySize
	}
	buf = buf[:frames*devChannels]

	switch op {
	case hal.IOOperationWriteMix:
		d.writeMix(buf, frames, devChannels)
		return hal.StatusOK
	case hal.IOOperationReadInput:
		d.readInput(buf, frames, devChannels)
		return hal.StatusOK
	default:
		return hal.StatusUnsupported
	}
}

// EndIOOperation closes one phase of a render quantum.
func (d *Driver) EndIOOperation(dev hal.ObjectID, clientID uint32, op hal.IOOperation, frames int, info *hal.CycleInfo) hal.Status {
	return d.checkIO(dev, frames)
}

func (d *Driver) writeMix(buf []float32, frames, devChannels int) {
	gain := d.dev.OutputVolume().Scalar()
	if d.dev.OutputMute().Muted() {
		gain = 0
	}

	var samples []float32
	if d.cfg.RingChannels == 1 && devChannels == 2 {
		n := downmix.StereoToMono(d.scratch, buf)
		samples = d.scratch[:n]
	} else {
		samples = d.scratch[:copy(d.scratch, buf)]
	}
	if gain != 1 {
		for i := range samples {
			samples[i] *= gain
		}
	}
	d.prod.Write(samples)
}

func (d *Driver) readInput(buf []float32, frames, devChannels int) {
	gain := d.dev.InputVolume().Scalar()
	if d.dev.InputMute().Muted() {
		gain = 0
	}

	ringChannels := d.cfg.RingChannels
	mono := d.scratch[:frames*ringChannels]
	n := d.prod.ReadFrames(d.loopbackCursor, mono)
	d.loopbackCursor += uint64(n)

	if ringChannels == devChannels {
		for i := range buf {
			buf[i] = mono[i] * gain
		}
		return
	}
	// Mono ring behind a stereo input stream: duplicate each sample.
	for i := 0; i < frames; i++ {
		v := mono[i] * gain
		buf[2*i] = v
		buf[2*i+1] = v
	}
}
