// Package device models the virtual capture device's object graph: one
// device with an input and an output stream plus volume and mute controls,
// exposed to the host through property introspection.
//
// Property access arrives on host worker threads while the running flag and
// control values are read from the real-time IO thread, so all cross-thread
// state here is atomic.
package device

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/quiet-signal-labs/audiotap/internal/hal"
)

// State is the device lifecycle position.
type State int32

const (
	StateUnregistered State = iota
	StateCreated
	StateRunning
	StateStopped
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateDestroyed:
		return "destroyed"
	default:
		return "invalid"
	}
}

// Config fixes the identity and geometry of the device at build time.
type Config struct {
	Name         string
	Manufacturer string
	UID          string
	ModelUID     string

	Channels       int
	SampleRate     int
	SupportedRates []int

	LatencyFrames       uint32
	SafetyOffsetFrames  uint32
	ZeroTimeStampPeriod uint32
}

// Device is the persistent device object. At most one exists per loaded
// plugin.
type Device struct {
	cfg    Config
	logger *slog.Logger

	state       atomic.Int32
	nominalRate atomic.Int64

	inStream  *Stream
	outStream *Stream
	inVolume  *VolumeControl
	outVolume *VolumeControl
	inMute    *MuteControl
	outMute   *MuteControl

	// transitions are serialized; reads of state stay lock-free.
	mu sync.Mutex

	// onRateChange fires after a successful nominal rate change, with IO
	// stopped, so the owner can recompute its clock and republish the
	// region header.
	onRateChange func(oldRate, newRate int)

	// onRunningChange fires on every Running edge, from either the
	// StartIO/StopIO path or the property path, keeping the shared ring's
	// active flag in lockstep with the host's view.
	onRunningChange func(running bool)
}

// New builds the device graph in the Unregistered state.
func New(cfg Config, logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Device{
		cfg:    cfg,
		logger: logger.With("device", cfg.UID),
	}
	d.nominalRate.Store(int64(cfg.SampleRate))

	d.inStream = newStream(hal.ObjectStreamInput, hal.DirectionInput, hal.TerminalTypeMicrophone, d)
	d.outStream = newStream(hal.ObjectStreamOutput, hal.DirectionOutput, hal.TerminalTypeSpeaker, d)
	d.inVolume = newVolumeControl(hal.ObjectVolumeInput, hal.ScopeInput)
	d.outVolume = newVolumeControl(hal.ObjectVolumeOutput, hal.ScopeOutput)
	d.inMute = newMuteControl(hal.ObjectMuteInput, hal.ScopeInput)
	d.outMute = newMuteControl(hal.ObjectMuteOutput, hal.ScopeOutput)
	return d
}

// OnRateChange registers the nominal-rate callback. Must be set before the
// device is published to the host.
func (d *Device) OnRateChange(fn func(oldRate, newRate int)) { d.onRateChange = fn }

// OnRunningChange registers the running-edge callback.
func (d *Device) OnRunningChange(fn func(running bool)) { d.onRunningChange = fn }

// State returns the current lifecycle position.
func (d *Device) State() State { return State(d.state.Load()) }

// IsRunning reports whether IO cycles are legal right now. Safe on the
// real-time thread.
func (d *Device) IsRunning() bool { return State(d.state.Load()) == StateRunning }

// Register moves Unregistered → Created when the host adds the device.
func (d *Device) Register() hal.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if State(d.state.Load()) != StateUnregistered {
		return hal.StatusInvalidState
	}
	d.state.Store(int32(StateCreated))
	d.logger.Info("device registered", "name", d.cfg.Name)
	return hal.StatusOK
}

// SetRunning moves between Running and Stopped. Redundant transitions are
// no-ops, per the contract: starting a running device or stopping a stopped
// one must not fail.
func (d *Device) SetRunning(running bool) hal.Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch State(d.state.Load()) {
	case StateCreated, StateStopped:
		if !running {
			return hal.StatusOK
		}
		d.state.Store(int32(StateRunning))
	case StateRunning:
		if running {
			return hal.StatusOK
		}
		d.state.Store(int32(StateStopped))
	default:
		return hal.StatusInvalidState
	}

	if d.onRunningChange != nil {
		d.onRunningChange(running)
	}
	d.logger.Debug("device running state changed", "running", running)
	return hal.StatusOK
}

// Destroy moves any live state to Destroyed. Idempotent.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if State(d.state.Load()) == StateDestroyed {
		return
	}
	if State(d.state.Load()) == StateRunning && d.onRunningChange != nil {
		d.onRunningChange(false)
	}
	d.state.Store(int32(StateDestroyed))
	d.logger.Info("device destroyed")
}

// NominalRate returns the current nominal sample rate in Hz.
func (d *Device) NominalRate() int { return int(d.nominalRate.Load()) }

// SetNominalRate validates the rate against the supported set and applies
// it. An unsupported rate is a configuration error and leaves the prior rate
// untouched.
func (d *Device) SetNominalRate(rate int) hal.Status {
	if !slices.Contains(d.cfg.SupportedRates, rate) {
		d.logger.Warn("rejected unsupported sample rate", "rate", rate)
		return hal.StatusUnsupported
	}

	d.mu.Lock()
	old := int(d.nominalRate.Load())
	d.nominalRate.Store(int64(rate))
	d.mu.Unlock()

	if old != rate && d.onRateChange != nil {
		d.onRateChange(old, rate)
	}
	return hal.StatusOK
}

// Channels returns the fixed channel count of both streams.
func (d *Device) Channels() int { return d.cfg.Channels }

// Streams returns the stream objects for a scope, input first.
func (d *Device) Streams(scope hal.Scope) []*Stream {
	switch scope {
	case hal.ScopeInput:
		return []*Stream{d.inStream}
	case hal.ScopeOutput:
		return []*Stream{d.outStream}
	default:
		return []*Stream{d.inStream, d.outStream}
	}
}

// InputVolume returns the input-scope volume control.
func (d *Device) InputVolume() *VolumeControl { return d.inVolume }

// OutputVolume returns the output-scope volume control.
func (d *Device) OutputVolume() *VolumeControl { return d.outVolume }

// InputMute returns the input-scope mute control.
func (d *Device) InputMute() *MuteControl { return d.inMute }

// OutputMute returns the output-scope mute control.
func (d *Device) OutputMute() *MuteControl { return d.outMute }
