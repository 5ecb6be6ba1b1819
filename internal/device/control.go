package device

import (
	"math"
	"sync/atomic"

	"github.com/quiet-signal-labs/audiotap/internal/hal"
)

// Decibel range advertised by the volume controls. The floor doubles as the
// clamp that keeps the scalar→dB conversion away from log10(0).
const (
	DecibelFloor   float32 = -96
	DecibelCeiling float32 = 0
)

// ScalarToDecibels converts a [0,1] volume scalar to decibels, clamped at
// the floor.
func ScalarToDecibels(scalar float32) float32 {
	if scalar <= 0 {
		return DecibelFloor
	}
	db := 20 * float32(math.Log10(float64(scalar)))
	return max(db, DecibelFloor)
}

// DecibelsToScalar converts decibels back to a [0,1] scalar.
func DecibelsToScalar(db float32) float32 {
	if db <= DecibelFloor {
		return 0
	}
	s := float32(math.Pow(10, float64(db)/20))
	return min(s, 1)
}

// VolumeControl is a scalar level control read from the real-time thread on
// every cycle, so the value lives in an atomic word.
type VolumeControl struct {
	id    hal.ObjectID
	scope hal.Scope
	bits  atomic.Uint32
}

func newVolumeControl(id hal.ObjectID, scope hal.Scope) *VolumeControl {
	c := &VolumeControl{id: id, scope: scope}
	c.bits.Store(math.Float32bits(1))
	return c
}

// ID returns the control's object ID.
func (c *VolumeControl) ID() hal.ObjectID { return c.id }

// Scope returns the control's IO scope.
func (c *VolumeControl) Scope() hal.Scope { return c.scope }

// Scalar returns the current [0,1] value.
func (c *VolumeControl) Scalar() float32 {
	return math.Float32frombits(c.bits.Load())
}

// SetScalar stores a new value, clamped to [0,1].
func (c *VolumeControl) SetScalar(v float32) {
	c.bits.Store(math.Float32bits(min(max(v, 0), 1)))
}

// Decibels returns the current value in dB.
func (c *VolumeControl) Decibels() float32 {
	return ScalarToDecibels(c.Scalar())
}

// SetDecibels stores a value given in dB.
func (c *VolumeControl) SetDecibels(db float32) {
	c.SetScalar(DecibelsToScalar(db))
}

// MuteControl is a boolean control, also read per cycle.
type MuteControl struct {
	id    hal.ObjectID
	scope hal.Scope
	muted atomic.Bool
}

func newMuteControl(id hal.ObjectID, scope hal.Scope) *MuteControl {
	return &MuteControl{id: id, scope: scope}
}

// ID returns the control's object ID.
func (c *MuteControl) ID() hal.ObjectID { return c.id }

// Scope returns the control's IO scope.
func (c *MuteControl) Scope() hal.Scope { return c.scope }

// Muted reports the current value.
func (c *MuteControl) Muted() bool { return c.muted.Load() }

// SetMuted stores a new value.
func (c *MuteControl) SetMuted(m bool) { c.muted.Store(m) }
