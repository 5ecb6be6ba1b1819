package device

import "github.com/quiet-signal-labs/audiotap/internal/hal"

// Graph is the property-introspection surface over the device object graph.
// Every object exposes a fixed, enumerable property set; a size query always
// matches the byte count of the subsequent fetch exactly, because both run
// through the same encoder.
type Graph struct {
	device *Device
}

// NewGraph wraps a device for property dispatch.
func NewGraph(d *Device) *Graph {
	return &Graph{device: d}
}

// Device returns the wrapped device object.
func (g *Graph) Device() *Device { return g.device }

func (g *Graph) stream(object hal.ObjectID) *Stream {
	switch object {
	case hal.ObjectStreamInput:
		return g.device.inStream
	case hal.ObjectStreamOutput:
		return g.device.outStream
	default:
		return nil
	}
}

func (g *Graph) volume(object hal.ObjectID) *VolumeControl {
	switch object {
	case hal.ObjectVolumeInput:
		return g.device.inVolume
	case hal.ObjectVolumeOutput:
		return g.device.outVolume
	default:
		return nil
	}
}

func (g *Graph) mute(object hal.ObjectID) *MuteControl {
	switch object {
	case hal.ObjectMuteInput:
		return g.device.inMute
	case hal.ObjectMuteOutput:
		return g.device.outMute
	default:
		return nil
	}
}

// HasProperty reports whether an object advertises a property.
func (g *Graph) HasProperty(object hal.ObjectID, addr hal.PropertyAddress) bool {
	switch object {
	case hal.ObjectPlugIn:
		switch addr.Selector {
		case hal.SelectorBaseClass, hal.SelectorClass, hal.SelectorOwner,
			hal.SelectorManufacturer, hal.SelectorOwnedObjects,
			hal.SelectorDeviceList, hal.SelectorTranslateUIDToDevice,
			hal.SelectorResourceBundle:
			return true
		}

	case hal.ObjectDevice:
		switch addr.Selector {
		case hal.SelectorBaseClass, hal.SelectorClass, hal.SelectorOwner,
			hal.SelectorName, hal.SelectorManufacturer,
			hal.SelectorDeviceUID, hal.SelectorModelUID,
			hal.SelectorTransportType, hal.SelectorClockDomain,
			hal.SelectorIsAlive, hal.SelectorIsRunning, hal.SelectorIsHidden,
			hal.SelectorCanBeDefault, hal.SelectorCanBeDefaultSystem,
			hal.SelectorLatency, hal.SelectorSafetyOffset,
			hal.SelectorZeroTimeStampPeriod, hal.SelectorStreams,
			hal.SelectorControlList, hal.SelectorNominalSampleRate,
			hal.SelectorAvailableSampleRates:
			return true
		}

	case hal.ObjectStreamInput, hal.ObjectStreamOutput:
		switch addr.Selector {
		case hal.SelectorBaseClass, hal.SelectorClass, hal.SelectorOwner,
			hal.SelectorStreamIsActive, hal.SelectorStreamDirection,
			hal.SelectorTerminalType, hal.SelectorStartingChannel,
			hal.SelectorStreamLatency, hal.SelectorVirtualFormat,
			hal.SelectorPhysicalFormat, hal.SelectorAvailableFormats:
			return true
		}

	case hal.ObjectVolumeInput, hal.ObjectVolumeOutput:
		switch addr.Selector {
		case hal.SelectorBaseClass, hal.SelectorClass, hal.SelectorOwner,
			hal.SelectorControlScope, hal.SelectorControlElement,
			hal.SelectorScalarValue, hal.SelectorDecibelValue,
			hal.SelectorDecibelRange, hal.SelectorConvertScalarToDecibels,
			hal.SelectorConvertDecibelsToScalar:
			return true
		}

	case hal.ObjectMuteInput, hal.ObjectMuteOutput:
		switch addr.Selector {
		case hal.SelectorBaseClass, hal.SelectorClass, hal.SelectorOwner,
			hal.SelectorControlScope, hal.SelectorControlElement,
			hal.SelectorMuteValue:
			return true
		}
	}
	return false
}

// IsSettable reports whether a property accepts SetProperty.
func (g *Graph) IsSettable(object hal.ObjectID, addr hal.PropertyAddress) (bool, hal.Status) {
	if !g.HasProperty(object, addr) {
		if object > hal.ObjectMuteOutput || object == hal.ObjectUnknown {
			return false, hal.StatusBadObject
		}
		return false, hal.StatusUnknownProperty
	}

	switch object {
	case hal.ObjectDevice:
		switch addr.Selector {
		case hal.SelectorNominalSampleRate, hal.SelectorIsRunning:
			return true, hal.StatusOK
		}
	case hal.ObjectStreamInput, hal.ObjectStreamOutput:
		if addr.Selector == hal.SelectorStreamIsActive {
			return true, hal.StatusOK
		}
	case hal.ObjectVolumeInput, hal.ObjectVolumeOutput:
		switch addr.Selector {
		case hal.SelectorScalarValue, hal.SelectorDecibelValue:
			return true, hal.StatusOK
		}
	case hal.ObjectMuteInput, hal.ObjectMuteOutput:
		if addr.Selector == hal.SelectorMuteValue {
			return true, hal.StatusOK
		}
	}
	return false, hal.StatusOK
}

// encode renders the current value of a property. Both PropertySize and
// Property go through here, which is what pins size to fetch.
func (g *Graph) encode(object hal.ObjectID, addr hal.PropertyAddress) ([]byte, hal.Status) {
	d := g.device

	switch object {
	case hal.ObjectPlugIn:
		switch addr.Selector {
		case hal.SelectorBaseClass:
			return appendU32(nil, uint32(hal.ClassObject)), hal.StatusOK
		case hal.SelectorClass:
			return appendU32(nil, uint32(hal.ClassPlugIn)), hal.StatusOK
		case hal.SelectorOwner:
			return appendObjectIDs(nil, hal.ObjectUnknown), hal.StatusOK
		case hal.SelectorManufacturer:
			return []byte(d.cfg.Manufacturer), hal.StatusOK
		case hal.SelectorOwnedObjects, hal.SelectorDeviceList:
			return appendObjectIDs(nil, hal.ObjectDevice), hal.StatusOK
		case hal.SelectorTranslateUIDToDevice:
			return appendObjectIDs(nil, hal.ObjectDevice), hal.StatusOK
		case hal.SelectorResourceBundle:
			return []byte{}, hal.StatusOK
		}
		return nil, hal.StatusUnknownProperty

	case hal.ObjectDevice:
		switch addr.Selector {
		case hal.SelectorBaseClass:
			return appendU32(nil, uint32(hal.ClassObject)), hal.StatusOK
		case hal.SelectorClass:
			return appendU32(nil, uint32(hal.ClassDevice)), hal.StatusOK
		case hal.SelectorOwner:
			return appendObjectIDs(nil, hal.ObjectPlugIn), hal.StatusOK
		case hal.SelectorName:
			return []byte(d.cfg.Name), hal.StatusOK
		case hal.SelectorManufacturer:
			return []byte(d.cfg.Manufacturer), hal.StatusOK
		case hal.SelectorDeviceUID:
			return []byte(d.cfg.UID), hal.StatusOK
		case hal.SelectorModelUID:
			return []byte(d.cfg.ModelUID), hal.StatusOK
		case hal.SelectorTransportType:
			return appendU32(nil, hal.TransportTypeVirtual), hal.StatusOK
		case hal.SelectorClockDomain:
			return appendU32(nil, 0), hal.StatusOK
		case hal.SelectorIsAlive:
			return appendBool32(nil, d.State() != StateDestroyed), hal.StatusOK
		case hal.SelectorIsRunning:
			return appendBool32(nil, d.IsRunning()), hal.StatusOK
		case hal.SelectorIsHidden:
			return appendBool32(nil, false), hal.StatusOK
		case hal.SelectorCanBeDefault, hal.SelectorCanBeDefaultSystem:
			return appendBool32(nil, true), hal.StatusOK
		case hal.SelectorLatency:
			return appendU32(nil, d.cfg.LatencyFrames), hal.StatusOK
		case hal.SelectorSafetyOffset:
			return appendU32(nil, d.cfg.SafetyOffsetFrames), hal.StatusOK
		case hal.SelectorZeroTimeStampPeriod:
			return appendU32(nil, d.cfg.ZeroTimeStampPeriod), hal.StatusOK
		case hal.SelectorStreams:
			var b []byte
			for _, s := range d.Streams(addr.Scope) {
				b = appendObjectIDs(b, s.ID())
			}
			return b, hal.StatusOK
		case hal.SelectorControlList:
			return appendObjectIDs(nil,
				hal.ObjectVolumeInput, hal.ObjectVolumeOutput,
				hal.ObjectMuteInput, hal.ObjectMuteOutput), hal.StatusOK
		case hal.SelectorNominalSampleRate:
			return appendF64(nil, float64(d.NominalRate())), hal.StatusOK
		case hal.SelectorAvailableSampleRates:
			var b []byte
			for _, rate := range d.cfg.SupportedRates {
				// Discrete rates published as degenerate ranges.
				b = appendF64(b, float64(rate))
				b = appendF64(b, float64(rate))
			}
			return b, hal.StatusOK
		}
		return nil, hal.StatusUnknownProperty

	case hal.ObjectStreamInput, hal.ObjectStreamOutput:
		s := g.stream(object)
		switch addr.Selector {
		case hal.SelectorBaseClass:
			return appendU32(nil, uint32(hal.ClassObject)), hal.StatusOK
		case hal.SelectorClass:
			return appendU32(nil, uint32(hal.ClassStream)), hal.StatusOK
		case hal.SelectorOwner:
			return appendObjectIDs(nil, hal.ObjectDevice), hal.StatusOK
		case hal.SelectorStreamIsActive:
			return appendBool32(nil, s.Active()), hal.StatusOK
		case hal.SelectorStreamDirection:
			return appendU32(nil, s.Direction()), hal.StatusOK
		case hal.SelectorTerminalType:
			return appendU32(nil, s.TerminalType()), hal.StatusOK
		case hal.SelectorStartingChannel:
			return appendU32(nil, s.StartingChannel()), hal.StatusOK
		case hal.SelectorStreamLatency:
			return appendU32(nil, s.Latency()), hal.StatusOK
		case hal.SelectorVirtualFormat, hal.SelectorPhysicalFormat:
			return appendFormat(nil, s.Format()), hal.StatusOK
		case hal.SelectorAvailableFormats:
			var b []byte
			for _, f := range s.AvailableFormats() {
				b = appendFormat(b, f)
			}
			return b, hal.StatusOK
		}
		return nil, hal.StatusUnknownProperty

	case hal.ObjectVolumeInput, hal.ObjectVolumeOutput:
		c := g.volume(object)
		switch addr.Selector {
		case hal.SelectorBaseClass:
			return appendU32(nil, uint32(hal.ClassControl)), hal.StatusOK
		case hal.SelectorClass:
			return appendU32(nil, uint32(hal.ClassVolumeControl)), hal.StatusOK
		case hal.SelectorOwner:
			return appendObjectIDs(nil, hal.ObjectDevice), hal.StatusOK
		case hal.SelectorControlScope:
			return appendU32(nil, uint32(c.Scope())), hal.StatusOK
		case hal.SelectorControlElement:
			return appendU32(nil, uint32(hal.ElementMain)), hal.StatusOK
		case hal.SelectorScalarValue:
			return appendF32(nil, c.Scalar()), hal.StatusOK
		case hal.SelectorDecibelValue:
			return appendF32(nil, c.Decibels()), hal.StatusOK
		case hal.SelectorDecibelRange:
			b := appendF64(nil, float64(DecibelFloor))
			return appendF64(b, float64(DecibelCeiling)), hal.StatusOK
		case hal.SelectorConvertScalarToDecibels, hal.SelectorConvertDecibelsToScalar:
			// Value depends on caller input; sized here, converted in
			// Property.
			return appendF32(nil, 0), hal.StatusOK
		}
		return nil, hal.StatusUnknownProperty

	case hal.ObjectMuteInput, hal.ObjectMuteOutput:
		c := g.mute(object)
		switch addr.Selector {
		case hal.SelectorBaseClass:
			return appendU32(nil, uint32(hal.ClassControl)), hal.StatusOK
		case hal.SelectorClass:
			return appendU32(nil, uint32(hal.ClassMuteControl)), hal.StatusOK
		case hal.SelectorOwner:
			return appendObjectIDs(nil, hal.ObjectDevice), hal.StatusOK
		case hal.SelectorControlScope:
			return appendU32(nil, uint32(c.Scope())), hal.StatusOK
		case hal.SelectorControlElement:
			return appendU32(nil, uint32(hal.ElementMain)), hal.StatusOK
		case hal.SelectorMuteValue:
			return appendBool32(nil, c.Muted()), hal.StatusOK
		}
		return nil, hal.StatusUnknownProperty
	}

	return nil, hal.StatusBadObject
}

// PropertySize returns the exact byte count a Property call will produce.
func (g *Graph) PropertySize(object hal.ObjectID, addr hal.PropertyAddress) (int, hal.Status) {
	b, st := g.encode(object, addr)
	if st != hal.StatusOK {
		return 0, st
	}
	return len(b), hal.StatusOK
}

// Property writes the current value into out and returns the byte count.
// out must be at least PropertySize bytes.
//
// The two conversion properties are in-place transforms: the caller provides
// the input value in out and receives the converted value back, as in the
// native contract.
func (g *Graph) Property(object hal.ObjectID, addr hal.PropertyAddress, out []byte) (int, hal.Status) {
	switch addr.Selector {
	case hal.SelectorConvertScalarToDecibels:
		if g.volume(object) == nil {
			return 0, hal.StatusBadObject
		}
		v, ok := decodeF32(out)
		if !ok {
			return 0, hal.StatusBadPropertySize
		}
		appendF32(out[:0], ScalarToDecibels(v))
		return 4, hal.StatusOK
	case hal.SelectorConvertDecibelsToScalar:
		if g.volume(object) == nil {
			return 0, hal.StatusBadObject
		}
		v, ok := decodeF32(out)
		if !ok {
			return 0, hal.StatusBadPropertySize
		}
		appendF32(out[:0], DecibelsToScalar(v))
		return 4, hal.StatusOK
	}

	b, st := g.encode(object, addr)
	if st != hal.StatusOK {
		return 0, st
	}
	if len(out) < len(b) {
		return 0, hal.StatusBadPropertySize
	}
	copy(out, b)
	return len(b), hal.StatusOK
}

// SetProperty applies a new value to a settable property. Rejections leave
// the prior state untouched.
func (g *Graph) SetProperty(object hal.ObjectID, addr hal.PropertyAddress, data []byte) hal.Status {
	settable, st := g.IsSettable(object, addr)
	if st != hal.StatusOK {
		return st
	}
	if !settable {
		return hal.StatusUnknownProperty
	}

	switch object {
	case hal.ObjectDevice:
		switch addr.Selector {
		case hal.SelectorNominalSampleRate:
			rate, ok := decodeF64(data)
			if !ok {
				return hal.StatusBadPropertySize
			}
			return g.device.SetNominalRate(int(rate))
		case hal.SelectorIsRunning:
			v, ok := decodeU32(data)
			if !ok {
				return hal.StatusBadPropertySize
			}
			return g.device.SetRunning(v != 0)
		}

	case hal.ObjectStreamInput, hal.ObjectStreamOutput:
		v, ok := decodeU32(data)
		if !ok {
			return hal.StatusBadPropertySize
		}
		g.stream(object).SetActive(v != 0)
		return hal.StatusOK

	case hal.ObjectVolumeInput, hal.ObjectVolumeOutput:
		v, ok := decodeF32(data)
		if !ok {
			return hal.StatusBadPropertySize
		}
		c := g.volume(object)
		if addr.Selector == hal.SelectorScalarValue {
			c.SetScalar(v)
		} else {
			c.SetDecibels(v)
		}
		return hal.StatusOK

	case hal.ObjectMuteInput, hal.ObjectMuteOutput:
		v, ok := decodeU32(data)
		if !ok {
			return hal.StatusBadPropertySize
		}
		g.mute(object).SetMuted(v != 0)
		return hal.StatusOK
	}

	return hal.StatusUnknownProperty
}
