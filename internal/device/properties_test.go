package device

import (
	"math"
	"testing"

	"github.com/quiet-signal-labs/audiotap/internal/hal"
)

func testGraph(t *testing.T) *Graph {
	t.Helper()
	d := testDevice(t)
	d.Register()
	return NewGraph(d)
}

var allObjects = []hal.ObjectID{
	hal.ObjectPlugIn, hal.ObjectDevice,
	hal.ObjectStreamInput, hal.ObjectStreamOutput,
	hal.ObjectVolumeInput, hal.ObjectVolumeOutput,
	hal.ObjectMuteInput, hal.ObjectMuteOutput,
}

var allSelectors = []hal.Selector{
	hal.SelectorBaseClass, hal.SelectorClass, hal.SelectorOwner,
	hal.SelectorName, hal.SelectorManufacturer, hal.SelectorOwnedObjects,
	hal.SelectorDeviceList, hal.SelectorTranslateUIDToDevice, hal.SelectorResourceBundle,
	hal.SelectorDeviceUID, hal.SelectorModelUID, hal.SelectorTransportType,
	hal.SelectorClockDomain, hal.SelectorIsAlive, hal.SelectorIsRunning,
	hal.SelectorIsHidden, hal.SelectorCanBeDefault, hal.SelectorCanBeDefaultSystem,
	hal.SelectorLatency, hal.SelectorSafetyOffset, hal.SelectorZeroTimeStampPeriod,
	hal.SelectorStreams, hal.SelectorControlList, hal.SelectorNominalSampleRate,
	hal.SelectorAvailableSampleRates, hal.SelectorStreamIsActive,
	hal.SelectorStreamDirection, hal.SelectorTerminalType, hal.SelectorStartingChannel,
	hal.SelectorStreamLatency, hal.SelectorVirtualFormat, hal.SelectorPhysicalFormat,
	hal.SelectorAvailableFormats, hal.SelectorControlScope, hal.SelectorControlElement,
	hal.SelectorScalarValue, hal.SelectorDecibelValue, hal.SelectorDecibelRange,
	hal.SelectorConvertScalarToDecibels, hal.SelectorConvertDecibelsToScalar,
	hal.SelectorMuteValue,
}

// Every property an object advertises must report a size that exactly matches
// the bytes a fetch produces.
func TestPropertySizeMatchesFetch(t *testing.T) {
	g := testGraph(t)

	checked := 0
	for _, object := range allObjects {
		for _, sel := range allSelectors {
			addr := hal.PropertyAddress{Selector: sel}
			if !g.HasProperty(object, addr) {
				continue
			}

			size, st := g.PropertySize(object, addr)
			if st != hal.StatusOK {
				t.Errorf("object %d selector %d: size query failed: %v", object, sel, st)
				continue
			}

			out := make([]byte, size)
			n, st := g.Property(object, addr, out)
			if st != hal.StatusOK {
				t.Errorf("object %d selector %d: fetch failed: %v", object, sel, st)
				continue
			}
			if n != size {
				t.Errorf("object %d selector %d: size %d but fetch wrote %d", object, sel, size, n)
			}
			checked++
		}
	}
	if checked == 0 {
		t.Fatal("no advertised properties found")
	}
}

func TestPropertyRejectsShortBuffer(t *testing.T) {
	g := testGraph(t)
	addr := hal.PropertyAddress{Selector: hal.SelectorName}

	size, st := g.PropertySize(hal.ObjectDevice, addr)
	if st != hal.StatusOK || size == 0 {
		t.Fatalf("size query: %d, %v", size, st)
	}
	if _, st := g.Property(hal.ObjectDevice, addr, make([]byte, size-1)); st != hal.StatusBadPropertySize {
		t.Errorf("short buffer: got %v, want bad property size", st)
	}
}

func TestHasPropertyUnknown(t *testing.T) {
	g := testGraph(t)

	if g.HasProperty(hal.ObjectDevice, hal.PropertyAddress{Selector: hal.SelectorMuteValue}) {
		t.Error("device advertises a control selector")
	}
	if g.HasProperty(hal.ObjectMuteInput, hal.PropertyAddress{Selector: hal.SelectorScalarValue}) {
		t.Error("mute control advertises a volume selector")
	}
	if g.HasProperty(hal.ObjectID(99), hal.PropertyAddress{Selector: hal.SelectorClass}) {
		t.Error("unknown object advertises properties")
	}
}

func TestIsSettableMatrix(t *testing.T) {
	g := testGraph(t)

	cases := []struct {
		object   hal.ObjectID
		selector hal.Selector
		want     bool
	}{
		{hal.ObjectDevice, hal.SelectorNominalSampleRate, true},
		{hal.ObjectDevice, hal.SelectorIsRunning, true},
		{hal.ObjectDevice, hal.SelectorDeviceUID, false},
		{hal.ObjectDevice, hal.SelectorIsAlive, false},
		{hal.ObjectStreamInput, hal.SelectorStreamIsActive, true},
		{hal.ObjectStreamInput, hal.SelectorStreamDirection, false},
		{hal.ObjectStreamOutput, hal.SelectorVirtualFormat, false},
		{hal.ObjectVolumeInput, hal.SelectorScalarValue, true},
		{hal.ObjectVolumeOutput, hal.SelectorDecibelValue, true},
		{hal.ObjectVolumeOutput, hal.SelectorDecibelRange, false},
		{hal.ObjectMuteInput, hal.SelectorMuteValue, true},
		{hal.ObjectMuteOutput, hal.SelectorControlScope, false},
		{hal.ObjectPlugIn, hal.SelectorManufacturer, false},
	}

	for _, tc := range cases {
		settable, st := g.IsSettable(tc.object, hal.PropertyAddress{Selector: tc.selector})
		if st != hal.StatusOK {
			t.Errorf("object %d selector %d: got status %v", tc.object, tc.selector, st)
			continue
		}
		if settable != tc.want {
			t.Errorf("object %d selector %d: settable %v, want %v", tc.object, tc.selector, settable, tc.want)
		}
	}
}

func TestIsSettableErrors(t *testing.T) {
	g := testGraph(t)

	if _, st := g.IsSettable(hal.ObjectID(99), hal.PropertyAddress{Selector: hal.SelectorClass}); st != hal.StatusBadObject {
		t.Errorf("unknown object: got %v, want bad object", st)
	}
	if _, st := g.IsSettable(hal.ObjectDevice, hal.PropertyAddress{Selector: hal.SelectorMuteValue}); st != hal.StatusUnknownProperty {
		t.Errorf("unknown property: got %v, want unknown property", st)
	}
}

func TestSetPropertyRejectsReadOnly(t *testing.T) {
	g := testGraph(t)

	st := g.SetProperty(hal.ObjectDevice, hal.PropertyAddress{Selector: hal.SelectorDeviceUID}, []byte("other"))
	if st != hal.StatusUnknownProperty {
		t.Errorf("set of read-only property: got %v, want unknown property", st)
	}
}

func TestSetNominalSampleRateProperty(t *testing.T) {
	g := testGraph(t)
	addr := hal.PropertyAddress{Selector: hal.SelectorNominalSampleRate}

	if st := g.SetProperty(hal.ObjectDevice, addr, appendF64(nil, 44100)); st != hal.StatusOK {
		t.Fatalf("set supported rate: got %v", st)
	}
	if g.Device().NominalRate() != 44100 {
		t.Errorf("rate: got %d, want 44100", g.Device().NominalRate())
	}

	if st := g.SetProperty(hal.ObjectDevice, addr, appendF64(nil, 12345)); st != hal.StatusUnsupported {
		t.Errorf("set unsupported rate: got %v, want unsupported", st)
	}
	if g.Device().NominalRate() != 44100 {
		t.Errorf("rate after rejection: got %d, want 44100", g.Device().NominalRate())
	}

	if st := g.SetProperty(hal.ObjectDevice, addr, []byte{1, 2}); st != hal.StatusBadPropertySize {
		t.Errorf("truncated payload: got %v, want bad property size", st)
	}
}

func TestSetIsRunningProperty(t *testing.T) {
	g := testGraph(t)
	addr := hal.PropertyAddress{Selector: hal.SelectorIsRunning}

	if st := g.SetProperty(hal.ObjectDevice, addr, appendU32(nil, 1)); st != hal.StatusOK {
		t.Fatalf("start via property: got %v", st)
	}
	if !g.Device().IsRunning() {
		t.Error("device not running after property set")
	}

	out := make([]byte, 4)
	g.Property(hal.ObjectDevice, addr, out)
	if v, _ := decodeU32(out); v != 1 {
		t.Errorf("IsRunning fetch: got %d, want 1", v)
	}

	if st := g.SetProperty(hal.ObjectDevice, addr, appendU32(nil, 0)); st != hal.StatusOK {
		t.Fatalf("stop via property: got %v", st)
	}
	if g.Device().IsRunning() {
		t.Error("device still running after property set")
	}
}

func TestVolumePropertyRoundTrip(t *testing.T) {
	g := testGraph(t)
	scalar := hal.PropertyAddress{Selector: hal.SelectorScalarValue}
	decibel := hal.PropertyAddress{Selector: hal.SelectorDecibelValue}

	if st := g.SetProperty(hal.ObjectVolumeOutput, scalar, appendF32(nil, 0.5)); st != hal.StatusOK {
		t.Fatalf("set scalar: got %v", st)
	}
	out := make([]byte, 4)
	g.Property(hal.ObjectVolumeOutput, scalar, out)
	if v, _ := decodeF32(out); v != 0.5 {
		t.Errorf("scalar fetch: got %g, want 0.5", v)
	}

	g.Property(hal.ObjectVolumeOutput, decibel, out)
	v, _ := decodeF32(out)
	if math.Abs(float64(v)+6.0206) > 1e-3 {
		t.Errorf("decibel fetch: got %g, want -6.0206", v)
	}

	if st := g.SetProperty(hal.ObjectVolumeOutput, decibel, appendF32(nil, -20)); st != hal.StatusOK {
		t.Fatalf("set decibels: got %v", st)
	}
	g.Property(hal.ObjectVolumeOutput, scalar, out)
	v, _ = decodeF32(out)
	if math.Abs(float64(v)-0.1) > 1e-6 {
		t.Errorf("scalar after dB set: got %g, want 0.1", v)
	}
}

func TestConversionPropertiesTransformInPlace(t *testing.T) {
	g := testGraph(t)

	buf := appendF32(nil, 0.1)
	n, st := g.Property(hal.ObjectVolumeInput, hal.PropertyAddress{Selector: hal.SelectorConvertScalarToDecibels}, buf)
	if st != hal.StatusOK || n != 4 {
		t.Fatalf("scalar to decibels: n=%d st=%v", n, st)
	}
	if v, _ := decodeF32(buf); math.Abs(float64(v)+20) > 1e-3 {
		t.Errorf("converted value: got %g, want -20", v)
	}

	buf = appendF32(buf[:0], -20)
	n, st = g.Property(hal.ObjectVolumeInput, hal.PropertyAddress{Selector: hal.SelectorConvertDecibelsToScalar}, buf)
	if st != hal.StatusOK || n != 4 {
		t.Fatalf("decibels to scalar: n=%d st=%v", n, st)
	}
	if v, _ := decodeF32(buf); math.Abs(float64(v)-0.1) > 1e-6 {
		t.Errorf("converted value: got %g, want 0.1", v)
	}

	// The conversion must not touch the stored control value.
	out := make([]byte, 4)
	g.Property(hal.ObjectVolumeInput, hal.PropertyAddress{Selector: hal.SelectorScalarValue}, out)
	if v, _ := decodeF32(out); v != 1 {
		t.Errorf("stored scalar after conversions: got %g, want 1", v)
	}
}

func TestMutePropertyRoundTrip(t *testing.T) {
	g := testGraph(t)
	addr := hal.PropertyAddress{Selector: hal.SelectorMuteValue}

	if st := g.SetProperty(hal.ObjectMuteOutput, addr, appendU32(nil, 1)); st != hal.StatusOK {
		t.Fatalf("set mute: got %v", st)
	}
	if !g.Device().OutputMute().Muted() {
		t.Error("output not muted after property set")
	}

	out := make([]byte, 4)
	g.Property(hal.ObjectMuteOutput, addr, out)
	if v, _ := decodeU32(out); v != 1 {
		t.Errorf("mute fetch: got %d, want 1", v)
	}

	// Input mute untouched.
	if g.Device().InputMute().Muted() {
		t.Error("input mute changed by output mute set")
	}
}

func TestStreamListsByScope(t *testing.T) {
	g := testGraph(t)

	out := make([]byte, 16)
	n, st := g.Property(hal.ObjectDevice, hal.PropertyAddress{Selector: hal.SelectorStreams, Scope: hal.ScopeInput}, out)
	if st != hal.StatusOK || n != 4 {
		t.Fatalf("input streams: n=%d st=%v", n, st)
	}
	if id, _ := decodeU32(out); hal.ObjectID(id) != hal.ObjectStreamInput {
		t.Errorf("input stream id: got %d", id)
	}

	n, st = g.Property(hal.ObjectDevice, hal.PropertyAddress{Selector: hal.SelectorStreams, Scope: hal.ScopeGlobal}, out)
	if st != hal.StatusOK || n != 8 {
		t.Errorf("global streams: n=%d st=%v, want 8 bytes", n, st)
	}
}

func TestControlList(t *testing.T) {
	g := testGraph(t)

	out := make([]byte, 16)
	n, st := g.Property(hal.ObjectDevice, hal.PropertyAddress{Selector: hal.SelectorControlList}, out)
	if st != hal.StatusOK || n != 16 {
		t.Fatalf("control list: n=%d st=%v, want 16 bytes", n, st)
	}
	want := []hal.ObjectID{hal.ObjectVolumeInput, hal.ObjectVolumeOutput, hal.ObjectMuteInput, hal.ObjectMuteOutput}
	for i, id := range want {
		if got, _ := decodeU32(out[i*4:]); hal.ObjectID(got) != id {
			t.Errorf("control %d: got %d, want %d", i, got, id)
		}
	}
}

func TestAvailableSampleRatesEncoding(t *testing.T) {
	g := testGraph(t)
	rates := testConfig().SupportedRates

	size, st := g.PropertySize(hal.ObjectDevice, hal.PropertyAddress{Selector: hal.SelectorAvailableSampleRates})
	if st != hal.StatusOK {
		t.Fatalf("size query: %v", st)
	}
	if size != len(rates)*16 {
		t.Fatalf("size: got %d, want %d", size, len(rates)*16)
	}

	out := make([]byte, size)
	g.Property(hal.ObjectDevice, hal.PropertyAddress{Selector: hal.SelectorAvailableSampleRates}, out)
	for i, rate := range rates {
		lo, _ := decodeF64(out[i*16:])
		hi, _ := decodeF64(out[i*16+8:])
		if lo != float64(rate) || hi != float64(rate) {
			t.Errorf("rate %d: got [%g, %g], want [%d, %d]", i, lo, hi, rate, rate)
		}
	}
}
