package device

import (
	"io"
	"log/slog"
	"testing"

	"github.com/quiet-signal-labs/audiotap/internal/hal"
)

func testConfig() Config {
	return Config{
		Name:                "Tap",
		Manufacturer:        "Quiet Signal Labs",
		UID:                 "Tap_UID",
		ModelUID:            "Tap_ModelUID",
		Channels:            2,
		SampleRate:          48000,
		SupportedRates:      []int{44100, 48000, 96000},
		LatencyFrames:       0,
		SafetyOffsetFrames:  0,
		ZeroTimeStampPeriod: 512,
	}
}

func testDevice(t *testing.T) *Device {
	t.Helper()
	return New(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLifecycle(t *testing.T) {
	d := testDevice(t)

	if d.State() != StateUnregistered {
		t.Fatalf("initial state: got %v, want unregistered", d.State())
	}
	if st := d.SetRunning(true); st != hal.StatusInvalidState {
		t.Errorf("SetRunning before Register: got %v, want invalid state", st)
	}

	if st := d.Register(); st != hal.StatusOK {
		t.Fatalf("Register: got %v", st)
	}
	if d.State() != StateCreated {
		t.Fatalf("state after Register: got %v, want created", d.State())
	}
	if st := d.Register(); st != hal.StatusInvalidState {
		t.Errorf("second Register: got %v, want invalid state", st)
	}

	if st := d.SetRunning(true); st != hal.StatusOK {
		t.Fatalf("SetRunning(true): got %v", st)
	}
	if !d.IsRunning() {
		t.Error("IsRunning false after start")
	}
	if st := d.SetRunning(false); st != hal.StatusOK {
		t.Fatalf("SetRunning(false): got %v", st)
	}
	if d.State() != StateStopped {
		t.Errorf("state after stop: got %v, want stopped", d.State())
	}

	d.Destroy()
	if d.State() != StateDestroyed {
		t.Errorf("state after Destroy: got %v, want destroyed", d.State())
	}
	if st := d.SetRunning(true); st != hal.StatusInvalidState {
		t.Errorf("SetRunning after Destroy: got %v, want invalid state", st)
	}
	d.Destroy() // idempotent
}

func TestRedundantTransitionsAreNoOps(t *testing.T) {
	d := testDevice(t)
	d.Register()

	edges := 0
	d.OnRunningChange(func(bool) { edges++ })

	if st := d.SetRunning(false); st != hal.StatusOK {
		t.Errorf("stop while stopped: got %v, want ok", st)
	}
	d.SetRunning(true)
	if st := d.SetRunning(true); st != hal.StatusOK {
		t.Errorf("start while running: got %v, want ok", st)
	}
	d.SetRunning(false)

	if edges != 2 {
		t.Errorf("running edges fired: got %d, want 2", edges)
	}
}

func TestDestroyWhileRunningFiresStopEdge(t *testing.T) {
	d := testDevice(t)
	d.Register()

	var last *bool
	d.OnRunningChange(func(running bool) { last = &running })

	d.SetRunning(true)
	d.Destroy()

	if last == nil || *last {
		t.Error("Destroy of a running device did not fire running=false")
	}
}

func TestSetNominalRate(t *testing.T) {
	d := testDevice(t)
	d.Register()

	var gotOld, gotNew int
	d.OnRateChange(func(oldRate, newRate int) { gotOld, gotNew = oldRate, newRate })

	if st := d.SetNominalRate(22050); st != hal.StatusUnsupported {
		t.Errorf("unsupported rate: got %v, want unsupported", st)
	}
	if d.NominalRate() != 48000 {
		t.Errorf("rate after rejection: got %d, want 48000", d.NominalRate())
	}
	if gotNew != 0 {
		t.Error("rate callback fired for rejected rate")
	}

	if st := d.SetNominalRate(44100); st != hal.StatusOK {
		t.Fatalf("SetNominalRate(44100): got %v", st)
	}
	if d.NominalRate() != 44100 {
		t.Errorf("rate after change: got %d, want 44100", d.NominalRate())
	}
	if gotOld != 48000 || gotNew != 44100 {
		t.Errorf("rate callback: got (%d, %d), want (48000, 44100)", gotOld, gotNew)
	}

	// Setting the current rate again is valid but fires no callback.
	gotOld, gotNew = 0, 0
	if st := d.SetNominalRate(44100); st != hal.StatusOK {
		t.Errorf("redundant rate set: got %v", st)
	}
	if gotNew != 0 {
		t.Error("rate callback fired for unchanged rate")
	}
}

func TestStreams(t *testing.T) {
	d := testDevice(t)

	in := d.Streams(hal.ScopeInput)
	if len(in) != 1 || in[0].ID() != hal.ObjectStreamInput {
		t.Errorf("input streams: got %v", in)
	}
	out := d.Streams(hal.ScopeOutput)
	if len(out) != 1 || out[0].ID() != hal.ObjectStreamOutput {
		t.Errorf("output streams: got %v", out)
	}
	all := d.Streams(hal.ScopeGlobal)
	if len(all) != 2 {
		t.Errorf("global streams: got %d, want 2", len(all))
	}

	if in[0].Direction() != hal.DirectionInput {
		t.Errorf("input stream direction: got %d", in[0].Direction())
	}
	if in[0].TerminalType() != hal.TerminalTypeMicrophone {
		t.Errorf("input stream terminal: got %d", in[0].TerminalType())
	}
	if out[0].Direction() != hal.DirectionOutput {
		t.Errorf("output stream direction: got %d", out[0].Direction())
	}
}

func TestStreamFormatTracksNominalRate(t *testing.T) {
	d := testDevice(t)
	d.Register()
	s := d.Streams(hal.ScopeInput)[0]

	f := s.Format()
	if f.SampleRate != 48000 {
		t.Errorf("format rate: got %g, want 48000", f.SampleRate)
	}
	if f.ChannelsPerFrame != 2 || f.BytesPerFrame != 8 || f.BitsPerChannel != 32 {
		t.Errorf("format geometry: %+v", f)
	}
	wantFlags := hal.FormatFlagIsFloat | hal.FormatFlagIsPacked | hal.FormatFlagNativeEndian
	if f.FormatFlags != wantFlags {
		t.Errorf("format flags: got %#x, want %#x", f.FormatFlags, wantFlags)
	}

	d.SetNominalRate(96000)
	if got := s.Format().SampleRate; got != 96000 {
		t.Errorf("format rate after change: got %g, want 96000", got)
	}

	formats := s.AvailableFormats()
	if len(formats) != len(testConfig().SupportedRates) {
		t.Fatalf("available formats: got %d, want %d", len(formats), len(testConfig().SupportedRates))
	}
	for i, rate := range testConfig().SupportedRates {
		if formats[i].SampleRate != float64(rate) {
			t.Errorf("format %d rate: got %g, want %d", i, formats[i].SampleRate, rate)
		}
	}
}
