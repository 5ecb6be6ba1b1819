package downmix

import (
	"math"
	"testing"
)

func TestStereoToMono(t *testing.T) {
	cases := []struct {
		name string
		src  []float32
		want []float32
	}{
		{"silence", []float32{0, 0, 0, 0}, []float32{0, 0}},
		{"equal channels", []float32{0.5, 0.5, -1, -1}, []float32{0.5, -1}},
		{"opposite channels cancel", []float32{1, -1, 0.25, -0.25}, []float32{0, 0}},
		{"average", []float32{0.2, 0.4, -0.6, 0.2}, []float32{0.3, -0.2}},
		{"empty", []float32{}, []float32{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dst := make([]float32, len(tc.src)/2)
			n := StereoToMono(dst, tc.src)
			if n != len(tc.want) {
				t.Fatalf("samples produced: got %d, want %d", n, len(tc.want))
			}
			for i := range tc.want {
				if diff := math.Abs(float64(dst[i] - tc.want[i])); diff > 1e-7 {
					t.Errorf("sample %d: got %g, want %g", i, dst[i], tc.want[i])
				}
			}
		})
	}
}

func TestStereoToMonoOddInputTruncates(t *testing.T) {
	before := ShortInputs()

	dst := make([]float32, 2)
	n := StereoToMono(dst, []float32{1, 1, 0.5, 0.5, 0.25})
	if n != 2 {
		t.Fatalf("samples produced: got %d, want 2", n)
	}
	if dst[0] != 1 || dst[1] != 0.5 {
		t.Errorf("got [%g %g], want [1 0.5]", dst[0], dst[1])
	}
	if ShortInputs() != before+1 {
		t.Errorf("ShortInputs: got %d, want %d", ShortInputs(), before+1)
	}
}

func TestStereoToMonoStaysInRange(t *testing.T) {
	// Full-scale input cannot clip after averaging.
	dst := make([]float32, 1)
	StereoToMono(dst, []float32{1, 1})
	if dst[0] > 1 {
		t.Errorf("full-scale average clipped: %g", dst[0])
	}
	StereoToMono(dst, []float32{-1, -1})
	if dst[0] < -1 {
		t.Errorf("full-scale average clipped: %g", dst[0])
	}
}

func TestFrames(t *testing.T) {
	cases := []struct {
		channels int
		samples  int
		want     int
	}{
		{1, 7, 7},
		{2, 8, 4},
		{2, 9, 4},
		{0, 8, 0},
		{-1, 8, 0},
	}
	for _, tc := range cases {
		if got := Frames(tc.channels, tc.samples); got != tc.want {
			t.Errorf("Frames(%d, %d): got %d, want %d", tc.channels, tc.samples, got, tc.want)
		}
	}
}

func TestMonoCopies(t *testing.T) {
	src := []float32{0.1, -0.2, 0.3}
	dst := make([]float32, 3)
	if n := Mono(dst, src); n != 3 {
		t.Fatalf("samples copied: got %d, want 3", n)
	}
	for i := range src {
		if dst[i] != src[i] {
			t.Errorf("sample %d: got %g, want %g", i, dst[i], src[i])
		}
	}
}
