// Package downmix folds multi-channel interleaved audio down to mono ahead
// of the ring buffer. Everything here runs on the real-time thread: pure
// copies into caller-provided buffers, no allocation, no error returns.
package downmix

import "sync/atomic"

// shortInputs counts calls that arrived with a dangling half frame. A
// malformed length is a contract violation by the caller, but the real-time
// path must keep going, so the input is truncated and the event counted.
var shortInputs atomic.Uint64

// StereoToMono averages each L/R pair of src into one sample of dst and
// returns the number of mono samples produced. An odd trailing sample is
// dropped. dst must hold len(src)/2 samples.
func StereoToMono(dst, src []float32) int {
	if len(src)%2 != 0 {
		src = src[:len(src)-1]
		shortInputs.Add(1)
	}
	n := len(src) / 2
	for i := 0; i < n; i++ {
		dst[i] = (src[2*i] + src[2*i+1]) / 2
	}
	return n
}

// Mono copies src to dst unchanged and returns the sample count. Present so
// the IO path treats one- and two-channel sources uniformly.
func Mono(dst, src []float32) int {
	return copy(dst, src)
}

// Frames returns the whole frame count a sample count holds at the given
// channel width.
func Frames(channels, samples int) int {
	if channels <= 0 {
		return 0
	}
	return samples / channels
}

// ShortInputs returns how many malformed-length inputs have been truncated.
func ShortInputs() uint64 {
	return shortInputs.Load()
}
