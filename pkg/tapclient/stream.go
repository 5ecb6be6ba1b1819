package tapclient

import (
	"context"
	"time"
)

// DefaultPollInterval paces Stream's drain loop. The ring holds seconds of
// audio, so tens of milliseconds of polling slack cost nothing.
const DefaultPollInterval = 50 * time.Millisecond

// Stream drains the region on a ticker and delivers interleaved sample
// chunks on the returned channel. The channel closes when the context is
// canceled or the handle stops being readable. Each delivered slice is
// owned by the receiver.
func (h *Handle) Stream(ctx context.Context, interval time.Duration) <-chan []float32 {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	out := make(chan []float32)

	go func() {
		defer close(out)

		_, channels := h.Format()
		buf := make([]float32, 8192*channels)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				n, err := h.ReadAvailableFrames(buf)
				if err != nil {
					h.logger.Debug("stream drain stopped", "err", err)
					return
				}
				if n == 0 {
					continue
				}
				chunk := make([]float32, n)
				copy(chunk, buf[:n])

				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
