// tapcapture attaches to the driver's shared capture region and records the
// audio it drains to a WAV file, optionally resampled to a target rate for
// downstream speech tooling.
package main

import (
	"context"
	"flag"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/oov/audio/resampler"
	"github.com/spf13/viper"

	"github.com/quiet-signal-labs/audiotap/cmd/tapcapture/config"
	"github.com/quiet-signal-labs/audiotap/internal/utils"
	"github.com/quiet-signal-labs/audiotap/pkg/tapclient"
)

const resampleQuality = 10

func main() {
	configFilePath := flag.String("configFilePath", "config.yaml", "Set the file path to the config file.")
	outputPath := flag.String("output", "", "Override the output WAV path from the config.")
	flag.Parse()

	config.LoadConfig(*configFilePath)
	logFilePointer, err := utils.ConfigureDefaultLogger(
		viper.GetString("loglevel"),
		viper.GetString("logfile"),
		slog.HandlerOptions{},
	)
	if err != nil {
		slog.Error("error while configuring default logger", "err", err)
		panic(err)
	}
	if logFilePointer != nil {
		defer logFilePointer.Close()
	}

	output := viper.GetString("output")
	if *outputPath != "" {
		output = *outputPath
	}

	// --------------------------------------------------------------------------------

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	waitCtx, cancelWait := context.WithTimeout(ctx, viper.GetDuration("waittimeout"))
	defer cancelWait()
	slog.Info("waiting for capture region", "region", tapclient.RegionName)
	if err := tapclient.WaitForRegion(waitCtx); err != nil {
		slog.Error("capture region never appeared", "err", err)
		os.Exit(1)
	}

	handle, err := tapclient.Open()
	if err != nil {
		slog.Error("could not open capture region", "err", err)
		os.Exit(1)
	}
	defer handle.Close()

	if err := record(ctx, handle, output); err != nil {
		slog.Error("recording failed", "err", err)
		os.Exit(1)
	}
}

func record(ctx context.Context, handle *tapclient.Handle, output string) error {
	srcRate, channels := handle.Format()

	outRate := srcRate
	var rs *resampler.Resampler
	if target := viper.GetInt("targetrate"); target > 0 && target != srcRate {
		if channels == 1 {
			rs = resampler.New(1, srcRate, target, resampleQuality)
			outRate = target
		} else {
			slog.Warn("resampling only supported for mono regions, keeping native rate",
				"channels", channels, "targetrate", target)
		}
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	encoder := wav.NewEncoder(f, outRate, 16, channels, 1)
	slog.Info("recording",
		"output", output,
		"sampleRate", outRate,
		"channels", channels,
	)

	const maxInt16 = float32(math.MaxInt16)
	bufFormat := &goaudio.Format{SampleRate: outRate, NumChannels: channels}
	buf := make([]float32, 8192*channels)
	resampled := make([]float32, 4*len(buf))

	livenessTimeout := viper.GetDuration("livenesstimeout")
	ticker := time.NewTicker(viper.GetDuration("pollinterval"))
	defer ticker.Stop()

	sawProducer := false
	framesOut := 0

drain:
	for {
		select {
		case <-ticker.C:
			n, err := handle.ReadAvailableFrames(buf)
			if err != nil {
				slog.Warn("region went away", "err", err)
				break drain
			}
			if n == 0 {
				if sawProducer && !handle.ProducerAlive(livenessTimeout) {
					slog.Info("producer stopped, finishing")
					break drain
				}
				continue
			}
			sawProducer = true

			samples := buf[:n]
			if rs != nil {
				_, written := rs.ProcessFloat32(0, samples, resampled)
				samples = resampled[:written]
			}

			intBuf := &goaudio.IntBuffer{
				Format:         bufFormat,
				Data:           make([]int, len(samples)),
				SourceBitDepth: 16,
			}
			for i, sample := range samples {
				intBuf.Data[i] = int(min(max(sample, -1), 1) * maxInt16)
			}
			if err := encoder.Write(intBuf); err != nil {
				slog.Error("error while writing frames to file", "err", err)
				continue
			}
			framesOut += len(samples) / channels

		case <-ctx.Done():
			break drain
		}
	}

	if err := encoder.Close(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	slog.Info("recording finished", "frames", framesOut, "tornReads", handle.TornReads())
	return f.Close()
}
