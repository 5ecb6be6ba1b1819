// halsim stands in for the host audio subsystem: it loads the driver
// through its factory, walks it through the lifecycle, and delivers
// write/mix IO cycles at the render-quantum cadence from a synthetic tone
// or the machine's microphone.
//
// It exists so the capture pipeline can be exercised end to end without a
// real HAL: halsim in one terminal, tapcapture in another.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/quiet-signal-labs/audiotap/cmd/halsim/config"
	"github.com/quiet-signal-labs/audiotap/internal/driver"
	"github.com/quiet-signal-labs/audiotap/internal/hal"
	"github.com/quiet-signal-labs/audiotap/internal/utils"
)

// loggingHost is the hal.Host handed to the driver: it just surfaces
// property-change notifications.
type loggingHost struct{}

func (loggingHost) PropertiesChanged(object hal.ObjectID, addrs []hal.PropertyAddress) {
	slog.Debug("driver reported property change", "object", object, "count", len(addrs))
}

// frameSource produces interleaved stereo float32 frames for each quantum.
type frameSource interface {
	Fill(buf []float32, frames int)
	Close()
}

// sineSource synthesizes a stereo test tone.
type sineSource struct {
	phase float64
	step  float64
}

func newSineSource(frequency float64, sampleRate int) *sineSource {
	return &sineSource{step: 2 * math.Pi * frequency / float64(sampleRate)}
}

func (s *sineSource) Fill(buf []float32, frames int) {
	for i := 0; i < frames; i++ {
		v := float32(0.5 * math.Sin(s.phase))
		buf[2*i] = v
		buf[2*i+1] = v
		s.phase += s.step
	}
	if s.phase > 2*math.Pi {
		s.phase = math.Mod(s.phase, 2*math.Pi)
	}
}

func (s *sineSource) Close() {}

func main() {
	configFilePath := flag.String("configFilePath", "config.yaml", "Set the file path to the config file.")
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

	// --------------------------------------------------------------------------------

	sampleRate := viper.GetInt("samplerate")

	cfg := driver.DefaultConfig()
	cfg.Device.SampleRate = sampleRate
	cfg.CapacityFrames = viper.GetInt("capacityframes")

	drv, err := driver.Factory(hal.DriverInterfaceID, cfg, slog.Default())
	if err != nil {
		slog.Error("driver factory failed", "err", err)
		os.Exit(1)
	}
	defer drv.Teardown()

	var source frameSource
	switch viper.GetString("source") {
	case "sine":
		source = newSineSource(viper.GetFloat64("frequency"), sampleRate)
	case "mic":
		source, err = newMicSource(sampleRate)
		if err != nil {
			slog.Error("could not open microphone source", "err", err)
			os.Exit(1)
		}
	default:
		slog.Error("unknown source", "source", viper.GetString("source"))
		os.Exit(1)
	}
	defer source.Close()

	// --------------------------------------------------------------------------------

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := viper.GetDuration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	if err := run(ctx, drv, source, sampleRate); err != nil {
		slog.Error("host loop failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, drv hal.Driver, source frameSource, sampleRate int) error {
	const clientID uint32 = 1

	if st := drv.Initialize(loggingHost{}); st != hal.StatusOK {
		return statusError("initialize", st)
	}
	devID, st := drv.CreateDevice()
	if st != hal.StatusOK {
		return statusError("create device", st)
	}
	defer drv.DestroyDevice(devID)

	logDeviceProperties(drv, devID)

	client := hal.ClientInfo{ClientID: clientID, ProcessID: os.Getpid(), IsNative: true}
	if st := drv.AddDeviceClient(devID, client); st != hal.StatusOK {
		return statusError("add client", st)
	}
	defer drv.RemoveDeviceClient(devID, client)

	if st := drv.StartIO(devID, clientID); st != hal.StatusOK {
		return statusError("start io", st)
	}
	defer drv.StopIO(devID, clientID)

	quantum := viper.GetInt("quantumframes")
	period := time.Duration(float64(quantum) / float64(sampleRate) * float64(time.Second))
	buf := make([]float32, quantum*2)

	slog.Info("delivering io cycles",
		"quantumFrames", quantum,
		"period", period,
		"sampleRate", sampleRate,
	)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	var info hal.CycleInfo
	for {
		select {
		case <-ticker.C:
			source.Fill(buf, quantum)

			sampleTime, hostTime, _, st := drv.ZeroTimeStamp(devID)
			if st != hal.StatusOK {
				return statusError("zero timestamp", st)
			}
			info.CycleCounter++
			info.NowSampleTime = sampleTime
			info.NowHostTime = hostTime
			info.OutputSampleTime = sampleTime

			if st := drv.BeginIOOperation(devID, clientID, hal.IOOperationWriteMix, quantum, &info); st != hal.StatusOK {
				return statusError("begin io", st)
			}
			if st := drv.DoIOOperation(devID, hal.ObjectStreamOutput, clientID, hal.IOOperationWriteMix, quantum, &info, buf); st != hal.StatusOK {
				return statusError("do io", st)
			}
			if st := drv.EndIOOperation(devID, clientID, hal.IOOperationWriteMix, quantum, &info); st != hal.StatusOK {
				return statusError("end io", st)
			}

		case <-ctx.Done():
			slog.Info("host loop stopping", "cycles", info.CycleCounter)
			return nil
		}
	}
}

// logDeviceProperties walks the introspection path the way a host does on
// device arrival: size query, then fetch.
func logDeviceProperties(drv hal.Driver, devID hal.ObjectID) {
	fetch := func(sel hal.Selector) []byte {
		addr := hal.PropertyAddress{Selector: sel}
		size, st := drv.PropertyDataSize(devID, addr)
		if st != hal.StatusOK {
			return nil
		}
		out := make([]byte, size)
		if _, st := drv.PropertyData(devID, addr, out); st != hal.StatusOK {
			return nil
		}
		return out
	}

	var rate float64
	if b := fetch(hal.SelectorNominalSampleRate); len(b) == 8 {
		rate = math.Float64frombits(binary.NativeEndian.Uint64(b))
	}
	slog.Info("device published",
		"name", string(fetch(hal.SelectorName)),
		"uid", string(fetch(hal.SelectorDeviceUID)),
		"nominalRate", rate,
	)
}

type statusErr struct {
	op string
	st hal.Status
}

func (e statusErr) Error() string { return e.op + ": " + e.st.String() }

func statusError(op string, st hal.Status) error { return statusErr{op: op, st: st} }
