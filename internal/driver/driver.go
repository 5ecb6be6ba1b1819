// Package driver is the plugin adapter between the host audio subsystem's
// fixed contract and the virtual device: it owns the device object graph,
// the shared memory region and the ring buffer, and dispatches property and
// IO-cycle calls into them.
package driver

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/quiet-signal-labs/audiotap/internal/device"
	"github.com/quiet-signal-labs/audiotap/internal/hal"
	"github.com/quiet-signal-labs/audiotap/internal/ring"
	"github.com/quiet-signal-labs/audiotap/internal/shmem"
)

// maxQuantumFrames bounds one render quantum. The scratch buffers sized by
// it make the IO path allocation-free.
const maxQuantumFrames = 4096

// Config assembles everything the factory needs to publish one device.
type Config struct {
	RegionName     string
	CapacityFrames int
	RingChannels   int

	Device device.Config
}

// DefaultConfig is a stereo device captured to a two-second mono ring at
// 48 kHz.
func DefaultConfig() Config {
	return Config{
		RegionName:     shmem.DefaultRegionName,
		CapacityFrames: 96000,
		RingChannels:   1,
		Device: device.Config{
			Name:                "AudioTap",
			Manufacturer:        "Quiet Signal Labs",
			UID:                 "AudioTapDevice_UID",
			ModelUID:            "AudioTapDevice_ModelUID",
			Channels:            2,
			SampleRate:          48000,
			SupportedRates:      []int{44100, 48000, 96000, 192000},
			ZeroTimeStampPeriod: 512,
		},
	}
}

// Driver implements hal.Driver. One instance exists per plugin load,
// constructed by Factory and torn down by Teardown; there is no ambient
// global state.
type Driver struct {
	cfg    Config
	logger *slog.Logger

	dev   *device.Device
	graph *device.Graph

	region *shmem.Region
	prod   *ring.Producer
	clock  *ioClock

	host hal.Host

	mu      sync.Mutex
	clients map[uint32]uuid.UUID
	ioRefs  int

	// loopbackCursor is the ReadInput path's private position in the
	// ring. It never touches the shared read cursor, so loopback cannot
	// starve the external consumer.
	loopbackCursor uint64

	scratch []float32 // downmix / gain staging, IO thread only

	teardownOnce sync.Once
}

// Factory is the plugin entry point. The host passes the interface
// identifier it wants; anything but hal.DriverInterfaceID yields nil.
func Factory(interfaceID string, cfg Config, logger *slog.Logger) (hal.Driver, error) {
	if interfaceID != hal.DriverInterfaceID {
		return nil, fmt.Errorf("unknown driver interface %q", interfaceID)
	}
	return New(cfg, logger)
}

// New builds the driver: device graph, shared region, ring. A region
// failure is fatal to the plugin load and no device is published.
func New(cfg Config, logger *slog.Logger) (*Driver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "driver")

	if cfg.RingChannels != 1 && cfg.RingChannels != cfg.Device.Channels {
		return nil, fmt.Errorf("ring channels %d must be 1 or the device channel count %d",
			cfg.RingChannels, cfg.Device.Channels)
	}

	region, err := shmem.Create(cfg.RegionName, ring.Size(cfg.CapacityFrames, cfg.RingChannels))
	if err != nil {
		return nil, fmt.Errorf("create shared region: %w", err)
	}

	prod, err := ring.New(region, cfg.CapacityFrames, cfg.RingChannels, cfg.Device.SampleRate)
	if err != nil {
		region.Close()
		region.Unlink()
		return nil, fmt.Errorf("initialize ring: %w", err)
	}

	d := &Driver{
		cfg:     cfg,
		logger:  logger,
		region:  region,
		prod:    prod,
		clock:   newIOClock(newMonotonicClock(), cfg.Device.SampleRate, cfg.Device.ZeroTimeStampPeriod),
		clients: make(map[uint32]uuid.UUID),
		scratch: make([]float32, maxQuantumFrames*cfg.Device.Channels),
	}

	d.dev = device.New(cfg.Device, logger)
	d.graph = device.NewGraph(d.dev)
	d.dev.OnRateChange(d.rateChanged)
	d.dev.OnRunningChange(d.runningChanged)

	logger.Info("driver created",
		"region", cfg.RegionName,
		"capacityFrames", cfg.CapacityFrames,
		"ringChannels", cfg.RingChannels,
		"sampleRate", cfg.Device.SampleRate,
	)
	return d, nil
}

// rateChanged recomputes the timing context and republishes the region
// header. Runs with IO stopped.
func (d *Driver) rateChanged(oldRate, newRate int) {
	d.clock.setRate(newRate)
	d.prod.SetSampleRate(newRate)
	d.logger.Info("nominal sample rate changed", "from", oldRate, "to", newRate)
	if d.host != nil {
		d.host.PropertiesChanged(hal.ObjectDevice, []hal.PropertyAddress{
			{Selector: hal.SelectorNominalSampleRate},
		})
	}
}

// runningChanged keeps the ring's active flag in lockstep with the device
// running state, whichever path flipped it.
func (d *Driver) runningChanged(running bool) {
	if running {
		d.clock.anchor()
		d.prod.Clear()
		d.loopbackCursor = d.prod.WriteCursor()
	}
	d.prod.SetActive(running)
}

// Producer exposes the ring's producer view for in-process hosts and tests.
func (d *Driver) Producer() *ring.Producer { return d.prod }

// Device exposes the device object for in-process hosts and tests.
func (d *Driver) Device() *device.Device { return d.dev }

// --------------------------------------------------------------------------------
// hal.Driver lifecycle

func (d *Driver) Initialize(host hal.Host) hal.Status {
	d.host = host
	d.logger.Info("driver initialized")
	return hal.StatusOK
}

func (d *Driver) CreateDevice() (hal.ObjectID, hal.Status) {
	if st := d.dev.Register(); st != hal.StatusOK {
		return hal.ObjectUnknown, st
	}
	return hal.ObjectDevice, hal.StatusOK
}

func (d *Driver) DestroyDevice(dev hal.ObjectID) hal.Status {
	if dev != hal.ObjectDevice {
		return hal.StatusBadObject
	}
	d.dev.Destroy()
	d.prod.SetActive(false)
	return hal.StatusOK
}

func (d *Driver) AddDeviceClient(dev hal.ObjectID, client hal.ClientInfo) hal.Status {
	if dev != hal.ObjectDevice {
		return hal.StatusBadObject
	}
	token := uuid.New()
	d.mu.Lock()
	d.clients[client.ClientID] = token
	d.mu.Unlock()
	d.logger.Debug("client added", "clientID", client.ClientID, "pid", client.ProcessID, "token", token)
	return hal.StatusOK
}

func (d *Driver) RemoveDeviceClient(dev hal.ObjectID, client hal.ClientInfo) hal.Status {
	if dev != hal.ObjectDevice {
		return hal.StatusBadObject
	}
	d.mu.Lock()
	token, ok := d.clients[client.ClientID]
	delete(d.clients, client.ClientID)
	d.mu.Unlock()
	if !ok {
		return hal.StatusBadObject
	}
	d.logger.Debug("client removed", "clientID", client.ClientID, "token", token)
	return hal.StatusOK
}

func (d *Driver) PerformConfigurationChange(dev hal.ObjectID, action uint64) hal.Status {
	if dev != hal.ObjectDevice {
		return hal.StatusBadObject
	}
	d.logger.Debug("configuration change performed", "action", action)
	return hal.StatusOK
}

func (d *Driver) AbortConfigurationChange(dev hal.ObjectID, action uint64) hal.Status {
	if dev != hal.ObjectDevice {
		return hal.StatusBadObject
	}
	d.logger.Debug("configuration change aborted", "action", action)
	return hal.StatusOK
}

// Teardown releases the shared region. Idempotent; safe even if the host
// never started IO.
func (d *Driver) Teardown() {
	d.teardownOnce.Do(func() {
		d.dev.Destroy()
		d.prod.SetActive(false)
		if err := d.region.Close(); err != nil {
			d.logger.Warn("region unmap failed", "err", err)
		}
		if err := d.region.Unlink(); err != nil {
			d.logger.Warn("region unlink failed", "err", err)
		}
		d.logger.Info("driver torn down")
	})
}

// --------------------------------------------------------------------------------
// hal.Driver property access

func (d *Driver) HasProperty(object hal.ObjectID, addr hal.PropertyAddress) bool {
	return d.graph.HasProperty(object, addr)
}

func (d *Driver) IsPropertySettable(object hal.ObjectID, addr hal.PropertyAddress) (bool, hal.Status) {
	return d.graph.IsSettable(object, addr)
}

func (d *Driver) PropertyDataSize(object hal.ObjectID, addr hal.PropertyAddress) (int, hal.Status) {
	return d.graph.PropertySize(object, addr)
}

func (d *Driver) PropertyData(object hal.ObjectID, addr hal.PropertyAddress, out []byte) (int, hal.Status) {
	return d.graph.Property(object, addr, out)
}

func (d *Driver) SetPropertyData(object hal.ObjectID, addr hal.PropertyAddress, data []byte) hal.Status {
	return d.graph.SetProperty(object, addr, data)
}
