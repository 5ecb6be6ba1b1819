// Package hal defines the host audio subsystem's plugin contract: the object
// identifiers, property addressing scheme, status codes and the driver
// function table that a virtual device plugin must implement.
//
// The contract is fixed and foreign. The host owns the real-time thread that
// delivers IO cycles; implementations of Driver must treat every method
// reachable from that thread as real-time code (no allocation, no blocking,
// errors as Status values only).
package hal

// ObjectID identifies one node of the plugin's object graph. The graph is
// static for this plugin: one plugin root, one device, two streams and four
// controls, with well-known IDs assigned at build time.
type ObjectID uint32

const (
	ObjectUnknown ObjectID = 0

	ObjectPlugIn       ObjectID = 1
	ObjectDevice       ObjectID = 2
	ObjectStreamInput  ObjectID = 3
	ObjectStreamOutput ObjectID = 4
	ObjectVolumeInput  ObjectID = 5
	ObjectVolumeOutput ObjectID = 6
	ObjectMuteInput    ObjectID = 7
	ObjectMuteOutput   ObjectID = 8
)

// Selector names one property of a graph object.
type Selector uint32

const (
	// Common object properties.
	SelectorBaseClass Selector = iota + 1
	SelectorClass
	SelectorOwner
	SelectorName
	SelectorManufacturer
	SelectorOwnedObjects

	// Plugin root properties.
	SelectorDeviceList
	SelectorTranslateUIDToDevice
	SelectorResourceBundle

	// Device properties.
	SelectorDeviceUID
	SelectorModelUID
	SelectorTransportType
	SelectorClockDomain
	SelectorIsAlive
	SelectorIsRunning
	SelectorIsHidden
	SelectorCanBeDefault
	SelectorCanBeDefaultSystem
	SelectorLatency
	SelectorSafetyOffset
	SelectorZeroTimeStampPeriod
	SelectorStreams
	SelectorControlList
	SelectorNominalSampleRate
	SelectorAvailableSampleRates

	// Stream properties.
	SelectorStreamIsActive
	SelectorStreamDirection
	SelectorTerminalType
	SelectorStartingChannel
	SelectorStreamLatency
	SelectorVirtualFormat
	SelectorPhysicalFormat
	SelectorAvailableFormats

	// Control properties.
	SelectorControlScope
	SelectorControlElement
	SelectorScalarValue
	SelectorDecibelValue
	SelectorDecibelRange
	SelectorConvertScalarToDecibels
	SelectorConvertDecibelsToScalar
	SelectorMuteValue
)

// Scope qualifies a property address by IO direction.
type Scope uint32

const (
	ScopeGlobal Scope = iota
	ScopeInput
	ScopeOutput
)

// Element qualifies a property address by channel. Only the main element is
// used by this plugin.
type Element uint32

const ElementMain Element = 0

// PropertyAddress is the full key for one property query.
type PropertyAddress struct {
	Selector Selector
	Scope    Scope
	Element  Element
}

// Class identifiers reported through SelectorBaseClass / SelectorClass.
type ClassID uint32

const (
	ClassObject ClassID = iota + 1
	ClassPlugIn
	ClassDevice
	ClassStream
	ClassControl
	ClassVolumeControl
	ClassMuteControl
)

// Stream direction values, as seen through SelectorStreamDirection.
const (
	DirectionOutput uint32 = 0
	DirectionInput  uint32 = 1
)

// Terminal types reported through SelectorTerminalType.
const (
	TerminalTypeSpeaker    uint32 = 1
	TerminalTypeMicrophone uint32 = 2
)

// Transport type reported through SelectorTransportType.
const TransportTypeVirtual uint32 = 1

// IOOperation identifies one phase of work within a render quantum.
type IOOperation uint32

const (
	IOOperationReadInput IOOperation = iota + 1
	IOOperationWriteMix
	IOOperationConvertInput
	IOOperationProcessOutput
)

// CycleInfo carries the host's timing view of the current render quantum.
// The host builds one per cycle and passes the same pointer to the Begin, Do
// and End calls of that cycle.
type CycleInfo struct {
	CycleCounter     uint64
	NowSampleTime    float64
	NowHostTime      uint64
	InputSampleTime  float64
	OutputSampleTime float64
}

// StreamFormat describes the sample layout of a stream. Samples are always
// 32-bit IEEE-754 floats in native endianness, interleaved.
type StreamFormat struct {
	SampleRate       float64
	FormatFlags      uint32
	BytesPerPacket   uint32
	FramesPerPacket  uint32
	BytesPerFrame    uint32
	ChannelsPerFrame uint32
	BitsPerChannel   uint32
}

// Format flag bits.
const (
	FormatFlagIsFloat      uint32 = 1 << 0
	FormatFlagIsPacked     uint32 = 1 << 1
	FormatFlagNativeEndian uint32 = 1 << 2
)

// ClientInfo identifies one host-side client of the device.
type ClientInfo struct {
	ClientID  uint32
	ProcessID int
	IsNative  bool
}

// Host is the driver's view of the loading audio subsystem. The host pointer
// is handed to the driver once, at Initialize.
type Host interface {
	// PropertiesChanged tells the host that the given properties of an
	// object have new values and listeners should be re-notified.
	PropertiesChanged(object ObjectID, addrs []PropertyAddress)
}

// Driver is the fixed function table the host dispatches through. It stands
// in for the COM-style interface of the native contract: one factory returns
// one implementation and the host calls it for the lifetime of the plugin.
type Driver interface {
	// Lifecycle.
	Initialize(host Host) Status
	CreateDevice() (ObjectID, Status)
	DestroyDevice(device ObjectID) Status
	AddDeviceClient(device ObjectID, client ClientInfo) Status
	RemoveDeviceClient(device ObjectID, client ClientInfo) Status
	PerformConfigurationChange(device ObjectID, action uint64) Status
	AbortConfigurationChange(device ObjectID, action uint64) Status

	// Property access.
	HasProperty(object ObjectID, addr PropertyAddress) bool
	IsPropertySettable(object ObjectID, addr PropertyAddress) (bool, Status)
	PropertyDataSize(object ObjectID, addr PropertyAddress) (int, Status)
	PropertyData(object ObjectID, addr PropertyAddress, out []byte) (int, Status)
	SetPropertyData(object ObjectID, addr PropertyAddress, data []byte) Status

	// IO, called from the host's real-time thread.
	StartIO(device ObjectID, clientID uint32) Status
	StopIO(device ObjectID, clientID uint32) Status
	ZeroTimeStamp(device ObjectID) (sampleTime float64, hostTime uint64, seed uint64, status Status)
	WillDoIOOperation(device ObjectID, op IOOperation) (willDo, inPlace bool)
	BeginIOOperation(device ObjectID, clientID uint32, op IOOperation, frames int, info *CycleInfo) Status
	DoIOOperation(device, stream ObjectID, clientID uint32, op IOOperation, frames int, info *CycleInfo, buf []float32) Status
	EndIOOperation(device ObjectID, clientID uint32, op IOOperation, frames int, info *CycleInfo) Status

	// Teardown releases everything the factory created. The host calls it
	// exactly once, after the last DestroyDevice.
	Teardown()
}

// DriverInterfaceID is the well-known identifier the host passes to the
// plugin factory. A factory must return nil for any other identifier.
const DriverInterfaceID = "audiotap.driver.v1"
