package hal

// Status is the result code of every contract call. Real-time entry points
// report failures exclusively through Status values; no call may panic or
// unwind across the contract boundary.
type Status int32

const (
	StatusOK Status = 0

	StatusUnspecified     Status = -1
	StatusBadObject       Status = -2
	StatusUnknownProperty Status = -3
	StatusBadPropertySize Status = -4
	StatusUnsupported     Status = -5
	StatusInvalidState    Status = -6
	StatusResource        Status = -7
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnspecified:
		return "unspecified error"
	case StatusBadObject:
		return "bad object"
	case StatusUnknownProperty:
		return "unknown property"
	case StatusBadPropertySize:
		return "bad property size"
	case StatusUnsupported:
		return "unsupported configuration"
	case StatusInvalidState:
		return "invalid state"
	case StatusResource:
		return "resource failure"
	default:
		return "unknown status"
	}
}
