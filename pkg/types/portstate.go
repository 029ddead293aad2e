package types

import "encoding/json"

// PortState is the logical state of an RDMA port, matching the
// ibv_port_state values from libibverbs.
type PortState uint8

const (
	PortNop         PortState = 0
	PortDown        PortState = 1
	PortInit        PortState = 2
	PortArmed       PortState = 3
	PortActive      PortState = 4
	PortActiveDefer PortState = 5
)

// PortStateFromUint8 maps a raw attribute value to a PortState.
// Unknown values map to PortNop; it never fails.
func PortStateFromUint8(v uint8) PortState {
	if v > uint8(PortActiveDefer) {
		return PortNop
	}
	return PortState(v)
}

// IsActive reports whether the port can carry traffic.
func (s PortState) IsActive() bool { return s == PortActive }

// String returns the sysfs spelling of the port state.
func (s PortState) String() string {
	switch s {
	case PortDown:
		return "DOWN"
	case PortInit:
		return "INIT"
	case PortArmed:
		return "ARMED"
	case PortActive:
		return "ACTIVE"
	case PortActiveDefer:
		return "ACTIVE_DEFER"
	default:
		return "NOP"
	}
}

// MarshalJSON encodes the port state as its name.
func (s PortState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a port state name; unknown names map to NOP.
func (s *PortState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "DOWN":
		*s = PortDown
	case "INIT":
		*s = PortInit
	case "ARMED":
		*s = PortArmed
	case "ACTIVE":
		*s = PortActive
	case "ACTIVE_DEFER":
		*s = PortActiveDefer
	default:
		*s = PortNop
	}
	return nil
}
