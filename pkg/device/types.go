package device

import (
	"github.com/rdmakit/ibscan/pkg/types"
	"github.com/rdmakit/ibscan/pkg/verbs"
)

// DeviceInfo is the serializable snapshot of one enumerated device.
type DeviceInfo struct {
	// Index is the zero-based position in the filtered result.
	Index int `json:"index"`
	// Name is the device name (e.g. "mlx5_0").
	Name string `json:"name"`
	// Guid identifies the physical device.
	Guid types.Guid `json:"guid"`
	// IbdevPath is the device's sysfs control directory.
	IbdevPath string `json:"ibdev_path"`
	// DeviceAttr is the capability block reported by the device.
	DeviceAttr verbs.DeviceAttr `json:"device_attr"`
	// Ports are the device's ports that survived filtering.
	Ports []Port `json:"ports"`
}

// Port is one port of a device together with its surviving GIDs.
type Port struct {
	// PortNum is the 1-based port number.
	PortNum uint8 `json:"port_num"`
	// PortAttr is the port attribute block.
	PortAttr verbs.PortAttr `json:"port_attr"`
	// Gids are the GID table entries that survived filtering.
	Gids []Gid `json:"gids"`
}

// Gid is one classified entry of a port's GID table.
type Gid struct {
	// Index is the position in the port's GID table.
	Index uint16 `json:"index"`
	// Gid is the 128-bit address value.
	Gid types.Gid `json:"gid"`
	// GidType is the classified transport type.
	GidType types.GidType `json:"gid_type"`
}
