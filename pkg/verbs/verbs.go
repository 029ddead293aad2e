// Package verbs defines the capability surface the device layer calls
// through to reach RDMA hardware: listing devices, opening contexts,
// allocating protection domains, and querying attributes. The interface
// deals in opaque integer handles so no raw pointers cross the boundary;
// every fallible call returns a plain error that the caller wraps into
// the ibverr taxonomy.
//
// The default implementation is Sysfs, a read-only adapter over
// /sys/class/infiniband. Tests substitute their own implementation.
package verbs

import (
	"github.com/rdmakit/ibscan/pkg/types"
)

// DeviceHandle identifies an entry of the device list.
type DeviceHandle uint64

// ContextHandle identifies an open device context.
type ContextHandle uint64

// PDHandle identifies an allocated protection domain.
type PDHandle uint64

// DeviceAttr is the device capability block. Counts that the underlying
// adapter cannot determine are left zero.
type DeviceAttr struct {
	FwVer        types.FwVer `json:"fw_ver"`
	NodeGuid     types.Guid  `json:"node_guid"`
	SysImageGuid types.Guid  `json:"sys_image_guid"`
	VendorID     uint32      `json:"vendor_id"`
	VendorPartID uint32      `json:"vendor_part_id"`
	HwVer        uint32      `json:"hw_ver"`
	NodeDesc     string      `json:"node_desc,omitempty"`
	MaxQP        int         `json:"max_qp"`
	MaxQPWR      int         `json:"max_qp_wr"`
	MaxSGE       int         `json:"max_sge"`
	MaxCQ        int         `json:"max_cq"`
	MaxCQE       int         `json:"max_cqe"`
	MaxMR        int         `json:"max_mr"`
	MaxPD        int         `json:"max_pd"`
	PhysPortCnt  uint8       `json:"phys_port_cnt"`
}

// PortAttr is the per-port attribute block.
type PortAttr struct {
	State     types.PortState `json:"state"`
	MaxMTU    uint32          `json:"max_mtu"`
	ActiveMTU uint32          `json:"active_mtu"`
	GidTblLen int             `json:"gid_tbl_len"`
	Lid       uint16          `json:"lid"`
	SmLid     uint16          `json:"sm_lid"`
	Lmc       uint8           `json:"lmc"`
	Rate      string          `json:"rate,omitempty"`
	LinkLayer types.LinkLayer `json:"link_layer"`
}

// Verbs is the set of hardware calls the device layer consumes.
//
// Handle lifetimes follow the underlying verbs rules: device handles are
// valid until FreeDeviceList, context handles until CloseDevice, and PD
// handles until DeallocPD (and never past their owning context).
type Verbs interface {
	// GetDeviceList returns the devices present on the host, in stable
	// order. An empty list is not an error at this level.
	GetDeviceList() ([]DeviceHandle, error)
	// FreeDeviceList releases the list. Device handles from it must not
	// be used afterwards, except by contexts already opened from them.
	FreeDeviceList(list []DeviceHandle)

	// DeviceName returns the device name (e.g. "mlx5_0") without opening it.
	DeviceName(dev DeviceHandle) string
	// DeviceGUID returns the raw 64-bit GUID in network byte order.
	DeviceGUID(dev DeviceHandle) types.Guid
	// DevicePath returns the device's sysfs control directory.
	DevicePath(dev DeviceHandle) string

	// OpenDevice opens a context on the device.
	OpenDevice(dev DeviceHandle) (ContextHandle, error)
	// CloseDevice closes a context. Best-effort at teardown time.
	CloseDevice(ctx ContextHandle) error

	// AllocPD allocates a protection domain on an open context.
	AllocPD(ctx ContextHandle) (PDHandle, error)
	// DeallocPD releases a protection domain. Best-effort at teardown time.
	DeallocPD(pd PDHandle) error

	// QueryDevice returns the device capability block.
	QueryDevice(ctx ContextHandle) (DeviceAttr, error)
	// QueryPort returns the attribute block for a 1-based port number.
	QueryPort(ctx ContextHandle, port uint8) (PortAttr, error)
	// QueryGID returns the GID at the given port and table index. The
	// null address is returned as-is; rejecting it is the caller's job.
	QueryGID(ctx ContextHandle, port uint8, index uint16) (types.Gid, error)
}
