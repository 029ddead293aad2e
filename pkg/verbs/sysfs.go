package verbs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rdmakit/ibscan/pkg/types"
)

// sysClassInfiniband is where the kernel exposes RDMA devices.
// Overridable in tests.
var sysClassInfiniband = "/sys/class/infiniband"

// Sysfs is the host adapter for the Verbs interface, backed by the
// read-only /sys/class/infiniband tree. Device listing, opening, and all
// attribute queries map to sysfs reads. Protection domains have no sysfs
// representation, so AllocPD hands out locally tracked handles that obey
// the usual lifetime rules (a PD never outlives its context) without
// touching hardware.
//
// Capability counts and MTUs that sysfs does not expose are left zero in
// the returned attribute blocks.
type Sysfs struct {
	mu   sync.Mutex
	next uint64
	devs map[DeviceHandle]string
	ctxs map[ContextHandle]string
	pds  map[PDHandle]ContextHandle
}

// NewSysfs returns a sysfs-backed Verbs implementation.
func NewSysfs() *Sysfs {
	return &Sysfs{
		devs: make(map[DeviceHandle]string),
		ctxs: make(map[ContextHandle]string),
		pds:  make(map[PDHandle]ContextHandle),
	}
}

// GetDeviceList snapshots the devices under /sys/class/infiniband in
// directory order.
func (s *Sysfs) GetDeviceList() ([]DeviceHandle, error) {
	entries, err := os.ReadDir(sysClassInfiniband)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", sysClassInfiniband, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	handles := make([]DeviceHandle, 0, len(entries))
	for _, e := range entries {
		s.next++
		h := DeviceHandle(s.next)
		s.devs[h] = e.Name()
		handles = append(handles, h)
	}
	return handles, nil
}

// FreeDeviceList invalidates the handles of a previous GetDeviceList call.
// Contexts already opened from them stay valid.
func (s *Sysfs) FreeDeviceList(list []DeviceHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range list {
		delete(s.devs, h)
	}
}

// DeviceName returns the device name, or "" for a stale handle.
func (s *Sysfs) DeviceName(dev DeviceHandle) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devs[dev]
}

// DeviceGUID reads the node GUID. A stale handle or unreadable attribute
// yields the zero GUID.
func (s *Sysfs) DeviceGUID(dev DeviceHandle) types.Guid {
	name := s.DeviceName(dev)
	if name == "" {
		return types.Guid{}
	}
	guid, err := readGuid(filepath.Join(sysClassInfiniband, name, "node_guid"))
	if err != nil {
		return types.Guid{}
	}
	return guid
}

// DevicePath returns the device's sysfs control directory.
func (s *Sysfs) DevicePath(dev DeviceHandle) string {
	name := s.DeviceName(dev)
	if name == "" {
		return ""
	}
	return filepath.Join(sysClassInfiniband, name)
}

// OpenDevice opens a context on the device after checking its control
// directory is present.
func (s *Sysfs) OpenDevice(dev DeviceHandle) (ContextHandle, error) {
	name := s.DeviceName(dev)
	if name == "" {
		return 0, fmt.Errorf("stale device handle %d", dev)
	}
	path := filepath.Join(sysClassInfiniband, name)
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("cannot open device %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	ctx := ContextHandle(s.next)
	s.ctxs[ctx] = name
	return ctx, nil
}

// CloseDevice closes a context.
func (s *Sysfs) CloseDevice(ctx ContextHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ctxs[ctx]; !ok {
		return fmt.Errorf("stale context handle %d", ctx)
	}
	delete(s.ctxs, ctx)
	return nil
}

// AllocPD allocates a protection domain on an open context.
func (s *Sysfs) AllocPD(ctx ContextHandle) (PDHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ctxs[ctx]; !ok {
		return 0, fmt.Errorf("stale context handle %d", ctx)
	}
	s.next++
	pd := PDHandle(s.next)
	s.pds[pd] = ctx
	return pd, nil
}

// DeallocPD releases a protection domain.
func (s *Sysfs) DeallocPD(pd PDHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pds[pd]; !ok {
		return fmt.Errorf("stale protection domain handle %d", pd)
	}
	delete(s.pds, pd)
	return nil
}

// contextPath resolves a context handle to its device directory.
func (s *Sysfs) contextPath(ctx ContextHandle) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.ctxs[ctx]
	if !ok {
		return "", fmt.Errorf("stale context handle %d", ctx)
	}
	return filepath.Join(sysClassInfiniband, name), nil
}

// QueryDevice assembles the device attribute block from sysfs. The ports
// directory must be readable; all other attributes are best-effort.
func (s *Sysfs) QueryDevice(ctx ContextHandle) (DeviceAttr, error) {
	path, err := s.contextPath(ctx)
	if err != nil {
		return DeviceAttr{}, err
	}

	ports, err := os.ReadDir(filepath.Join(path, "ports"))
	if err != nil {
		return DeviceAttr{}, fmt.Errorf("cannot read ports of %s: %w", path, err)
	}

	attr := DeviceAttr{
		FwVer:       types.FwVerFromString(readSysfsAttr(filepath.Join(path, "fw_ver"))),
		NodeDesc:    readSysfsAttr(filepath.Join(path, "node_desc")),
		PhysPortCnt: uint8(len(ports)),
	}
	if guid, err := readGuid(filepath.Join(path, "node_guid")); err == nil {
		attr.NodeGuid = guid
	}
	if guid, err := readGuid(filepath.Join(path, "sys_image_guid")); err == nil {
		attr.SysImageGuid = guid
	}
	// Vendor and part IDs live on the underlying PCI device.
	attr.VendorID = uint32(readSysfsHex(filepath.Join(path, "device", "vendor")))
	attr.VendorPartID = uint32(readSysfsHex(filepath.Join(path, "device", "device")))
	attr.HwVer = uint32(readSysfsHex(filepath.Join(path, "hw_rev")))
	return attr, nil
}

// QueryPort assembles the port attribute block from sysfs. The state file
// and the gids directory must be readable; the rest is best-effort.
func (s *Sysfs) QueryPort(ctx ContextHandle, port uint8) (PortAttr, error) {
	path, err := s.contextPath(ctx)
	if err != nil {
		return PortAttr{}, err
	}
	portDir := filepath.Join(path, "ports", strconv.Itoa(int(port)))

	state, err := readPortState(filepath.Join(portDir, "state"))
	if err != nil {
		return PortAttr{}, err
	}
	gids, err := os.ReadDir(filepath.Join(portDir, "gids"))
	if err != nil {
		return PortAttr{}, fmt.Errorf("cannot read gid table of port %d: %w", port, err)
	}

	attr := PortAttr{
		State:     state,
		GidTblLen: len(gids),
		Lid:       uint16(readSysfsHex(filepath.Join(portDir, "lid"))),
		SmLid:     uint16(readSysfsHex(filepath.Join(portDir, "sm_lid"))),
		Lmc:       uint8(readSysfsHex(filepath.Join(portDir, "lmc"))),
		Rate:      readSysfsAttr(filepath.Join(portDir, "rate")),
	}
	switch readSysfsAttr(filepath.Join(portDir, "link_layer")) {
	case "InfiniBand":
		attr.LinkLayer = types.LinkLayerInfiniBand
	case "Ethernet":
		attr.LinkLayer = types.LinkLayerEthernet
	default:
		attr.LinkLayer = types.LinkLayerUnspecified
	}
	return attr, nil
}

// QueryGID reads one entry of a port's GID table.
func (s *Sysfs) QueryGID(ctx ContextHandle, port uint8, index uint16) (types.Gid, error) {
	path, err := s.contextPath(ctx)
	if err != nil {
		return types.Gid{}, err
	}
	gidPath := filepath.Join(path, "ports", strconv.Itoa(int(port)), "gids", strconv.Itoa(int(index)))
	data, err := os.ReadFile(gidPath)
	if err != nil {
		return types.Gid{}, fmt.Errorf("cannot read %s: %w", gidPath, err)
	}
	gid, err := types.ParseGid(strings.TrimSpace(string(data)))
	if err != nil {
		return types.Gid{}, fmt.Errorf("malformed GID at %s: %w", gidPath, err)
	}
	return gid, nil
}

// readSysfsAttr reads a single sysfs attribute file, stripping whitespace.
// Missing or unreadable attributes yield "".
func readSysfsAttr(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// readSysfsHex reads a numeric sysfs attribute such as "0x15b3" or "3".
// Missing or malformed attributes yield 0.
func readSysfsHex(path string) uint64 {
	val := readSysfsAttr(path)
	if val == "" {
		return 0
	}
	base := 10
	if rest, ok := strings.CutPrefix(val, "0x"); ok {
		val, base = rest, 16
	}
	n, err := strconv.ParseUint(val, base, 64)
	if err != nil {
		return 0
	}
	return n
}

// readGuid parses a sysfs GUID attribute ("0002:c903:00a1:b2c3").
func readGuid(path string) (types.Guid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Guid{}, err
	}
	return types.ParseGuid(strings.TrimSpace(string(data)))
}

// readPortState parses a sysfs port state attribute ("4: ACTIVE").
func readPortState(path string) (types.PortState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.PortNop, fmt.Errorf("cannot read port state: %w", err)
	}
	raw, _, _ := strings.Cut(strings.TrimSpace(string(data)), ":")
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 8)
	if err != nil {
		return types.PortNop, fmt.Errorf("malformed port state %q: %w", strings.TrimSpace(string(data)), err)
	}
	return types.PortStateFromUint8(uint8(n)), nil
}
