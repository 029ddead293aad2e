package device

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/rdmakit/ibscan/pkg/types"
	"github.com/rdmakit/ibscan/pkg/verbs"
)

// fakePort is one port of a fakeDevice. Unpopulated GID table slots
// read back as the null address, like real hardware.
type fakePort struct {
	attr verbs.PortAttr
	gids map[uint16]types.Gid
}

// fakeDevice describes one device served by fakeVerbs. Its dir is a real
// temp directory so GID classification can read gid_attrs files from it.
type fakeDevice struct {
	name           string
	guid           types.Guid
	dir            string
	ports          map[uint8]*fakePort
	openErr        error
	allocPDErr     error
	queryDeviceErr error
}

func newFakeDevice(t *testing.T, name string, guid uint64) *fakeDevice {
	t.Helper()
	return &fakeDevice{
		name:  name,
		guid:  types.GuidFromUint64(guid),
		dir:   t.TempDir(),
		ports: make(map[uint8]*fakePort),
	}
}

func (d *fakeDevice) addPort(num uint8, state types.PortState, linkLayer types.LinkLayer) {
	d.ports[num] = &fakePort{
		attr: verbs.PortAttr{State: state, LinkLayer: linkLayer},
		gids: make(map[uint16]types.Gid),
	}
}

// addGid populates one GID table slot and writes its sysfs type file.
// The sentinel is written byte-exact, trailing newline included.
func (d *fakeDevice) addGid(t *testing.T, port uint8, index uint16, gid string, sentinel string) {
	t.Helper()
	p := d.ports[port]
	if p == nil {
		t.Fatalf("port %d not declared", port)
	}
	parsed, err := types.ParseGid(gid)
	if err != nil {
		t.Fatalf("ParseGid(%q): %v", gid, err)
	}
	p.gids[index] = parsed
	if int(index)+1 > p.attr.GidTblLen {
		p.attr.GidTblLen = int(index) + 1
	}

	typePath := filepath.Join(d.dir, "ports", strconv.Itoa(int(port)), "gid_attrs", "types", strconv.Itoa(int(index)))
	if err := os.MkdirAll(filepath.Dir(typePath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(typePath, []byte(sentinel), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (d *fakeDevice) physPortCnt() uint8 {
	var max uint8
	for num := range d.ports {
		if num > max {
			max = num
		}
	}
	return max
}

// fakeVerbs serves a fixed device set and records every lifecycle call so
// tests can assert acquisition and teardown order.
type fakeVerbs struct {
	devices []*fakeDevice
	next    uint64
	devs    map[verbs.DeviceHandle]*fakeDevice
	ctxs    map[verbs.ContextHandle]*fakeDevice
	pdCtx   map[verbs.PDHandle]verbs.ContextHandle
	ops     []string
}

func newFakeVerbs(devices ...*fakeDevice) *fakeVerbs {
	return &fakeVerbs{
		devices: devices,
		devs:    make(map[verbs.DeviceHandle]*fakeDevice),
		ctxs:    make(map[verbs.ContextHandle]*fakeDevice),
		pdCtx:   make(map[verbs.PDHandle]verbs.ContextHandle),
	}
}

func (f *fakeVerbs) record(format string, args ...any) {
	f.ops = append(f.ops, fmt.Sprintf(format, args...))
}

// opCount returns how many recorded operations start with prefix.
func (f *fakeVerbs) opCount(prefix string) int {
	n := 0
	for _, op := range f.ops {
		if len(op) >= len(prefix) && op[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (f *fakeVerbs) GetDeviceList() ([]verbs.DeviceHandle, error) {
	f.record("get_list")
	handles := make([]verbs.DeviceHandle, 0, len(f.devices))
	for _, d := range f.devices {
		f.next++
		h := verbs.DeviceHandle(f.next)
		f.devs[h] = d
		handles = append(handles, h)
	}
	return handles, nil
}

func (f *fakeVerbs) FreeDeviceList(list []verbs.DeviceHandle) {
	f.record("free_list")
	for _, h := range list {
		delete(f.devs, h)
	}
}

func (f *fakeVerbs) DeviceName(dev verbs.DeviceHandle) string {
	if d := f.devs[dev]; d != nil {
		return d.name
	}
	return ""
}

func (f *fakeVerbs) DeviceGUID(dev verbs.DeviceHandle) types.Guid {
	if d := f.devs[dev]; d != nil {
		return d.guid
	}
	return types.Guid{}
}

func (f *fakeVerbs) DevicePath(dev verbs.DeviceHandle) string {
	if d := f.devs[dev]; d != nil {
		return d.dir
	}
	return ""
}

func (f *fakeVerbs) OpenDevice(dev verbs.DeviceHandle) (verbs.ContextHandle, error) {
	d := f.devs[dev]
	if d == nil {
		return 0, fmt.Errorf("stale device handle %d", dev)
	}
	if d.openErr != nil {
		return 0, d.openErr
	}
	f.next++
	ctx := verbs.ContextHandle(f.next)
	f.ctxs[ctx] = d
	f.record("open %s", d.name)
	return ctx, nil
}

func (f *fakeVerbs) CloseDevice(ctx verbs.ContextHandle) error {
	d := f.ctxs[ctx]
	if d == nil {
		return fmt.Errorf("stale context handle %d", ctx)
	}
	delete(f.ctxs, ctx)
	f.record("close_device %s", d.name)
	return nil
}

func (f *fakeVerbs) AllocPD(ctx verbs.ContextHandle) (verbs.PDHandle, error) {
	d := f.ctxs[ctx]
	if d == nil {
		return 0, fmt.Errorf("stale context handle %d", ctx)
	}
	if d.allocPDErr != nil {
		return 0, d.allocPDErr
	}
	f.next++
	pd := verbs.PDHandle(f.next)
	f.pdCtx[pd] = ctx
	f.record("alloc_pd %s", d.name)
	return pd, nil
}

func (f *fakeVerbs) DeallocPD(pd verbs.PDHandle) error {
	ctx, ok := f.pdCtx[pd]
	if !ok {
		return fmt.Errorf("stale protection domain handle %d", pd)
	}
	delete(f.pdCtx, pd)
	name := "?"
	if d := f.ctxs[ctx]; d != nil {
		name = d.name
	}
	f.record("dealloc_pd %s", name)
	return nil
}

func (f *fakeVerbs) QueryDevice(ctx verbs.ContextHandle) (verbs.DeviceAttr, error) {
	d := f.ctxs[ctx]
	if d == nil {
		return verbs.DeviceAttr{}, fmt.Errorf("stale context handle %d", ctx)
	}
	if d.queryDeviceErr != nil {
		return verbs.DeviceAttr{}, d.queryDeviceErr
	}
	return verbs.DeviceAttr{
		NodeGuid:    d.guid,
		PhysPortCnt: d.physPortCnt(),
	}, nil
}

func (f *fakeVerbs) QueryPort(ctx verbs.ContextHandle, port uint8) (verbs.PortAttr, error) {
	d := f.ctxs[ctx]
	if d == nil {
		return verbs.PortAttr{}, fmt.Errorf("stale context handle %d", ctx)
	}
	p := d.ports[port]
	if p == nil {
		return verbs.PortAttr{}, fmt.Errorf("no such port %d", port)
	}
	return p.attr, nil
}

func (f *fakeVerbs) QueryGID(ctx verbs.ContextHandle, port uint8, index uint16) (types.Gid, error) {
	d := f.ctxs[ctx]
	if d == nil {
		return types.Gid{}, fmt.Errorf("stale context handle %d", ctx)
	}
	p := d.ports[port]
	if p == nil {
		return types.Gid{}, fmt.Errorf("no such port %d", port)
	}
	// Unpopulated slots read back as the null address.
	return p.gids[index], nil
}
