package device

import (
	"github.com/rdmakit/ibscan/pkg/ibverr"
	"github.com/rdmakit/ibscan/pkg/types"
	"github.com/rdmakit/ibscan/pkg/verbs"
)

// The raw wrappers own one externally allocated handle each and release
// it exactly once, whatever path execution takes. They translate the
// adapter's plain errors into the ibverr taxonomy at the point of failure
// so the OS error description is captured before anything else runs.

// rawDeviceList owns the handles from a GetDeviceList call. The handles
// stay valid only while the list is alive.
type rawDeviceList struct {
	v       verbs.Verbs
	handles []verbs.DeviceHandle
}

// openDeviceList acquires the device list. A failed call maps to
// IBGetDeviceListFail; an empty list to IBDeviceNotFound.
func openDeviceList(v verbs.Verbs) (*rawDeviceList, error) {
	handles, err := v.GetDeviceList()
	if err != nil {
		return nil, ibverr.Wrap(ibverr.IBGetDeviceListFail, err)
	}
	if len(handles) == 0 {
		return nil, ibverr.New(ibverr.IBDeviceNotFound, "")
	}
	return &rawDeviceList{v: v, handles: handles}, nil
}

// Close releases the list. Safe to call more than once.
func (l *rawDeviceList) Close() {
	if l.handles != nil {
		l.v.FreeDeviceList(l.handles)
		l.handles = nil
	}
}

// rawContext owns an open device context and carries the typed query
// helpers over the adapter's calls.
type rawContext struct {
	v verbs.Verbs
	h verbs.ContextHandle
}

// openContext opens a context on dev, mapping failure to IBOpenDeviceFail.
func openContext(v verbs.Verbs, dev verbs.DeviceHandle) (*rawContext, error) {
	h, err := v.OpenDevice(dev)
	if err != nil {
		return nil, ibverr.Wrap(ibverr.IBOpenDeviceFail, err)
	}
	return &rawContext{v: v, h: h}, nil
}

// Close closes the context. Close failures are swallowed: there is no
// recovery action available at teardown time.
func (c *rawContext) Close() {
	_ = c.v.CloseDevice(c.h)
}

func (c *rawContext) queryDevice() (verbs.DeviceAttr, error) {
	attr, err := c.v.QueryDevice(c.h)
	if err != nil {
		return verbs.DeviceAttr{}, ibverr.Wrap(ibverr.IBQueryDeviceFail, err)
	}
	return attr, nil
}

func (c *rawContext) queryPort(port uint8) (verbs.PortAttr, error) {
	attr, err := c.v.QueryPort(c.h, port)
	if err != nil {
		return verbs.PortAttr{}, ibverr.Wrap(ibverr.IBQueryPortFail, err)
	}
	return attr, nil
}

// queryGid fetches one GID table entry. The null address counts as a
// failure: it marks an unused table slot.
func (c *rawContext) queryGid(port uint8, index uint16) (types.Gid, error) {
	gid, err := c.v.QueryGID(c.h, port, index)
	if err != nil {
		return types.Gid{}, ibverr.Wrap(ibverr.IBQueryGidFail, err)
	}
	if gid.IsNull() {
		return types.Gid{}, ibverr.New(ibverr.IBQueryGidFail, "null GID")
	}
	return gid, nil
}

// rawPD owns an allocated protection domain. Its lifetime is bounded by
// the context it was allocated from, so it must be released first.
type rawPD struct {
	v verbs.Verbs
	h verbs.PDHandle
}

// allocPD allocates a protection domain on ctx, mapping failure to
// IBAllocPDFail.
func allocPD(v verbs.Verbs, ctx *rawContext) (*rawPD, error) {
	h, err := v.AllocPD(ctx.h)
	if err != nil {
		return nil, ibverr.Wrap(ibverr.IBAllocPDFail, err)
	}
	return &rawPD{v: v, h: h}, nil
}

// Close releases the protection domain. Failures are swallowed, as for
// context close.
func (p *rawPD) Close() {
	_ = p.v.DeallocPD(p.h)
}
