package device

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/rdmakit/ibscan/pkg/types"
	"github.com/rdmakit/ibscan/pkg/verbs"
)

// Device is an opened RDMA device. It exclusively owns a context and a
// protection domain allocated from that context, and carries a DeviceInfo
// snapshot refreshed by UpdateAttr.
//
// A Device is safe for concurrent read access once constructed. UpdateAttr
// mutates the snapshot and needs external synchronization if called
// concurrently.
type Device struct {
	pd        *rawPD
	ctx       *rawContext
	info      DeviceInfo
	closeOnce sync.Once
}

// openDevice opens the device behind h, allocates its protection domain,
// and populates the attribute snapshot. On any failure the resources
// acquired so far are released before returning.
func openDevice(v verbs.Verbs, h verbs.DeviceHandle, index int, config *DeviceConfig) (*Device, error) {
	name := v.DeviceName(h)
	guid := v.DeviceGUID(h)
	ibdevPath := v.DevicePath(h)

	ctx, err := openContext(v, h)
	if err != nil {
		return nil, err
	}
	pd, err := allocPD(v, ctx)
	if err != nil {
		ctx.Close()
		return nil, err
	}

	d := &Device{
		pd:  pd,
		ctx: ctx,
		info: DeviceInfo{
			Index:     index,
			Name:      name,
			Guid:      guid,
			IbdevPath: ibdevPath,
		},
	}
	if err := d.UpdateAttr(config); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// UpdateAttr re-queries device and port attributes, replacing the snapshot
// in place without reopening the context or protection domain. Per-GID
// query and classification failures skip that entry; device and port query
// failures abort the refresh.
func (d *Device) UpdateAttr(config *DeviceConfig) error {
	deviceAttr, err := d.ctx.queryDevice()
	if err != nil {
		return err
	}

	ports := make([]Port, 0, deviceAttr.PhysPortCnt)
	for portNum := uint8(1); portNum <= deviceAttr.PhysPortCnt; portNum++ {
		portAttr, err := d.ctx.queryPort(portNum)
		if err != nil {
			return err
		}
		if config.SkipInactivePort && !portAttr.State.IsActive() {
			log.Debugf("device %s: skipping port %d in state %s", d.info.Name, portNum, portAttr.State)
			continue
		}
		ports = append(ports, Port{
			PortNum:  portNum,
			PortAttr: portAttr,
			Gids:     d.collectPortGids(portNum, &portAttr, config),
		})
	}

	d.info.DeviceAttr = deviceAttr
	d.info.Ports = ports
	return nil
}

// collectPortGids walks the port's GID table and returns the entries that
// survive classification and filtering.
func (d *Device) collectPortGids(portNum uint8, portAttr *verbs.PortAttr, config *DeviceConfig) []Gid {
	gids := make([]Gid, 0, portAttr.GidTblLen)
	for index := uint16(0); int(index) < portAttr.GidTblLen; index++ {
		gid, err := d.ctx.queryGid(portNum, index)
		if err != nil {
			// Unpopulated or unreadable table slot.
			continue
		}
		gidType, err := classifyGid(d.info.IbdevPath, portNum, index, portAttr.LinkLayer)
		if err != nil {
			log.Debugf("device %s: port %d gid %d: %v", d.info.Name, portNum, index, err)
			continue
		}

		if !config.matchGidType(gidType) {
			continue
		}
		if config.RoCEv2SkipLinkLocalAddr && gidType == types.GidTypeRoCEv2 && gid.IsLinkLocalUnicast() {
			continue
		}

		gids = append(gids, Gid{Index: index, Gid: gid, GidType: gidType})
	}
	return gids
}

// Index returns the device's zero-based position in the filtered result.
func (d *Device) Index() int {
	return d.info.Index
}

// Info returns the device's attribute snapshot.
func (d *Device) Info() *DeviceInfo {
	return &d.info
}

// ContextHandle exposes the underlying context handle for collaborators
// that build data-path resources. Valid until Close.
func (d *Device) ContextHandle() verbs.ContextHandle {
	return d.ctx.h
}

// PDHandle exposes the underlying protection domain handle. Valid until
// Close.
func (d *Device) PDHandle() verbs.PDHandle {
	return d.pd.h
}

// Close releases the device's resources exactly once. The protection
// domain goes first: its lifetime is bounded by the context it was
// allocated from.
func (d *Device) Close() {
	d.closeOnce.Do(func() {
		d.pd.Close()
		d.ctx.Close()
	})
}
