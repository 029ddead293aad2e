// Package device enumerates RDMA devices through a verbs.Verbs
// implementation, applies the configured filters, and assembles the
// resulting inventory. It owns the scoped wrappers for the device list,
// device contexts, and protection domains, and the sysfs-based GID
// transport classification.
package device

import (
	log "github.com/sirupsen/logrus"

	"github.com/rdmakit/ibscan/pkg/ibverr"
	"github.com/rdmakit/ibscan/pkg/verbs"
)

// Devices is the set of devices that survived enumeration, in list order.
// Callers must Close it to release the underlying contexts and protection
// domains.
type Devices []*Device

// Available enumerates all devices with an all-pass configuration.
func Available(v verbs.Verbs) (Devices, error) {
	return Open(v, NewConfigBuilder().Build())
}

// Open enumerates devices through v and applies config's filters.
//
// Devices failing the name filter are skipped before being opened. Any
// open or query failure on a surviving device aborts the whole
// enumeration: partial inventories are not returned, and devices opened
// so far are closed. An empty result is IBDeviceNotFound.
func Open(v verbs.Verbs, config *DeviceConfig) (Devices, error) {
	list, err := openDeviceList(v)
	if err != nil {
		return nil, err
	}
	defer list.Close()

	var devices Devices
	for _, h := range list.handles {
		// Name check first: reading the name is cheap, opening is not.
		if name := v.DeviceName(h); !config.matchDevice(name) {
			log.Debugf("skipping device %s: filtered by name", name)
			continue
		}

		d, err := openDevice(v, h, len(devices), config)
		if err != nil {
			devices.Close()
			return nil, err
		}
		devices = append(devices, d)
	}

	if len(devices) == 0 {
		return nil, ibverr.New(ibverr.IBDeviceNotFound, "")
	}
	return devices, nil
}

// Close releases every device in the set.
func (ds Devices) Close() {
	for _, d := range ds {
		d.Close()
	}
}

// Infos returns the attribute snapshots of all devices.
func (ds Devices) Infos() []*DeviceInfo {
	infos := make([]*DeviceInfo, 0, len(ds))
	for _, d := range ds {
		infos = append(infos, d.Info())
	}
	return infos
}
