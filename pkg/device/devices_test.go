package device

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rdmakit/ibscan/pkg/ibverr"
	"github.com/rdmakit/ibscan/pkg/types"
)

const (
	sentinelV1 = "IB/RoCE v1\n"
	sentinelV2 = "RoCE v2\n"
)

func isKind(err error, kind ibverr.Kind) bool {
	return errors.Is(err, ibverr.New(kind, ""))
}

func TestAvailableOpensEverything(t *testing.T) {
	d0 := newFakeDevice(t, "mlx5_0", 0x0002c90300a1b2c3)
	d0.addPort(1, types.PortActive, types.LinkLayerInfiniBand)
	d0.addGid(t, 1, 0, "fe80::2:c903:a1:b2c3", sentinelV1)
	d1 := newFakeDevice(t, "mlx5_1", 0x0002c90300a1b2c4)
	d1.addPort(1, types.PortActive, types.LinkLayerEthernet)
	d1.addGid(t, 1, 0, "fe80::2:c903:a1:b2c4", sentinelV2)

	v := newFakeVerbs(d0, d1)
	devices, err := Available(v)
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	defer devices.Close()

	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(devices))
	}
	for i, d := range devices {
		if d.Index() != i {
			t.Errorf("device %d has index %d", i, d.Index())
		}
	}
	if devices[0].Info().Name != "mlx5_0" || devices[1].Info().Name != "mlx5_1" {
		t.Errorf("names = %s, %s", devices[0].Info().Name, devices[1].Info().Name)
	}
	if devices[0].Info().Guid.Uint64() != 0x0002c90300a1b2c3 {
		t.Errorf("guid = %v", devices[0].Info().Guid)
	}
	if v.opCount("free_list") != 1 {
		t.Error("device list should be freed after enumeration")
	}
}

func TestOpenNameFilterSkipsBeforeOpening(t *testing.T) {
	d0 := newFakeDevice(t, "mlx5_0", 1)
	d0.addPort(1, types.PortActive, types.LinkLayerInfiniBand)
	// Opening mlx5_1 would fail; the name filter must keep it shut.
	d1 := newFakeDevice(t, "mlx5_1", 2)
	d1.openErr = fmt.Errorf("injected open failure")

	v := newFakeVerbs(d0, d1)
	devices, err := Open(v, NewConfigBuilder().Device("mlx5_0").Build())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer devices.Close()

	if len(devices) != 1 || devices[0].Info().Name != "mlx5_0" {
		t.Fatalf("unexpected result: %d devices", len(devices))
	}
	if v.opCount("open mlx5_1") != 0 {
		t.Error("filtered device must not be opened")
	}
}

func TestOpenNoMatchIsDeviceNotFound(t *testing.T) {
	d0 := newFakeDevice(t, "mlx5_0", 1)
	d0.addPort(1, types.PortActive, types.LinkLayerInfiniBand)

	v := newFakeVerbs(d0)
	_, err := Open(v, NewConfigBuilder().Device("mlx5_9").Build())
	if !isKind(err, ibverr.IBDeviceNotFound) {
		t.Errorf("err = %v, want IBDeviceNotFound", err)
	}
	if v.opCount("open") != 0 {
		t.Error("no device should have been opened")
	}
}

func TestOpenEmptyHostIsDeviceNotFound(t *testing.T) {
	_, err := Available(newFakeVerbs())
	if !isKind(err, ibverr.IBDeviceNotFound) {
		t.Errorf("err = %v, want IBDeviceNotFound", err)
	}
}

func TestOpenFailureClosesEarlierDevices(t *testing.T) {
	d0 := newFakeDevice(t, "mlx5_0", 1)
	d0.addPort(1, types.PortActive, types.LinkLayerInfiniBand)
	d1 := newFakeDevice(t, "mlx5_1", 2)
	d1.openErr = fmt.Errorf("injected open failure")

	v := newFakeVerbs(d0, d1)
	_, err := Open(v, NewConfigBuilder().Build())
	if !isKind(err, ibverr.IBOpenDeviceFail) {
		t.Fatalf("err = %v, want IBOpenDeviceFail", err)
	}
	if v.opCount("dealloc_pd mlx5_0") != 1 || v.opCount("close_device mlx5_0") != 1 {
		t.Errorf("first device not torn down: ops = %v", v.ops)
	}
	if v.opCount("free_list") != 1 {
		t.Error("device list should be freed on failure")
	}
}

func TestOpenQueryFailureAborts(t *testing.T) {
	d0 := newFakeDevice(t, "mlx5_0", 1)
	d0.addPort(1, types.PortActive, types.LinkLayerInfiniBand)
	d0.queryDeviceErr = fmt.Errorf("injected query failure")

	v := newFakeVerbs(d0)
	_, err := Open(v, NewConfigBuilder().Build())
	if !isKind(err, ibverr.IBQueryDeviceFail) {
		t.Fatalf("err = %v, want IBQueryDeviceFail", err)
	}
	// The half-opened device must not leak.
	if v.opCount("dealloc_pd mlx5_0") != 1 || v.opCount("close_device mlx5_0") != 1 {
		t.Errorf("device not torn down: ops = %v", v.ops)
	}
}

func TestOpenAllocPDFailureClosesContext(t *testing.T) {
	d0 := newFakeDevice(t, "mlx5_0", 1)
	d0.addPort(1, types.PortActive, types.LinkLayerInfiniBand)
	d0.allocPDErr = fmt.Errorf("injected alloc failure")

	v := newFakeVerbs(d0)
	_, err := Open(v, NewConfigBuilder().Build())
	if !isKind(err, ibverr.IBAllocPDFail) {
		t.Fatalf("err = %v, want IBAllocPDFail", err)
	}
	if v.opCount("close_device mlx5_0") != 1 {
		t.Errorf("context not closed after PD failure: ops = %v", v.ops)
	}
}

func TestOpenSkipInactivePorts(t *testing.T) {
	d0 := newFakeDevice(t, "mlx5_0", 1)
	d0.addPort(1, types.PortActive, types.LinkLayerInfiniBand)
	d0.addGid(t, 1, 0, "fe80::1", sentinelV1)
	d0.addPort(2, types.PortDown, types.LinkLayerInfiniBand)
	d0.addGid(t, 2, 0, "fe80::2", sentinelV1)

	v := newFakeVerbs(d0)
	devices, err := Open(v, NewConfigBuilder().SkipInactive(true).Build())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer devices.Close()

	ports := devices[0].Info().Ports
	if len(ports) != 1 || ports[0].PortNum != 1 {
		t.Fatalf("ports = %+v, want only port 1", ports)
	}
}

func TestOpenGidTypeFilter(t *testing.T) {
	d0 := newFakeDevice(t, "mlx5_0", 1)
	d0.addPort(1, types.PortActive, types.LinkLayerEthernet)
	d0.addGid(t, 1, 0, "fe80::aa", sentinelV1)
	d0.addGid(t, 1, 1, "2001:db8::aa", sentinelV2)

	v := newFakeVerbs(d0)
	devices, err := Open(v, NewConfigBuilder().GidType(types.GidTypeRoCEv2).Build())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer devices.Close()

	gids := devices[0].Info().Ports[0].Gids
	if len(gids) != 1 {
		t.Fatalf("gids = %+v, want 1 entry", gids)
	}
	if gids[0].GidType != types.GidTypeRoCEv2 || gids[0].Index != 1 {
		t.Errorf("surviving gid = %+v", gids[0])
	}
}

func TestOpenSkipLinkLocalRoCEv2Only(t *testing.T) {
	d0 := newFakeDevice(t, "mlx5_0", 1)
	d0.addPort(1, types.PortActive, types.LinkLayerEthernet)
	// Link-local RoCEv2 is dropped; link-local RoCEv1 stays.
	d0.addGid(t, 1, 0, "fe80::aa", sentinelV2)
	d0.addGid(t, 1, 1, "fe80::bb", sentinelV1)
	d0.addGid(t, 1, 2, "2001:db8::cc", sentinelV2)

	v := newFakeVerbs(d0)
	devices, err := Open(v, NewConfigBuilder().SkipLinkLocal(true).Build())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer devices.Close()

	gids := devices[0].Info().Ports[0].Gids
	if len(gids) != 2 {
		t.Fatalf("gids = %+v, want 2 entries", gids)
	}
	if gids[0].GidType != types.GidTypeRoCEv1 || gids[0].Index != 1 {
		t.Errorf("gids[0] = %+v", gids[0])
	}
	if gids[1].GidType != types.GidTypeRoCEv2 || gids[1].Index != 2 {
		t.Errorf("gids[1] = %+v", gids[1])
	}
}

func TestOpenSkipsUnpopulatedAndUnclassifiableSlots(t *testing.T) {
	d0 := newFakeDevice(t, "mlx5_0", 1)
	d0.addPort(1, types.PortActive, types.LinkLayerEthernet)
	d0.addGid(t, 1, 2, "2001:db8::cc", sentinelV2)
	// Slots 0 and 1 stay null; widen the table so they get visited.
	d0.ports[1].attr.GidTblLen = 4
	// Slot 3 has a GID but no readable type file.
	parsed, err := types.ParseGid("2001:db8::dd")
	if err != nil {
		t.Fatal(err)
	}
	d0.ports[1].gids[3] = parsed

	v := newFakeVerbs(d0)
	devices, err := Open(v, NewConfigBuilder().Build())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer devices.Close()

	gids := devices[0].Info().Ports[0].Gids
	if len(gids) != 1 || gids[0].Index != 2 {
		t.Fatalf("gids = %+v, want only index 2", gids)
	}
}

// The full pipeline: two devices, one filtered by name; the survivor has
// an inactive port and a mix of native and RoCE addresses. With all
// filters on, exactly one port with one native-fabric GID remains.
func TestOpenEndToEndScenario(t *testing.T) {
	d0 := newFakeDevice(t, "mlx5_0", 0x0002c90300a1b2c3)
	d0.addPort(1, types.PortActive, types.LinkLayerInfiniBand)
	d0.addGid(t, 1, 0, "fe80::2:c903:a1:b2c3", sentinelV1)
	d0.addGid(t, 1, 1, "fe80::2:c903:a1:b2c4", sentinelV2)
	d0.addPort(2, types.PortDown, types.LinkLayerInfiniBand)
	d0.addGid(t, 2, 0, "fe80::2:c903:a1:b2c5", sentinelV1)
	d1 := newFakeDevice(t, "mlx5_1", 0x0002c90300a1b2d0)
	d1.addPort(1, types.PortActive, types.LinkLayerEthernet)

	v := newFakeVerbs(d0, d1)
	config := NewConfigBuilder().
		Device("mlx5_0").
		SkipInactive(true).
		SkipLinkLocal(true).
		Build()
	devices, err := Open(v, config)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer devices.Close()

	if len(devices) != 1 {
		t.Fatalf("got %d devices, want 1", len(devices))
	}
	info := devices[0].Info()
	if info.Name != "mlx5_0" {
		t.Errorf("Name = %q", info.Name)
	}
	if len(info.Ports) != 1 || info.Ports[0].PortNum != 1 {
		t.Fatalf("ports = %+v, want only port 1", info.Ports)
	}
	gids := info.Ports[0].Gids
	if len(gids) != 1 {
		t.Fatalf("gids = %+v, want 1 entry", gids)
	}
	if gids[0].GidType != types.GidTypeIB || gids[0].Index != 0 {
		t.Errorf("surviving gid = %+v, want native IB at index 0", gids[0])
	}
}
