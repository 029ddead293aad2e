package device

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rdmakit/ibscan/pkg/ibverr"
	"github.com/rdmakit/ibscan/pkg/types"
)

// Sysfs GID type sentinel strings, compared byte-exact including the
// trailing newline.
const (
	gidTypeIBRoCEv1 = "IB/RoCE v1\n"
	gidTypeRoCEv2   = "RoCE v2\n"
)

// classifyGid determines the transport type of one GID table entry by
// reading <ibdevPath>/ports/<port>/gid_attrs/types/<index>.
//
// The "IB/RoCE v1" sentinel is ambiguous between native InfiniBand and
// legacy RoCE; the port's link layer is the only signal that tells them
// apart. The RoCEv2 sentinel is unambiguous, and any other content is
// preserved as-is (trimmed) so future classification strings pass through.
func classifyGid(ibdevPath string, port uint8, index uint16, linkLayer types.LinkLayer) (types.GidType, error) {
	path := filepath.Join(ibdevPath, "ports", strconv.Itoa(int(port)), "gid_attrs", "types", strconv.Itoa(int(index)))
	data, err := os.ReadFile(path)
	if err != nil {
		return "", ibverr.Wrap(ibverr.IBQueryGidTypeFail, err)
	}

	switch content := string(data); content {
	case gidTypeIBRoCEv1:
		switch linkLayer {
		case types.LinkLayerInfiniBand:
			return types.GidTypeIB, nil
		case types.LinkLayerEthernet:
			return types.GidTypeRoCEv1, nil
		default:
			return types.GidType(strings.TrimSpace(content)), nil
		}
	case gidTypeRoCEv2:
		return types.GidTypeRoCEv2, nil
	default:
		return types.GidType(strings.TrimSpace(content)), nil
	}
}
