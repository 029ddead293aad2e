package types

// GidType classifies the transport a GID belongs to. The three well-known
// values cover native InfiniBand and the two RoCE encapsulations; any other
// value carries the raw classification string read from sysfs so that
// future kernel additions survive a round trip. Because GidType is a plain
// string, equality and map keys include that payload.
type GidType string

const (
	// GidTypeIB is a native InfiniBand GID.
	GidTypeIB GidType = "IB"
	// GidTypeRoCEv1 is an RDMA over Converged Ethernet v1 GID.
	GidTypeRoCEv1 GidType = "RoCEv1"
	// GidTypeRoCEv2 is an RDMA over Converged Ethernet v2 GID.
	GidTypeRoCEv2 GidType = "RoCEv2"
)

// Known reports whether the type is one of the recognized classifications.
func (t GidType) Known() bool {
	switch t {
	case GidTypeIB, GidTypeRoCEv1, GidTypeRoCEv2:
		return true
	}
	return false
}

func (t GidType) String() string { return string(t) }
