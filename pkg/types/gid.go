package types

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/netip"
)

// Gid is a 128-bit Global Identifier addressing a port on an RDMA fabric,
// stored in network byte order. The upper 64 bits are the subnet prefix
// and the lower 64 bits the interface ID.
type Gid [16]byte

// GidFromBytes builds a Gid from raw network-order bytes.
func GidFromBytes(b [16]byte) Gid {
	return Gid(b)
}

// ParseGid parses a GID from its IPv6 textual form.
func ParseGid(s string) (Gid, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is6() {
		return Gid{}, fmt.Errorf("invalid GID %q: not an IPv6-form address", s)
	}
	return Gid(addr.As16()), nil
}

// AsIPv6 returns the GID viewed as an IPv6 address.
func (g Gid) AsIPv6() netip.Addr {
	return netip.AddrFrom16(g)
}

// SubnetPrefix returns the upper 64 bits in host order.
func (g Gid) SubnetPrefix() uint64 {
	return binary.BigEndian.Uint64(g[:8])
}

// InterfaceID returns the lower 64 bits in host order.
func (g Gid) InterfaceID() uint64 {
	return binary.BigEndian.Uint64(g[8:])
}

// IsNull reports whether the GID is the null address (zero interface ID).
func (g Gid) IsNull() bool {
	return g.InterfaceID() == 0
}

// IsLinkLocalUnicast reports whether the GID is an IPv6 link-local
// unicast address (fe80::/10).
func (g Gid) IsLinkLocalUnicast() bool {
	return g.AsIPv6().IsLinkLocalUnicast()
}

// String renders the GID in IPv6 form.
func (g Gid) String() string {
	return g.AsIPv6().String()
}

// MarshalJSON encodes the GID in IPv6 form.
func (g Gid) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.String())
}

// UnmarshalJSON decodes a GID from IPv6 form.
func (g *Gid) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseGid(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
