package types

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Guid is the 64-bit Globally Unique Identifier of an RDMA device,
// stored in network byte order exactly as reported by the hardware.
type Guid [8]byte

// GuidFromUint64 builds a Guid from a host-order value.
func GuidFromUint64(v uint64) Guid {
	var g Guid
	binary.BigEndian.PutUint64(g[:], v)
	return g
}

// GuidFromBytes builds a Guid from raw network-order bytes.
func GuidFromBytes(b [8]byte) Guid {
	return Guid(b)
}

// Uint64 returns the GUID as a host-order integer.
func (g Guid) Uint64() uint64 {
	return binary.BigEndian.Uint64(g[:])
}

// IsZero reports whether the GUID is all zeroes.
func (g Guid) IsZero() bool {
	return g == Guid{}
}

// String formats the GUID as four colon-separated 4-hex-digit groups,
// e.g. "506b:0b03:0039:e8a4".
func (g Guid) String() string {
	v := g.Uint64()
	return fmt.Sprintf("%04x:%04x:%04x:%04x",
		(v>>48)&0xFFFF,
		(v>>32)&0xFFFF,
		(v>>16)&0xFFFF,
		v&0xFFFF)
}

// ParseGuid parses the textual GUID form produced by String. Each of the
// four groups may hold 1 to 4 hex digits, case-insensitive.
func ParseGuid(s string) (Guid, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return Guid{}, fmt.Errorf("invalid GUID format %q: want 4 colon-separated groups, got %d", s, len(parts))
	}
	var v uint64
	for i, part := range parts {
		group, err := strconv.ParseUint(part, 16, 16)
		if err != nil {
			return Guid{}, fmt.Errorf("invalid GUID group %q in %q: %w", part, s, err)
		}
		v |= group << (48 - i*16)
	}
	return GuidFromUint64(v), nil
}

// MarshalJSON encodes the GUID as its textual form.
func (g Guid) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.String())
}

// UnmarshalJSON decodes the textual GUID form.
func (g *Guid) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseGuid(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
