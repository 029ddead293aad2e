package types

import "encoding/json"

// LinkLayer is the physical layer protocol of an RDMA port, matching the
// ibv_link_layer values from libibverbs:
//
//	IBV_LINK_LAYER_UNSPECIFIED = 0
//	IBV_LINK_LAYER_INFINIBAND  = 1
//	IBV_LINK_LAYER_ETHERNET    = 4
type LinkLayer uint8

const (
	LinkLayerUnspecified LinkLayer = 0
	LinkLayerInfiniBand  LinkLayer = 1
	LinkLayerEthernet    LinkLayer = 4
)

// LinkLayerFromUint8 maps a raw attribute value to a LinkLayer.
// Unknown values map to LinkLayerUnspecified; it never fails.
func LinkLayerFromUint8(v uint8) LinkLayer {
	switch LinkLayer(v) {
	case LinkLayerInfiniBand, LinkLayerEthernet:
		return LinkLayer(v)
	default:
		return LinkLayerUnspecified
	}
}

// String returns the canonical sysfs spelling of the link layer.
func (l LinkLayer) String() string {
	switch l {
	case LinkLayerInfiniBand:
		return "InfiniBand"
	case LinkLayerEthernet:
		return "Ethernet"
	default:
		return "Unspecified"
	}
}

// IsInfiniBand reports whether the port runs native InfiniBand.
func (l LinkLayer) IsInfiniBand() bool { return l == LinkLayerInfiniBand }

// IsEthernet reports whether the port runs Ethernet (RoCE).
func (l LinkLayer) IsEthernet() bool { return l == LinkLayerEthernet }

// MarshalJSON encodes the link layer as its name.
func (l LinkLayer) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a link layer name; unknown names map to Unspecified.
func (l *LinkLayer) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "InfiniBand":
		*l = LinkLayerInfiniBand
	case "Ethernet":
		*l = LinkLayerEthernet
	default:
		*l = LinkLayerUnspecified
	}
	return nil
}
