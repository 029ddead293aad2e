package types

import "fmt"

// WCType tags the kind of work request a completion belongs to.
type WCType uint8

const (
	// WCRecv marks a receive work completion.
	WCRecv WCType = 0
	// WCSendData marks a plain send work completion.
	WCSendData WCType = 1
	// WCSendImm marks a send-with-immediate work completion.
	WCSendImm WCType = 2
)

func (t WCType) String() string {
	switch t {
	case WCRecv:
		return "Recv"
	case WCSendData:
		return "SendData"
	case WCSendImm:
		return "SendImm"
	default:
		return fmt.Sprintf("WCType(%d)", uint8(t))
	}
}

// WRID packs a work-request type and a caller-supplied correlation ID into
// a single 64-bit value so that completions can be matched back to the
// requests that produced them. Bits 63:62 hold the WCType, bits 61:0 the ID.
type WRID uint64

const (
	// WRIDTypeBits is the bit position where the type tag starts.
	WRIDTypeBits = 62
	// WRIDTypeMask selects the type tag bits of a WRID.
	WRIDTypeMask uint64 = ((1 << (64 - WRIDTypeBits)) - 1) << WRIDTypeBits
)

// NewWRID packs wcType and id into a WRID. The id must fit in 62 bits;
// violating that is a caller contract violation and panics.
func NewWRID(wcType WCType, id uint64) WRID {
	if id&WRIDTypeMask != 0 {
		panic(fmt.Sprintf("wrid: id %#x overflows 62 bits", id))
	}
	return WRID(uint64(wcType)<<WRIDTypeBits | id)
}

// RecvWRID builds a WRID for a receive work request.
func RecvWRID(id uint64) WRID { return NewWRID(WCRecv, id) }

// SendDataWRID builds a WRID for a plain send work request.
func SendDataWRID(id uint64) WRID { return NewWRID(WCSendData, id) }

// SendImmWRID builds a WRID for a send-with-immediate work request.
func SendImmWRID(id uint64) WRID { return NewWRID(WCSendImm, id) }

// Type extracts the work-request type tag.
func (w WRID) Type() WCType {
	return WCType((uint64(w) & WRIDTypeMask) >> WRIDTypeBits)
}

// ID extracts the 62-bit correlation ID.
func (w WRID) ID() uint64 {
	return uint64(w) &^ WRIDTypeMask
}

// String renders the WRID in "<Type>(<id>)" debug form.
func (w WRID) String() string {
	return fmt.Sprintf("%s(%d)", w.Type(), w.ID())
}
