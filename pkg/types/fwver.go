package types

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"
)

// FwVerLen is the fixed size of the firmware version buffer, matching
// the fw_ver field of the device attribute block.
const FwVerLen = 64

// FwVer holds a firmware version string in a fixed 64-byte buffer.
// The content is NUL-terminated unless it fills the whole buffer.
type FwVer [FwVerLen]byte

// FwVerFromString copies at most 63 bytes of s into a zeroed buffer so
// the result is always NUL-terminated. Longer input is truncated.
func FwVerFromString(s string) FwVer {
	var fw FwVer
	copy(fw[:FwVerLen-1], s)
	return fw
}

// String returns the content up to the first NUL byte, or the full buffer
// if no NUL is present. Invalid UTF-8 renders as "<invalid>".
func (fw FwVer) String() string {
	n := bytes.IndexByte(fw[:], 0)
	if n < 0 {
		n = FwVerLen
	}
	if !utf8.Valid(fw[:n]) {
		return "<invalid>"
	}
	return string(fw[:n])
}

// MarshalJSON encodes the firmware version as a string.
func (fw FwVer) MarshalJSON() ([]byte, error) {
	return json.Marshal(fw.String())
}

// UnmarshalJSON decodes a firmware version string, truncating to 63 bytes.
func (fw *FwVer) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*fw = FwVerFromString(s)
	return nil
}
