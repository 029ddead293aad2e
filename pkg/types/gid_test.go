package types

import (
	"encoding/json"
	"testing"
)

func TestGidParts(t *testing.T) {
	g := GidFromBytes([16]byte{
		0xfe, 0x80, 0, 0, 0, 0, 0, 0,
		0x00, 0x02, 0xc9, 0x03, 0x00, 0xa1, 0xb2, 0xc3,
	})
	if g.SubnetPrefix() != 0xfe80000000000000 {
		t.Errorf("SubnetPrefix() = %#x", g.SubnetPrefix())
	}
	if g.InterfaceID() != 0x0002c90300a1b2c3 {
		t.Errorf("InterfaceID() = %#x", g.InterfaceID())
	}
}

func TestGidIsNull(t *testing.T) {
	var null Gid
	if !null.IsNull() {
		t.Error("zero GID should be null")
	}
	// Non-zero subnet prefix alone is still null: only the interface ID counts.
	prefixOnly := GidFromBytes([16]byte{0xfe, 0x80})
	if !prefixOnly.IsNull() {
		t.Error("GID with zero interface ID should be null")
	}
	var g Gid
	g[15] = 1
	if g.IsNull() {
		t.Error("GID with non-zero interface ID should not be null")
	}
}

func TestGidLinkLocal(t *testing.T) {
	linkLocal := GidFromBytes([16]byte{
		0xfe, 0x80, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 1,
	})
	if !linkLocal.IsLinkLocalUnicast() {
		t.Error("fe80::1 should be link-local unicast")
	}
	global := GidFromBytes([16]byte{
		0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 1,
	})
	if global.IsLinkLocalUnicast() {
		t.Error("2001:db8::1 should not be link-local unicast")
	}
}

func TestGidStringAndParse(t *testing.T) {
	g := GidFromBytes([16]byte{
		0xfe, 0x80, 0, 0, 0, 0, 0, 0,
		0x00, 0x02, 0xc9, 0x03, 0x00, 0xa1, 0xb2, 0xc3,
	})
	s := g.String()
	if s != "fe80::2:c903:a1:b2c3" {
		t.Errorf("String() = %q", s)
	}
	parsed, err := ParseGid(s)
	if err != nil {
		t.Fatalf("ParseGid(%q): %v", s, err)
	}
	if parsed != g {
		t.Errorf("round trip mismatch: %v vs %v", parsed, g)
	}

	// Sysfs spells GIDs fully expanded; that must parse to the same value.
	parsed, err = ParseGid("fe80:0000:0000:0000:0002:c903:00a1:b2c3")
	if err != nil {
		t.Fatalf("ParseGid expanded: %v", err)
	}
	if parsed != g {
		t.Errorf("expanded form mismatch: %v vs %v", parsed, g)
	}
}

func TestParseGidInvalid(t *testing.T) {
	for _, s := range []string{"", "not-an-address", "192.168.0.1", "fe80::g"} {
		if _, err := ParseGid(s); err == nil {
			t.Errorf("ParseGid(%q): expected error", s)
		}
	}
}

func TestGidJSON(t *testing.T) {
	g := GidFromBytes([16]byte{0xfe, 0x80, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1})
	data, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"fe80::1"` {
		t.Errorf("Marshal = %s", data)
	}
	var back Gid
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back != g {
		t.Errorf("round trip mismatch")
	}
}
