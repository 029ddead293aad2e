// Package types defines the compact value types shared across the ibscan
// library: device GUIDs, firmware version strings, link layers, GID values
// and their transport classification, port states, and the bit-packed work
// request identifier used to match completions to requests.
//
// Every type has a stable textual form and JSON encoding so the inventory
// can be serialized and read back without loss.
package types
