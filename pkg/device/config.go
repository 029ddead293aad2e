package device

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/rdmakit/ibscan/pkg/types"
)

// DeviceConfig holds the filter criteria applied during enumeration.
// Empty filter sets match everything. A config is immutable once passed
// to Open; build one with NewConfigBuilder or LoadConfig.
type DeviceConfig struct {
	// DeviceFilter restricts enumeration to the named devices.
	DeviceFilter map[string]struct{}
	// GidTypeFilter restricts GIDs to the listed transport types.
	GidTypeFilter map[types.GidType]struct{}
	// SkipInactivePort omits ports that are not ACTIVE.
	SkipInactivePort bool
	// RoCEv2SkipLinkLocalAddr omits link-local RoCEv2 addresses.
	RoCEv2SkipLinkLocalAddr bool
}

// matchDevice reports whether the name passes the device filter.
func (c *DeviceConfig) matchDevice(name string) bool {
	if len(c.DeviceFilter) == 0 {
		return true
	}
	_, ok := c.DeviceFilter[name]
	return ok
}

// matchGidType reports whether the type passes the GID type filter.
func (c *DeviceConfig) matchGidType(t types.GidType) bool {
	if len(c.GidTypeFilter) == 0 {
		return true
	}
	_, ok := c.GidTypeFilter[t]
	return ok
}

// ConfigBuilder assembles a DeviceConfig fluently.
type ConfigBuilder struct {
	config DeviceConfig
}

// NewConfigBuilder returns a builder for an all-pass config.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

// Device adds one device name to the filter.
func (b *ConfigBuilder) Device(name string) *ConfigBuilder {
	if b.config.DeviceFilter == nil {
		b.config.DeviceFilter = make(map[string]struct{})
	}
	b.config.DeviceFilter[name] = struct{}{}
	return b
}

// Devices adds several device names to the filter.
func (b *ConfigBuilder) Devices(names ...string) *ConfigBuilder {
	for _, name := range names {
		b.Device(name)
	}
	return b
}

// GidType adds one transport type to the filter.
func (b *ConfigBuilder) GidType(t types.GidType) *ConfigBuilder {
	if b.config.GidTypeFilter == nil {
		b.config.GidTypeFilter = make(map[types.GidType]struct{})
	}
	b.config.GidTypeFilter[t] = struct{}{}
	return b
}

// GidTypes adds several transport types to the filter.
func (b *ConfigBuilder) GidTypes(ts ...types.GidType) *ConfigBuilder {
	for _, t := range ts {
		b.GidType(t)
	}
	return b
}

// SkipInactive sets whether inactive ports are omitted.
func (b *ConfigBuilder) SkipInactive(skip bool) *ConfigBuilder {
	b.config.SkipInactivePort = skip
	return b
}

// SkipLinkLocal sets whether link-local RoCEv2 addresses are omitted.
func (b *ConfigBuilder) SkipLinkLocal(skip bool) *ConfigBuilder {
	b.config.RoCEv2SkipLinkLocalAddr = skip
	return b
}

// Build returns the assembled config.
func (b *ConfigBuilder) Build() *DeviceConfig {
	return &b.config
}

// configFile is the on-disk YAML/JSON shape of a DeviceConfig.
type configFile struct {
	Devices       []string `json:"devices,omitempty"`
	GidTypes      []string `json:"gid_types,omitempty"`
	SkipInactive  bool     `json:"skip_inactive,omitempty"`
	SkipLinkLocal bool     `json:"skip_link_local,omitempty"`
}

// LoadConfig reads a DeviceConfig from a YAML (or JSON) file.
func LoadConfig(path string) (*DeviceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}
	var cf configFile
	if err := yaml.UnmarshalStrict(data, &cf); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	b := NewConfigBuilder().
		Devices(cf.Devices...).
		SkipInactive(cf.SkipInactive).
		SkipLinkLocal(cf.SkipLinkLocal)
	for _, t := range cf.GidTypes {
		b.GidType(types.GidType(t))
	}
	return b.Build(), nil
}
