// Package cdi exports enumerated RDMA devices as CDI (Container Device
// Interface) spec files, so an inventory produced by the device package
// can be handed to a container runtime.
package cdi

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Mellanox/rdmamap"
	log "github.com/sirupsen/logrus"

	cdiapi "tags.cncf.io/container-device-interface/pkg/cdi"
	cdiparser "tags.cncf.io/container-device-interface/pkg/parser"
	cdiSpecs "tags.cncf.io/container-device-interface/specs-go"

	"github.com/rdmakit/ibscan/pkg/device"

	"sigs.k8s.io/yaml"
)

const (
	// FilePrefix is prepended to all spec files written by this tool
	// to enable safe cleanup without affecting specs from other sources.
	FilePrefix = "ibscan"

	// DefaultOutputDir is the standard CDI spec directory.
	DefaultOutputDir = "/etc/cdi"

	// DefaultPrefix is used when no --prefix is provided.
	DefaultPrefix = "rdma"
)

// SpecFileName returns the deterministic file name for a given prefix, name, and format.
// Format: ibscan_<prefix>_<name>.<ext>
func SpecFileName(prefix, name, format string) string {
	// Normalize: replace '/' in prefix with '_'
	safePrefix := strings.ReplaceAll(prefix, "/", "_")
	return fmt.Sprintf("%s_%s_%s.%s", FilePrefix, safePrefix, name, format)
}

// charDevicesFor returns the character device paths backing an enumerated
// device. Overridable in tests, where no real /dev/infiniband exists.
var charDevicesFor = func(devName string) []string {
	return rdmamap.GetRdmaCharDevices(devName)
}

// CreateSpec generates a CDI spec file covering the given enumerated
// devices and writes it to outputDir. Each device contributes its RDMA
// character devices as device nodes.
func CreateSpec(resourcePrefix, resourceName string, infos []*device.DeviceInfo, outputDir, format string) error {
	log.Infof("creating CDI spec for resource %q (prefix=%s)", resourceName, resourcePrefix)

	cdiDevices := make([]cdiSpecs.Device, 0, len(infos))
	for _, info := range infos {
		charDevs := charDevicesFor(info.Name)
		if len(charDevs) == 0 {
			return fmt.Errorf("no RDMA character devices found for %s", info.Name)
		}

		containerEdit := cdiSpecs.ContainerEdits{
			DeviceNodes: make([]*cdiSpecs.DeviceNode, 0, len(charDevs)),
		}
		for _, dev := range charDevs {
			containerEdit.DeviceNodes = append(containerEdit.DeviceNodes, &cdiSpecs.DeviceNode{
				Path:        dev,
				HostPath:    dev,
				Permissions: "rw",
			})
		}

		cdiDevices = append(cdiDevices, cdiSpecs.Device{
			Name:           info.Name,
			ContainerEdits: containerEdit,
		})
	}

	spec := &cdiSpecs.Spec{
		Version: cdiSpecs.CurrentVersion,
		Kind:    resourcePrefix + "/" + resourceName,
		Devices: cdiDevices,
	}

	fileName := SpecFileName(resourcePrefix, resourceName, format)
	filePath := filepath.Join(outputDir, fileName)

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("cannot create output directory %s: %w", outputDir, err)
	}

	// Validate the spec before writing
	if err := validateSpec(spec); err != nil {
		return fmt.Errorf("generated CDI spec is invalid: %w", err)
	}

	data, err := marshalSpec(spec, format)
	if err != nil {
		return fmt.Errorf("cannot marshal CDI spec: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("cannot write CDI spec file %s: %w", filePath, err)
	}

	log.Infof("CDI spec written to %s", filePath)
	return nil
}

// CreateContainerAnnotations generates CDI container annotations for the
// given devices. The returned map can be passed directly to a container
// runtime. Keys are CDI qualified names (vendor/class=deviceName).
func CreateContainerAnnotations(infos []*device.DeviceInfo, resourcePrefix, resourceKind string) (map[string]string, error) {
	if len(infos) == 0 {
		return nil, fmt.Errorf("devices list is empty")
	}

	annotations := make(map[string]string)
	for _, info := range infos {
		qn := cdiparser.QualifiedName(resourcePrefix, resourceKind, info.Name)
		// Each qualified name is its own annotation key=value pair
		annotations[qn] = qn
	}

	log.Debugf("created CDI annotations: %v", annotations)
	return annotations, nil
}

// CleanupSpecs removes CDI spec files created by this tool from dir.
// If name is empty, all specs matching the given prefix are removed.
// If name is non-empty, only the exact match is removed.
func CleanupSpecs(dir, prefix, name string, dryRun bool) ([]string, error) {
	if dir == "" {
		dir = DefaultOutputDir
	}

	safePrefix := strings.ReplaceAll(prefix, "/", "_")
	var pattern string
	if name != "" {
		// Exact match (both json and yaml)
		patternJSON := filepath.Join(dir, fmt.Sprintf("%s_%s_%s.json", FilePrefix, safePrefix, name))
		patternYAML := filepath.Join(dir, fmt.Sprintf("%s_%s_%s.yaml", FilePrefix, safePrefix, name))
		return cleanupFiles([]string{patternJSON, patternYAML}, dryRun)
	}

	// Match all specs under the given prefix, restricted to known extensions
	var matches []string
	for _, ext := range []string{"json", "yaml"} {
		pattern = filepath.Join(dir, fmt.Sprintf("%s_%s_*.%s", FilePrefix, safePrefix, ext))
		m, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob error for pattern %s: %w", pattern, err)
		}
		matches = append(matches, m...)
	}
	return cleanupFiles(matches, dryRun)
}

func cleanupFiles(paths []string, dryRun bool) ([]string, error) {
	removed := make([]string, 0)
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if dryRun {
			log.Infof("[dry-run] would remove: %s", p)
			removed = append(removed, p)
			continue
		}
		log.Infof("removing CDI spec file: %s", p)
		if err := os.Remove(p); err != nil {
			return removed, fmt.Errorf("cannot remove %s: %w", p, err)
		}
		removed = append(removed, p)
	}
	return removed, nil
}

// validateSpec performs basic validation on a CDI spec.
func validateSpec(spec *cdiSpecs.Spec) error {
	if spec.Kind == "" {
		return fmt.Errorf("spec kind must not be empty")
	}
	if len(spec.Devices) == 0 {
		return fmt.Errorf("spec must contain at least one device")
	}
	return nil
}

// marshalSpec serializes a CDI spec to JSON or YAML bytes.
func marshalSpec(spec *cdiSpecs.Spec, format string) ([]byte, error) {
	_ = cdiapi.GetDefaultCache() // ensure CDI cache is initialized

	switch strings.ToLower(format) {
	case "json":
		return json.MarshalIndent(spec, "", "  ")
	case "yaml":
		jsonData, err := json.Marshal(spec)
		if err != nil {
			return nil, err
		}
		return yaml.JSONToYAML(jsonData)
	default:
		return nil, fmt.Errorf("unsupported format %q: use json or yaml", format)
	}
}
