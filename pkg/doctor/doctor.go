// Package doctor provides RDMA environment diagnostics for enumerated
// devices. It checks character device presence, kernel modules, port
// states, associated network links, and RDMA network namespace mode.
package doctor

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Mellanox/rdmamap"
	"github.com/olekukonko/tablewriter"
	"github.com/vishvananda/netlink"

	"github.com/rdmakit/ibscan/pkg/device"
)

// Severity levels for diagnostic checks.
type Severity string

const (
	Pass Severity = "PASS"
	Warn Severity = "WARN"
	Fail Severity = "FAIL"
)

// requiredKernelModules lists the kernel modules that must be loaded
// for the RDMA stack to function.
var requiredKernelModules = []string{"ib_core", "ib_uverbs", "ib_umad", "rdma_cm", "rdma_ucm"}

// requiredCharDevices lists the character device types a usable RDMA
// device exposes under /dev/infiniband.
var requiredCharDevices = []string{"rdma_cm", "umad", "uverbs"}

// CheckResult represents one diagnostic check outcome.
type CheckResult struct {
	Check    string   `json:"check"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Device   string   `json:"device,omitempty"`
}

// Report holds all diagnostic results for a device or the whole host.
type Report struct {
	Results []CheckResult `json:"results"`
	HasWarn bool          `json:"-"`
	HasFail bool          `json:"-"`
}

// add appends a result and updates summary flags.
func (r *Report) add(cr CheckResult) {
	r.Results = append(r.Results, cr)
	switch cr.Severity {
	case Warn:
		r.HasWarn = true
	case Fail:
		r.HasFail = true
	}
}

// filtered returns results, optionally excluding PASS entries.
func (r *Report) filtered(showPass bool) []CheckResult {
	if showPass {
		return r.Results
	}
	var out []CheckResult
	for _, cr := range r.Results {
		if cr.Severity != Pass {
			out = append(out, cr)
		}
	}
	return out
}

// DiagnoseDevice runs all checks on a single enumerated RDMA device.
func DiagnoseDevice(info *device.DeviceInfo) *Report {
	report := &Report{}

	// 1. RDMA character devices — presence and required types
	charDevs := rdmamap.GetRdmaCharDevices(info.Name)
	if len(charDevs) == 0 {
		report.add(CheckResult{
			Check:    "rdma_char_devices",
			Severity: Fail,
			Message:  "No RDMA character devices found",
			Device:   info.Name,
		})
	} else if missing := missingCharDevices(charDevs); len(missing) > 0 {
		report.add(CheckResult{
			Check:    "rdma_char_devices",
			Severity: Fail,
			Message:  fmt.Sprintf("Found %d device(s) but missing required types: %s", len(charDevs), strings.Join(missing, ", ")),
			Device:   info.Name,
		})
	} else {
		report.add(CheckResult{
			Check:    "rdma_char_devices",
			Severity: Pass,
			Message:  fmt.Sprintf("All required RDMA devices present (%d): %s", len(charDevs), strings.Join(charDevs, ", ")),
			Device:   info.Name,
		})
	}

	// 2. Kernel modules
	checkKernelModules(report)

	// 3. Port states from the enumerated snapshot
	checkPorts(report, info)

	// 4. Associated network links
	checkNetLinks(report, info)

	// 5. RDMA netns mode
	checkRdmaNetnsMode(report, info.Name)

	return report
}

// missingCharDevices returns the required character device types absent
// from the given paths.
func missingCharDevices(charDevPaths []string) []string {
	var missing []string
	for _, required := range requiredCharDevices {
		found := false
		for _, devPath := range charDevPaths {
			if strings.Contains(filepath.Base(devPath), required) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, required)
		}
	}
	return missing
}

// checkKernelModules verifies that essential RDMA kernel modules are loaded.
func checkKernelModules(report *Report) {
	var missing []string
	for _, mod := range requiredKernelModules {
		path := fmt.Sprintf("/sys/module/%s", mod)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			missing = append(missing, mod)
		}
	}
	if len(missing) > 0 {
		report.add(CheckResult{
			Check:    "kernel_modules",
			Severity: Fail,
			Message:  fmt.Sprintf("Missing kernel modules: %s", strings.Join(missing, ", ")),
		})
	} else {
		report.add(CheckResult{
			Check:    "kernel_modules",
			Severity: Pass,
			Message:  fmt.Sprintf("All required kernel modules loaded: %s", strings.Join(requiredKernelModules, ", ")),
		})
	}
}

// checkPorts reports the state of every port in the snapshot.
func checkPorts(report *Report, info *device.DeviceInfo) {
	if len(info.Ports) == 0 {
		report.add(CheckResult{
			Check:    "ports",
			Severity: Warn,
			Message:  "No ports in the enumerated snapshot",
			Device:   info.Name,
		})
		return
	}
	for _, port := range info.Ports {
		severity := Pass
		if !port.PortAttr.State.IsActive() {
			severity = Warn
		}
		report.add(CheckResult{
			Check:    "port_state",
			Severity: severity,
			Message: fmt.Sprintf("Port %d is %s (link layer: %s, %d GID(s))",
				port.PortNum, port.PortAttr.State, port.PortAttr.LinkLayer, len(port.Gids)),
			Device: info.Name,
		})
	}
}

// checkNetLinks inspects the net interfaces associated with the device
// via its sysfs control directory.
func checkNetLinks(report *Report, info *device.DeviceInfo) {
	netDir := filepath.Join(info.IbdevPath, "device", "net")
	entries, err := os.ReadDir(netDir)
	if err != nil || len(entries) == 0 {
		report.add(CheckResult{
			Check:    "net_interface",
			Severity: Warn,
			Message:  "No network interface associated",
			Device:   info.Name,
		})
		return
	}

	for _, e := range entries {
		ifName := e.Name()
		link, err := netlink.LinkByName(ifName)
		if err != nil {
			report.add(CheckResult{
				Check:    "link_attrs",
				Severity: Warn,
				Message:  fmt.Sprintf("Cannot query link %s: %v", ifName, err),
				Device:   info.Name,
			})
			continue
		}

		attrs := link.Attrs()
		severity := Pass
		if attrs.OperState != netlink.OperUp {
			severity = Warn
		}
		report.add(CheckResult{
			Check:    "link_state",
			Severity: severity,
			Message: fmt.Sprintf("Link %s is %s (encap: %s, MTU: %d)",
				ifName, attrs.OperState, attrs.EncapType, attrs.MTU),
			Device: info.Name,
		})
	}
}

// checkRdmaNetnsMode reads RDMA netns mode from sysfs.
func checkRdmaNetnsMode(report *Report, devName string) {
	data, err := os.ReadFile("/sys/module/rdma_cm/parameters/net_ns_mode")
	if err != nil {
		data, err = os.ReadFile("/sys/module/ib_core/parameters/netns_mode")
		if err != nil {
			report.add(CheckResult{
				Check:    "rdma_netns_mode",
				Severity: Warn,
				Message:  "Cannot read RDMA netns mode (sysfs path not available)",
				Device:   devName,
			})
			return
		}
	}

	mode := strings.TrimSpace(string(data))
	switch mode {
	case "exclusive", "1", "Y":
		report.add(CheckResult{
			Check:    "rdma_netns_mode",
			Severity: Pass,
			Message:  fmt.Sprintf("RDMA netns mode: exclusive (%s)", mode),
			Device:   devName,
		})
	case "shared", "0", "N":
		report.add(CheckResult{
			Check:    "rdma_netns_mode",
			Severity: Warn,
			Message:  fmt.Sprintf("RDMA netns mode: shared (%s), containers may not isolate RDMA traffic", mode),
			Device:   devName,
		})
	default:
		report.add(CheckResult{
			Check:    "rdma_netns_mode",
			Severity: Warn,
			Message:  fmt.Sprintf("Unknown RDMA netns mode: %q", mode),
			Device:   devName,
		})
	}
}

// PrintTable renders the diagnostic report as a table.
// When showPass is false, only WARN/FAIL results are shown.
func PrintTable(w io.Writer, report *Report, showPass bool) {
	results := report.filtered(showPass)
	if len(results) == 0 {
		fmt.Fprintln(w, "All checks passed.")
		return
	}
	table := tablewriter.NewTable(w)
	table.Header("STATUS", "CHECK", "DEVICE", "MESSAGE")
	for _, r := range results {
		marker := "✓"
		switch r.Severity {
		case Warn:
			marker = "!"
		case Fail:
			marker = "✗"
		}
		dev := r.Device
		if dev == "" {
			dev = "(host)"
		}
		status := fmt.Sprintf("%s %s", marker, r.Severity)
		table.Append(status, r.Check, dev, r.Message)
	}
	table.Render()
}

// PrintJSON renders the diagnostic report as JSON.
// When showPass is false, only WARN/FAIL results are included.
func PrintJSON(w io.Writer, report *Report, showPass bool) error {
	results := report.filtered(showPass)
	if results == nil {
		results = []CheckResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// MergeReports combines multiple per-device reports into one.
func MergeReports(reports ...*Report) *Report {
	merged := &Report{}
	for _, r := range reports {
		for _, cr := range r.Results {
			merged.add(cr)
		}
	}
	return merged
}
