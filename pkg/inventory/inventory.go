// Package inventory provides output formatting for the list subcommand.
package inventory

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/rdmakit/ibscan/pkg/device"
)

// PrintTable renders the enumerated inventory as a human-readable table,
// one row per port.
func PrintTable(w io.Writer, infos []*device.DeviceInfo) {
	table := tablewriter.NewTable(w)
	table.Header("DEVICE", "GUID", "FW", "PORT", "STATE", "LINK LAYER", "GIDS")
	for _, info := range infos {
		fw := info.DeviceAttr.FwVer.String()
		if fw == "" {
			fw = "(unknown)"
		}
		if len(info.Ports) == 0 {
			table.Append(info.Name, info.Guid.String(), fw, "-", "-", "-", "0")
			continue
		}
		for _, port := range info.Ports {
			table.Append(
				info.Name,
				info.Guid.String(),
				fw,
				fmt.Sprintf("%d", port.PortNum),
				port.PortAttr.State.String(),
				port.PortAttr.LinkLayer.String(),
				fmt.Sprintf("%d", len(port.Gids)),
			)
		}
	}
	table.Render()
}

// PrintGidTable renders every surviving GID as its own row.
func PrintGidTable(w io.Writer, infos []*device.DeviceInfo) {
	table := tablewriter.NewTable(w)
	table.Header("DEVICE", "PORT", "INDEX", "GID", "TYPE")
	for _, info := range infos {
		for _, port := range info.Ports {
			for _, gid := range port.Gids {
				table.Append(
					info.Name,
					fmt.Sprintf("%d", port.PortNum),
					fmt.Sprintf("%d", gid.Index),
					gid.Gid.String(),
					gid.GidType.String(),
				)
			}
		}
	}
	table.Render()
}

// PrintJSON renders the enumerated inventory as indented JSON.
func PrintJSON(w io.Writer, infos []*device.DeviceInfo) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(infos)
}
