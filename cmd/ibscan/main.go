// ibscan is a standalone CLI tool for inspecting RDMA devices. It
// enumerates the devices on the host, classifies their GIDs by transport
// type, and renders the filtered inventory as a table or JSON. It can
// also export the inventory as CDI spec files and run environment
// diagnostics.
//
// Usage:
//
//	ibscan list --skip-inactive --gid-type RoCEv2
//	ibscan list --device mlx5_0 --output json
//	ibscan export --name storage --format yaml
//	ibscan doctor --strict
//	ibscan cleanup --prefix rdma
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rdmakit/ibscan/pkg/cdi"
	"github.com/rdmakit/ibscan/pkg/device"
	"github.com/rdmakit/ibscan/pkg/doctor"
	"github.com/rdmakit/ibscan/pkg/inventory"
	"github.com/rdmakit/ibscan/pkg/types"
	"github.com/rdmakit/ibscan/pkg/utils"
	"github.com/rdmakit/ibscan/pkg/verbs"
)

// Exit codes following CLI conventions.
const (
	exitOK           = 0
	exitRuntimeError = 1
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitRuntimeError)
	}
}

// rootCmd builds the top-level cobra command tree.
func rootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "ibscan",
		Short: "RDMA device inventory tool",
		Long:  "A standalone tool for enumerating RDMA devices, classifying their GIDs by transport type, and exporting the filtered inventory.",
		// Silence default usage on runtime errors; we handle exit codes ourselves.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := log.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			log.SetLevel(lvl)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	root.AddCommand(
		newListCmd(),
		newExportCmd(),
		newDoctorCmd(),
		newCleanupCmd(),
		newVersionCmd(),
	)

	return root
}

// ──────────────────────────────────────────────
//  filter flags (shared by list and export)
// ──────────────────────────────────────────────

type filterFlags struct {
	configFile    string
	devices       []string
	gidTypes      []string
	skipInactive  bool
	skipLinkLocal bool
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configFile, "config", "", "YAML config file with filter criteria")
	cmd.Flags().StringSliceVar(&f.devices, "device", nil, "Device name(s) to include (e.g. mlx5_0); empty means all")
	cmd.Flags().StringSliceVar(&f.gidTypes, "gid-type", nil, "GID type(s) to include (IB, RoCEv1, RoCEv2); empty means all")
	cmd.Flags().BoolVar(&f.skipInactive, "skip-inactive", false, "Omit ports that are not ACTIVE")
	cmd.Flags().BoolVar(&f.skipLinkLocal, "skip-link-local", false, "Omit link-local RoCEv2 addresses")
}

// buildConfig merges the optional config file with the flag values.
// Flags add to the file's filters; the skip switches are OR-combined.
func (f *filterFlags) buildConfig() (*device.DeviceConfig, error) {
	b := device.NewConfigBuilder()
	if f.configFile != "" {
		loaded, err := device.LoadConfig(f.configFile)
		if err != nil {
			return nil, err
		}
		for name := range loaded.DeviceFilter {
			b.Device(name)
		}
		for t := range loaded.GidTypeFilter {
			b.GidType(t)
		}
		b.SkipInactive(loaded.SkipInactivePort)
		b.SkipLinkLocal(loaded.RoCEv2SkipLinkLocalAddr)
	}
	b.Devices(f.devices...)
	for _, t := range f.gidTypes {
		b.GidType(types.GidType(t))
	}
	if f.skipInactive {
		b.SkipInactive(true)
	}
	if f.skipLinkLocal {
		b.SkipLinkLocal(true)
	}
	return b.Build(), nil
}

// ──────────────────────────────────────────────
//  list
// ──────────────────────────────────────────────

func newListCmd() *cobra.Command {
	var (
		filters filterFlags
		output  string
		wide    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Enumerate RDMA devices and their GIDs",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := filters.buildConfig()
			if err != nil {
				return err
			}

			devices, err := device.Open(verbs.NewSysfs(), config)
			if err != nil {
				return fmt.Errorf("device enumeration failed: %w", err)
			}
			defer devices.Close()

			switch output {
			case "json":
				return inventory.PrintJSON(cmd.OutOrStdout(), devices.Infos())
			default:
				if wide {
					inventory.PrintGidTable(cmd.OutOrStdout(), devices.Infos())
				} else {
					inventory.PrintTable(cmd.OutOrStdout(), devices.Infos())
				}
			}
			return nil
		},
	}

	filters.register(cmd)
	cmd.Flags().StringVar(&output, "output", "table", "Output format (table|json)")
	cmd.Flags().BoolVar(&wide, "wide", false, "One row per GID instead of per port")

	return cmd
}

// ──────────────────────────────────────────────
//  export
// ──────────────────────────────────────────────

func newExportCmd() *cobra.Command {
	var (
		filters   filterFlags
		prefix    string
		name      string
		outputDir string
		format    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export enumerated devices as a CDI spec file",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := filters.buildConfig()
			if err != nil {
				return err
			}

			devices, err := device.Open(verbs.NewSysfs(), config)
			if err != nil {
				return fmt.Errorf("device enumeration failed: %w", err)
			}
			defer devices.Close()

			infos := devices.Infos()
			if name == "" {
				name = deriveDefaultName(infos)
			}

			if err := cdi.CreateSpec(prefix, name, infos, outputDir, format); err != nil {
				return fmt.Errorf("CDI spec generation failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "CDI spec written to %s/%s\n",
				outputDir, cdi.SpecFileName(prefix, name, format))
			return nil
		},
	}

	filters.register(cmd)
	cmd.Flags().StringVar(&prefix, "prefix", cdi.DefaultPrefix, "CDI resource prefix")
	cmd.Flags().StringVar(&name, "name", "", "CDI resource name (auto-derived if omitted)")
	cmd.Flags().StringVar(&outputDir, "output-dir", cdi.DefaultOutputDir, "Output directory for CDI spec files")
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format (json|yaml)")

	return cmd
}

// ──────────────────────────────────────────────
//  doctor
// ──────────────────────────────────────────────

func newDoctorCmd() *cobra.Command {
	var (
		devices  []string
		strict   bool
		showPass bool
		output   string
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run environment diagnostics for RDMA device readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Diagnostics look at everything, including inactive ports.
			config := device.NewConfigBuilder().Devices(devices...).Build()

			devs, err := device.Open(verbs.NewSysfs(), config)
			if err != nil {
				return fmt.Errorf("device enumeration failed: %w", err)
			}
			defer devs.Close()

			var reports []*doctor.Report
			for _, info := range devs.Infos() {
				reports = append(reports, doctor.DiagnoseDevice(info))
			}
			merged := doctor.MergeReports(reports...)

			switch output {
			case "json":
				if err := doctor.PrintJSON(cmd.OutOrStdout(), merged, showPass); err != nil {
					return err
				}
			default:
				doctor.PrintTable(cmd.OutOrStdout(), merged, showPass)
			}

			// Exit code strategy
			if merged.HasFail {
				os.Exit(exitRuntimeError)
			}
			if strict && merged.HasWarn {
				os.Exit(exitRuntimeError)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&devices, "device", nil, "Device name(s) to check; empty means all")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero on warnings")
	cmd.Flags().BoolVar(&showPass, "show-pass", false, "Show passed checks in output")
	cmd.Flags().StringVar(&output, "output", "table", "Output format (table|json)")

	return cmd
}

// ──────────────────────────────────────────────
//  cleanup
// ──────────────────────────────────────────────

func newCleanupCmd() *cobra.Command {
	var (
		prefix    string
		name      string
		outputDir string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove CDI spec files created by this tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := cdi.CleanupSpecs(outputDir, prefix, name, dryRun)
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching spec files found.")
			} else {
				action := "Removed"
				if dryRun {
					action = "Would remove"
				}
				for _, f := range removed {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", action, f)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", cdi.DefaultPrefix, "CDI resource prefix to match")
	cmd.Flags().StringVar(&name, "name", "", "CDI resource name to match (all if omitted)")
	cmd.Flags().StringVar(&outputDir, "output-dir", cdi.DefaultOutputDir, "CDI spec directory")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview files that would be removed")

	return cmd
}

// ──────────────────────────────────────────────
//  version
// ──────────────────────────────────────────────

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ibscan %s (commit: %s, built: %s)\n", version, commit, buildDate)
		},
	}
}

// ──────────────────────────────────────────────
//  helpers
// ──────────────────────────────────────────────

// deriveDefaultName builds a default CDI resource name from the first
// enumerated device.
func deriveDefaultName(infos []*device.DeviceInfo) string {
	if len(infos) == 0 {
		return "unknown"
	}
	if len(infos) == 1 {
		return utils.SanitizeName(infos[0].Name)
	}
	return "all"
}
