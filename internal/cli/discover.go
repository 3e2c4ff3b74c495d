package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/fanguard/internal/capability"
)

var (
	discoverSysRoot string
	discoverOutput  string
)

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().StringVar(&discoverSysRoot, "sys-root", "/sys", "sysfs root to scan")
	discoverCmd.Flags().StringVarP(&discoverOutput, "output", "o", "", "Write the report to this file instead of stdout")
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover hwmon PWM channels and print a capability report",
	Long:  "Scans <sys-root>/class/hwmon for pwm channels and their enable files and\nprints a capability report in YAML, suitable for --capabilities.",
	RunE:  runDiscover,
}

func runDiscover(cmd *cobra.Command, args []string) error {
	d, err := capability.Discover(discoverSysRoot)
	if err != nil {
		return err
	}
	data, err := capability.Marshal(d.Report)
	if err != nil {
		return err
	}

	if discoverOutput == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(discoverOutput, data, 0644); err != nil {
		return fmt.Errorf("write capability report: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d channels to %s\n", len(d.Report.Channels), discoverOutput)
	return nil
}
