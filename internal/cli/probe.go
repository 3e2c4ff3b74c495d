package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/fanguard/internal/conflict"
	"github.com/ppiankov/fanguard/internal/model"
	"github.com/ppiankov/fanguard/internal/policy"
)

var probeProcRoot string

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().StringVar(&probeProcRoot, "proc-root", "/proc", "procfs root to scan")
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Detect running fan-control software that would conflict",
	Long:  "Scans the process table for the policy's conflict_signatures and prints\nthe conflict report. Exits 1 when a conflict is active.",
	RunE:  runProbe,
}

type probeOutput struct {
	Signatures []string             `json:"signatures"`
	Report     model.ConflictReport `json:"report"`
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := policy.LoadConfig(expandHome(policyPath))
	if err != nil {
		return err
	}

	lister := conflict.DefaultLister()
	if probeProcRoot != "/proc" {
		lister = &conflict.Procfs{Root: probeProcRoot}
	}
	probe := conflict.NewProbe(cfg.ConflictSignatures, conflict.WithLister(lister))
	report := probe.Detect(nil)

	out, err := json.MarshalIndent(probeOutput{Signatures: probe.Signatures(), Report: report}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal probe report: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	if report.Active {
		return fmt.Errorf("conflicting fan control detected: %v", report.Matches)
	}
	return nil
}
