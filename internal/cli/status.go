package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/fanguard/internal/model"
	"github.com/ppiankov/fanguard/internal/policy"
)

var statusFlags engineFlags

func init() {
	rootCmd.AddCommand(statusCmd)
	statusFlags.register(statusCmd.Flags())
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Run startup validation and print the resulting safety state",
	Long: "Loads the capability report, probes for conflicting fan controllers and\n" +
		"validates startup. Prints the engine status, the report and any conflicts.",
	RunE: runStatus,
}

type statusOutput struct {
	Status     policy.Status          `json:"status"`
	Capability model.CapabilityReport `json:"capability"`
	Conflicts  model.ConflictReport   `json:"conflicts"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := statusFlags.start()
	if err != nil {
		return err
	}
	defer s.Close()

	out, err := json.MarshalIndent(statusOutput{
		Status:     s.engine.Status(),
		Capability: s.report,
		Conflicts:  s.conflicts,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
