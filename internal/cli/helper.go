package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/fanguard/internal/capability"
	"github.com/ppiankov/fanguard/internal/helper"
	"github.com/ppiankov/fanguard/internal/model"
)

var helperSysRoot string

func init() {
	rootCmd.AddCommand(helperCmd)
	helperCmd.Flags().StringVar(&helperSysRoot, "sys-root", "/sys", "sysfs root for hwmon discovery")
}

var helperCmd = &cobra.Command{
	Use:    "helper",
	Short:  "Privileged helper: execute one command envelope from stdin",
	Long:   "Reads a JSON command envelope on stdin, applies it to hwmon through the\nallow-listed command channel and prints the WriteResult as JSON.\nIntended to run under pkexec or a setuid wrapper for --backend process.",
	Hidden: true,
	RunE:   runHelper,
}

func runHelper(cmd *cobra.Command, args []string) error {
	var env model.CommandEnvelope
	if err := json.NewDecoder(cmd.InOrStdin()).Decode(&env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	d, err := capability.Discover(helperSysRoot)
	if err != nil {
		return err
	}
	result := helper.NewChannel(helper.NewSysfs(d.Paths)).Execute(env)

	return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
}
