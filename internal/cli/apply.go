package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ppiankov/fanguard/internal/model"
)

var (
	applyFlags    engineFlags
	applyBalanced bool
	applySource   string
)

func init() {
	rootCmd.AddCommand(applyCmd)
	applyFlags.register(applyCmd.Flags())
	applyCmd.Flags().BoolVar(&applyBalanced, "balanced", false, "Apply the balanced profile (target defaults to balanced_target)")
	applyCmd.Flags().StringVar(&applySource, "source", "cli", "Requester recorded in the audit log")
}

var applyCmd = &cobra.Command{
	Use:   "apply <channel> [target]",
	Short: "Validate startup and request one fan target",
	Long: "Runs the startup guard and validation, then requests the target through\n" +
		"the policy engine. Prints the decision and exits 1 unless it is allow.",
	Args: cobra.RangeArgs(1, 2),
	RunE: runApply,
}

func runApply(cmd *cobra.Command, args []string) error {
	channel := args[0]
	var target *int
	if len(args) == 2 {
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid target %q: %w", args[1], err)
		}
		target = &v
	}
	if target == nil && !applyBalanced {
		return fmt.Errorf("target is required unless --balanced is set")
	}

	s, err := applyFlags.start()
	if err != nil {
		return err
	}
	defer s.Close()

	var d model.ControlDecision
	if applyBalanced {
		t := s.config.BalancedTarget
		if target != nil {
			t = *target
		}
		d = s.engine.ApplyBalancedProfile(channel, t)
	} else {
		d = s.engine.RequestWrite(channel, *target, applySource)
	}

	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	if d.Action != model.Allow {
		return fmt.Errorf("%s: %s", d.Action, d.Reason)
	}
	return nil
}
