package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ppiankov/fanguard/internal/audit"
	"github.com/ppiankov/fanguard/internal/policy"
	"github.com/ppiankov/fanguard/internal/scenario"
)

var (
	simFormat   string
	simAuditLog string
	simList     bool
)

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVarP(&simFormat, "format", "f", "text", "Output format (text|json)")
	simulateCmd.Flags().StringVar(&simAuditLog, "audit-log", "", "Export transitions and events to a hash-chained JSONL log")
	simulateCmd.Flags().BoolVar(&simList, "list", false, "List built-in scenarios and exit")
}

var simulateCmd = &cobra.Command{
	Use:   "simulate [scenario...]",
	Short: "Dry-run scripted scenarios through the policy engine",
	Long: "Runs built-in scenarios by name or scenario YAML files against a fresh\n" +
		"engine with a scripted helper. With no arguments every built-in runs.\n" +
		"Exits 1 if any expectation fails.",
	RunE: runSimulate,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if err := parseFormat(simFormat); err != nil {
		return err
	}
	if simList {
		for _, name := range scenario.BuiltinNames() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	}

	names := args
	if len(names) == 0 {
		names = scenario.BuiltinNames()
	}

	opts := []policy.Option{policy.WithLogger(slog.Default().With("component", "policy"))}
	if simAuditLog != "" {
		log, err := audit.Open(expandHome(simAuditLog))
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		defer log.Close()
		opts = append(opts, policy.WithSink(log))
	}

	var results []*scenario.RunResult
	failed := 0
	for _, name := range names {
		r, err := scenario.LoadAndRun(name, expandHome(policyPath), opts...)
		if err != nil {
			return err
		}
		if r.Failed > 0 {
			failed++
		}
		results = append(results, r)
	}

	switch simFormat {
	case "json":
		out, err := scenario.FormatJSON(results)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	default:
		fmt.Fprint(cmd.OutOrStdout(), scenario.FormatText(results))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(results))
	}
	return nil
}
