package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/fanguard/internal/policydiff"
)

var diffFormat string

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().StringVarP(&diffFormat, "format", "f", "text", "Output format (text|json)")
}

var diffCmd = &cobra.Command{
	Use:   "diff <old-policy> <new-policy>",
	Short: "Compare two policy files",
	Long:  "Shows target bound, balanced target, audit export and conflict signature\nchanges between two policy files.",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

func runDiff(cmd *cobra.Command, args []string) error {
	if err := parseFormat(diffFormat); err != nil {
		return err
	}
	r, err := policydiff.DiffFiles(expandHome(args[0]), expandHome(args[1]))
	if err != nil {
		return err
	}

	switch diffFormat {
	case "json":
		out, err := policydiff.FormatJSON(r)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	default:
		fmt.Fprint(cmd.OutOrStdout(), policydiff.FormatText(r))
	}
	return nil
}
