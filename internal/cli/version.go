package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	fanmcp "github.com/ppiankov/fanguard/internal/mcp"
)

const version = "0.1.0"

func init() {
	fanmcp.Version = version
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := map[string]string{
			"version": version,
			"name":    "fanguard",
		}
		out, _ := json.MarshalIndent(info, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	},
}
