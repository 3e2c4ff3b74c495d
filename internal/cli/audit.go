package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/fanguard/internal/audit"
)

var (
	tailLines   int
	showSession string
	showFrom    string
	showTo      string
	showFormat  string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditShowCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show")
	auditShowCmd.Flags().StringVarP(&showSession, "session", "s", "", "Only show this engine session")
	auditShowCmd.Flags().StringVar(&showFrom, "from", "", "Start time filter (RFC3339)")
	auditShowCmd.Flags().StringVar(&showTo, "to", "", "End time filter (RFC3339)")
	auditShowCmd.Flags().StringVarP(&showFormat, "format", "f", "text", "Output format (text|json)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for verifying and inspecting the hash-chained audit export.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <path>",
	Short: "Verify hash chain integrity of an audit log",
	Long:  "Walks the JSONL audit log and validates that every entry's prev_hash\nmatches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditVerify,
}

var auditShowCmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Render transitions and events as a timeline",
	Long:  "Reads the audit log, filters by session and optional time range,\nand renders a timeline of safety transitions and audit events with a summary.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditShow,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail <path>",
	Short: "Show recent audit log entries",
	Long:  "Reads the last N entries from the JSONL audit log and pretty-prints them.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditTail,
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	result := audit.Verify(args[0])
	if result.Valid {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "OK: %d entries verified (%d transitions, %d events)\n",
			result.Lines, result.Transitions, result.Events)
		sessions := make([]string, 0, len(result.Sessions))
		for id := range result.Sessions {
			sessions = append(sessions, id)
		}
		sort.Strings(sessions)
		for _, id := range sessions {
			fmt.Fprintf(out, "  session %s: %s\n", id, result.Sessions[id])
		}
		return nil
	}
	return fmt.Errorf("FAILED at line %d: %s", result.ErrorLine, result.Error)
}

func runAuditShow(cmd *cobra.Command, args []string) error {
	if err := parseFormat(showFormat); err != nil {
		return err
	}
	filter := audit.ReplayFilter{SessionID: showSession}

	if showFrom != "" {
		from, err := time.Parse(time.RFC3339, showFrom)
		if err != nil {
			return fmt.Errorf("invalid --from time %q: %w", showFrom, err)
		}
		filter.From = from
	}

	if showTo != "" {
		to, err := time.Parse(time.RFC3339, showTo)
		if err != nil {
			return fmt.Errorf("invalid --to time %q: %w", showTo, err)
		}
		filter.To = to
	}

	result, err := audit.Replay(args[0], filter)
	if err != nil {
		return err
	}

	switch showFormat {
	case "json":
		out, err := audit.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	default:
		fmt.Fprint(cmd.OutOrStdout(), audit.FormatTimeline(result))
	}
	return nil
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	start := max(len(lines)-tailLines, 0)

	for _, line := range lines[start:] {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), line)
			continue
		}
		out, err := json.MarshalIndent(entry, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	}

	return nil
}
