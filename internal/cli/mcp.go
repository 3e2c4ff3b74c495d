package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	fanmcp "github.com/ppiankov/fanguard/internal/mcp"
	"github.com/ppiankov/fanguard/internal/watch"
)

var (
	mcpFlags engineFlags
	mcpWatch bool
)

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpFlags.register(mcpCmd.Flags())
	mcpCmd.Flags().BoolVar(&mcpWatch, "watch", false, "Revalidate when the --capabilities file changes")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs fanguard as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes policy-gated tools: fan_status, fan_request_write, fan_apply_balanced, fan_audit.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	if mcpWatch && mcpFlags.capabilities == "" {
		return fmt.Errorf("--watch requires --capabilities")
	}

	s, err := mcpFlags.start()
	if err != nil {
		return err
	}
	defer s.Close()

	srv, err := fanmcp.New(s.engine, s.auditPath)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	if mcpWatch {
		w, err := watch.New(s.engine, expandHome(mcpFlags.capabilities))
		if err != nil {
			return err
		}
		go w.Run(ctx)
	}

	fmt.Fprintln(os.Stderr, "fanguard MCP server running on stdio")
	fmt.Fprintf(os.Stderr, "Session: %s | State: %s | Validated: %t\n",
		s.engine.SessionID(), s.engine.State(), s.validated)
	if s.conflicts.Active {
		fmt.Fprintf(os.Stderr, "Conflicting fan control: %v\n", s.conflicts.Matches)
	}
	fmt.Fprintln(os.Stderr)

	return srv.Run(ctx)
}
