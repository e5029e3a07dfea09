package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Iron-Ham/edgeshift/internal/tui"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine's background loops",
	Long: `Run the engine's background loops until interrupted: periodic and
reconnect-triggered sync of pending results, cache cleanup, host telemetry
polling and the telemetry file watcher (device.telemetry_file).

With --dashboard a live status view is shown on the terminal.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveDashboard bool

func init() {
	serveCmd.Flags().BoolVar(&serveDashboard, "dashboard", false, "Show the live status dashboard")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveDashboard && !isTerminal(os.Stdout) {
		return fmt.Errorf("--dashboard requires a terminal")
	}

	eng, closeEngine, err := openEngine(nil)
	if err != nil {
		return err
	}
	defer closeEngine()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	if serveDashboard {
		if err := tui.New(eng).Run(); err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "edgeshift serving; press Ctrl+C to stop")
	<-ctx.Done()

	st := eng.Status()
	fmt.Fprintf(out, "stopped with %d results pending sync\n", st.PendingSyncCount)
	return nil
}
