package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push results awaiting sync to the remote endpoint",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	eng, closeEngine, err := openEngine(nil)
	if err != nil {
		return err
	}
	defer closeEngine()

	pending := eng.Status().PendingSyncCount
	if pending == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to sync")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Sync(ctx); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	st := eng.Status()
	fmt.Fprintf(cmd.OutOrStdout(), "Synced %d results (batch %s), %d still pending\n",
		pending-st.PendingSyncCount, st.Sync.LastBatchID, st.PendingSyncCount)
	return nil
}
