package cmd

import (
	"fmt"
	"io"

	"github.com/Iron-Ham/edgeshift/internal/engine"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show device, cache and sync status",
	Long: `Display the configured device state, the persisted result cache and the
number of results awaiting remote sync.`,
	RunE: runStatus,
}

var statusJSON bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	eng, closeEngine, err := openEngine(nil)
	if err != nil {
		return err
	}
	defer closeEngine()

	st := eng.Status()
	if statusJSON {
		return writeJSON(cmd.OutOrStdout(), st)
	}
	printStatus(cmd.OutOrStdout(), st, eng.Processors())
	return nil
}

func printStatus(w io.Writer, st engine.Status, processors []string) {
	dev := st.Device
	fmt.Fprintf(w, "Device:\n")
	fmt.Fprintf(w, "  Connected: %v (%s, %.0f kbps)\n", dev.IsConnected, dev.NetworkKind, dev.NetworkSpeedKbps)
	fmt.Fprintf(w, "  Battery: %.0f%%  Benchmark: %.0f  CPU: %.0f%%  Memory: %.0f%%\n",
		dev.BatteryPct, dev.BenchmarkLevel, dev.CPUPct, dev.MemPct)
	fmt.Fprintln(w)

	ex := st.Executor
	fmt.Fprintf(w, "Executor:\n")
	fmt.Fprintf(w, "  Running: %d/%d  Queued: %d\n", ex.Running, ex.Limit, ex.QueueLength)
	fmt.Fprintf(w, "  Cached results: %d  Retained for sync: %d\n", ex.CacheSize, ex.Retained)
	fmt.Fprintf(w, "  Dispatching: %d (%d retrying)\n", st.LocalInFlight, st.Retrying)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Sync:\n")
	fmt.Fprintf(w, "  Pending: %d\n", st.PendingSyncCount)
	if !st.RemoteEnabled {
		fmt.Fprintf(w, "  Remote: (not configured)\n")
	}
	if !st.Sync.LastSyncAt.IsZero() {
		fmt.Fprintf(w, "  Last sync: %s (batch %s)\n", st.Sync.LastSyncAt.Format("2006-01-02 15:04:05"), st.Sync.LastBatchID)
	}
	if st.Sync.LastError != "" {
		fmt.Fprintf(w, "  Last error: %s\n", st.Sync.LastError)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Processors: %d\n", len(processors))
	for _, p := range processors {
		fmt.Fprintf(w, "  %s\n", p)
	}
}
