package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/Iron-Ham/edgeshift/internal/config"
	"github.com/Iron-Ham/edgeshift/internal/task"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var execCmd = &cobra.Command{
	Use:   "exec <kind> <operation> [payload]",
	Short: "Dispatch a single task",
	Long: `Dispatch a single task and print where it ran and its result.

The payload is parsed as YAML (JSON is accepted), e.g.:
  edgeshift exec data sum '[1, 2, 3, 4, 5]'
  edgeshift exec text uppercase '"hello"' --complexity low
  edgeshift exec data filter '{items: [{n: 1}, {n: 5}], field: n, op: gt, value: 2}'`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runExec,
}

var (
	execID          string
	execComplexity  string
	execPriority    string
	execSizeKB      float64
	execRequireSync bool
	execEndpoint    string
	execOffline     bool
	execExplain     bool
	execJSON        bool
)

func init() {
	execCmd.Flags().StringVar(&execID, "id", "", "Task ID (default: random UUID)")
	execCmd.Flags().StringVar(&execComplexity, "complexity", "", "Task complexity: low, medium, high")
	execCmd.Flags().StringVar(&execPriority, "priority", "", "Task priority: low, medium, high")
	execCmd.Flags().Float64Var(&execSizeKB, "size-kb", -1, "Declared payload size in KB (default: estimated)")
	execCmd.Flags().BoolVar(&execRequireSync, "require-sync", false, "Queue the result for remote sync")
	execCmd.Flags().StringVar(&execEndpoint, "endpoint", "", "Remote endpoint override for this task")
	execCmd.Flags().BoolVar(&execOffline, "offline", false, "Treat the device as disconnected")
	execCmd.Flags().BoolVar(&execExplain, "explain", false, "Print the dispatch decision without executing")
	execCmd.Flags().BoolVar(&execJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	t, err := buildExecTask(args)
	if err != nil {
		return err
	}

	eng, closeEngine, err := openEngine(func(cfg *config.Config) {
		if execOffline {
			cfg.Device.Connected = false
		}
	})
	if err != nil {
		return err
	}
	defer closeEngine()

	out := cmd.OutOrStdout()
	if execExplain {
		decision := eng.Decide(t)
		if execJSON {
			return writeJSON(out, decision)
		}
		fmt.Fprintf(out, "%s: %s\n", t.Key(), decision)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, execErr := eng.ExecuteTask(ctx, t)
	o := outcome{Task: t, Result: res, Err: execErr}
	if execErr != nil {
		o.Error = execErr.Error()
	}

	if execJSON {
		if err := writeJSON(out, o); err != nil {
			return err
		}
	} else {
		renderOutcomes(out, []outcome{o})
	}
	return execErr
}

func buildExecTask(args []string) (task.Task, error) {
	t := task.Task{
		ID:             execID,
		Kind:           args[0],
		Operation:      args[1],
		RequireSync:    execRequireSync,
		RemoteEndpoint: execEndpoint,
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if len(args) == 3 {
		if err := yaml.Unmarshal([]byte(args[2]), &t.Payload); err != nil {
			return task.Task{}, fmt.Errorf("invalid payload: %w", err)
		}
	}
	var err error
	if t.Complexity, err = parseLevelFlag("complexity", execComplexity); err != nil {
		return task.Task{}, err
	}
	if t.Priority, err = parseLevelFlag("priority", execPriority); err != nil {
		return task.Task{}, err
	}
	if execSizeKB >= 0 {
		t.PayloadSizeKB = task.SizeKB(execSizeKB)
	}
	return t, nil
}

// parseLevelFlag leaves an empty value unset so the engine applies its default.
func parseLevelFlag(name, value string) (task.Level, error) {
	if value == "" {
		return "", nil
	}
	level, ok := task.ParseLevel(value)
	if !ok {
		return "", fmt.Errorf("invalid %s %q: expected low, medium or high", name, value)
	}
	return level, nil
}
