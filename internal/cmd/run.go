package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Iron-Ham/edgeshift/internal/config"
	"github.com/Iron-Ham/edgeshift/internal/task"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var runCmd = &cobra.Command{
	Use:   "run -f <tasks.yaml>",
	Short: "Dispatch every task in a YAML task file",
	Long: `Dispatch every task in a YAML task file and print a summary table.

The file holds either a list of tasks or a map with a "tasks" list:

  tasks:
    - id: sum-1
      kind: data
      operation: sum
      complexity: low
      payload: [1, 2, 3, 4, 5]
    - kind: text
      operation: wordcount
      requireSync: true
      payload: "the quick brown fox"

Tasks without an id get a random UUID. Use '-f -' to read from stdin.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runFile        string
	runConcurrency int
	runOffline     bool
	runSyncAfter   bool
	runJSON        bool
)

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "Task file (YAML or JSON)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 4, "Maximum tasks submitted at once")
	runCmd.Flags().BoolVar(&runOffline, "offline", false, "Treat the device as disconnected")
	runCmd.Flags().BoolVar(&runSyncAfter, "sync", false, "Push pending results after the run")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Output as JSON")
	_ = runCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(runCmd)
}

type taskFile struct {
	Tasks []task.Task `yaml:"tasks"`
}

// parseTaskFile accepts a bare task list or a map with a "tasks" key.
func parseTaskFile(data []byte) ([]task.Task, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var tasks []task.Task
	if trimmed[0] == '-' || trimmed[0] == '[' {
		if err := yaml.Unmarshal(trimmed, &tasks); err != nil {
			return nil, fmt.Errorf("failed to parse task list: %w", err)
		}
	} else {
		var f taskFile
		if err := yaml.Unmarshal(trimmed, &f); err != nil {
			return nil, fmt.Errorf("failed to parse task file: %w", err)
		}
		tasks = f.Tasks
	}

	for i := range tasks {
		if tasks[i].ID == "" {
			tasks[i].ID = uuid.NewString()
		}
	}
	return tasks, nil
}

func readTaskFile(path string, stdin io.Reader) ([]task.Task, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}
	return parseTaskFile(data)
}

func runRun(cmd *cobra.Command, args []string) error {
	tasks, err := readTaskFile(runFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tasks to run")
		return nil
	}

	eng, closeEngine, err := openEngine(func(cfg *config.Config) {
		if runOffline {
			cfg.Device.Connected = false
		}
	})
	if err != nil {
		return err
	}
	defer closeEngine()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcomes := make([]outcome, len(tasks))
	p := pool.New().WithMaxGoroutines(max(runConcurrency, 1))
	for i, t := range tasks {
		p.Go(func() {
			res, err := eng.ExecuteTask(ctx, t)
			outcomes[i] = outcome{Task: t, Result: res, Err: err}
			if err != nil {
				outcomes[i].Error = err.Error()
			}
		})
	}
	p.Wait()

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}

	out := cmd.OutOrStdout()
	if runSyncAfter && !eng.ForceSync(ctx) {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: pending results could not be synced")
	}

	if runJSON {
		if err := writeJSON(out, struct {
			Outcomes []outcome `json:"outcomes"`
			Status   any       `json:"status"`
		}{outcomes, eng.Status()}); err != nil {
			return err
		}
	} else {
		renderOutcomes(out, outcomes)
		st := eng.Status()
		fmt.Fprintf(out, "%d tasks: %d local, %d remote, %d failed, %d pending sync\n",
			len(tasks), st.Dispatcher.LocalTasks, st.Dispatcher.RemoteTasks, failed, st.PendingSyncCount)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", failed, len(tasks))
	}
	return nil
}
