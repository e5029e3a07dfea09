package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Iron-Ham/edgeshift/internal/task"
	"github.com/spf13/cobra"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// setupConfig writes a config file that keeps all state in memory and
// returns its path.
func setupConfig(t *testing.T, extra string) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `store:
  backend: memory
logging:
  enabled: false
device:
  poll_host: false
` + extra
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "edgeshift" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "edgeshift")
	}

	expectedCmds := []string{"exec", "run", "serve", "status", "sync", "config"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, name := range expectedCmds {
		if !cmdMap[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestParseTaskFile(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{
			name: "tasks map",
			input: `tasks:
  - id: sum-1
    kind: data
    operation: sum
    complexity: low
    payload: [1, 2, 3]
  - kind: text
    operation: uppercase
    payload: hi
`,
			want: 2,
		},
		{
			name: "bare list",
			input: `- id: a
  kind: data
  operation: count
`,
			want: 1,
		},
		{
			name:  "json list",
			input: `[{"id": "j", "kind": "data", "operation": "max", "payload": [4, 2]}]`,
			want:  1,
		},
		{name: "empty", input: "  \n", want: 0},
		{name: "invalid", input: "tasks: [", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := parseTaskFile([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTaskFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(tasks) != tt.want {
				t.Fatalf("got %d tasks, want %d", len(tasks), tt.want)
			}
			for _, task := range tasks {
				if task.ID == "" {
					t.Error("task ID should be generated when missing")
				}
			}
		})
	}
}

func TestParseTaskFile_Fields(t *testing.T) {
	tasks, err := parseTaskFile([]byte(`tasks:
  - id: s
    kind: data
    operation: sum
    complexity: high
    priority: low
    payloadSizeKB: 12.5
    requireSync: true
    payload: {items: [1, 2]}
`))
	if err != nil {
		t.Fatalf("parseTaskFile() error = %v", err)
	}
	got := tasks[0]
	if got.Complexity != task.LevelHigh || got.Priority != task.LevelLow {
		t.Errorf("levels = %q/%q, want high/low", got.Complexity, got.Priority)
	}
	if got.PayloadSizeKB == nil || *got.PayloadSizeKB != 12.5 {
		t.Errorf("PayloadSizeKB = %v, want 12.5", got.PayloadSizeKB)
	}
	if !got.RequireSync {
		t.Error("RequireSync should be true")
	}
	if _, ok := got.Payload.(map[string]any); !ok {
		t.Errorf("Payload type = %T, want map", got.Payload)
	}
}

func TestBuildExecTask(t *testing.T) {
	t.Cleanup(func() {
		execID, execComplexity, execPriority, execSizeKB = "", "", "", -1
	})

	execID, execComplexity, execPriority, execSizeKB = "x", "HIGH", "", 3
	got, err := buildExecTask([]string{"data", "sum", "[1, 2]"})
	if err != nil {
		t.Fatalf("buildExecTask() error = %v", err)
	}
	if got.ID != "x" || got.Key() != "data.sum" {
		t.Errorf("task = %+v", got)
	}
	if got.Complexity != task.LevelHigh || got.Priority != "" {
		t.Errorf("levels = %q/%q, want high/unset", got.Complexity, got.Priority)
	}
	if got.PayloadSizeKB == nil || *got.PayloadSizeKB != 3 {
		t.Errorf("PayloadSizeKB = %v, want 3", got.PayloadSizeKB)
	}
	if items, ok := got.Payload.([]any); !ok || len(items) != 2 {
		t.Errorf("Payload = %#v, want two items", got.Payload)
	}

	execComplexity = "extreme"
	if _, err := buildExecTask([]string{"data", "sum"}); err == nil {
		t.Error("expected error for invalid complexity")
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{15.0, "15"},
		{map[string]any{"a": 1}, `{"a":1}`},
		{strings.Repeat("x", 80), strings.Repeat("x", 57) + "..."},
	}
	for _, tt := range tests {
		if got := formatValue(tt.in); got != tt.want {
			t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderOutcomes(t *testing.T) {
	var buf bytes.Buffer
	renderOutcomes(&buf, []outcome{
		{
			Task:   task.Task{ID: "ok-1", Kind: "data", Operation: "sum"},
			Result: task.Result{Value: 15.0, Location: task.LocationLocal, FromCache: true},
		},
		{
			Task: task.Task{ID: "bad-1", Kind: "data", Operation: "nope"},
			Err:  errors.New("processor not found"),
		},
	})

	out := buf.String()
	for _, want := range []string{"ok-1", "data.sum", "local (cache)", "15", "bad-1", "failed", "processor not found"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestExecCommand(t *testing.T) {
	cfgFile := setupConfig(t, "")
	t.Cleanup(func() { execJSON = false })

	out, err := executeCommand(rootCmd, "--config", cfgFile, "exec", "data", "sum", "[1, 2, 3, 4, 5]", "--json")
	if err != nil {
		t.Fatalf("exec failed: %v\n%s", err, out)
	}

	var got outcome
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got.Result.Value != 15.0 {
		t.Errorf("value = %v, want 15", got.Result.Value)
	}
	if got.Result.Location != task.LocationLocal {
		t.Errorf("location = %q, want local", got.Result.Location)
	}
}

func TestRunCommand(t *testing.T) {
	cfgFile := setupConfig(t, "")
	t.Cleanup(func() { runJSON = false })

	tasksFile := filepath.Join(t.TempDir(), "tasks.yaml")
	content := `tasks:
  - id: sum-1
    kind: data
    operation: sum
    complexity: low
    payload: [1, 2, 3, 4, 5]
  - id: words
    kind: text
    operation: wordcount
    payload: "the quick brown fox"
`
	if err := os.WriteFile(tasksFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write tasks: %v", err)
	}

	out, err := executeCommand(rootCmd, "--config", cfgFile, "run", "-f", tasksFile, "--json")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}

	var got struct {
		Outcomes []outcome `json:"outcomes"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(got.Outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(got.Outcomes))
	}
	if got.Outcomes[0].Task.ID != "sum-1" || got.Outcomes[0].Result.Value != 15.0 {
		t.Errorf("first outcome = %+v", got.Outcomes[0])
	}
	if got.Outcomes[1].Result.Value != 4.0 {
		t.Errorf("wordcount = %v, want 4", got.Outcomes[1].Result.Value)
	}
}

func TestConfigValidateCommand(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfgFile := setupConfig(t, "")
		out, err := executeCommand(rootCmd, "--config", cfgFile, "config", "validate")
		if err != nil {
			t.Fatalf("validate failed: %v\n%s", err, out)
		}
		if !strings.Contains(out, "Configuration is valid.") {
			t.Errorf("unexpected output: %s", out)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		cfgFile := setupConfig(t, "executor:\n  max_cache_size: -1\n")
		if _, err := executeCommand(rootCmd, "--config", cfgFile, "config", "validate"); err == nil {
			t.Error("expected validation error")
		}
	})
}

func TestConfigShowCommand(t *testing.T) {
	cfgFile := setupConfig(t, "")
	out, err := executeCommand(rootCmd, "--config", cfgFile, "config", "show")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	for _, want := range []string{cfgFile, "backend: memory", "scoring:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
