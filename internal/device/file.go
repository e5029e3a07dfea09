package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Iron-Ham/edgeshift/internal/logging"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const fileDebounce = 50 * time.Millisecond

// FileSource pushes readings from a YAML (or JSON) telemetry file into a
// Monitor whenever the file changes. External agents (a battery daemon, a
// connectivity probe, a test harness) write the file; edgeshift only reads it.
type FileSource struct {
	path   string
	logger *logging.Logger
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string, logger *logging.Logger) *FileSource {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &FileSource{
		path:   path,
		logger: logger.WithComponent("device").With("telemetry_file", path),
	}
}

// ReadFile decodes the telemetry file at path.
func ReadFile(path string) (Reading, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Reading{}, err
	}
	var r Reading
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Reading{}, fmt.Errorf("decode telemetry file: %w", err)
	}
	return r, nil
}

// Run applies the current file contents, then watches the file's directory
// and re-applies it after each write until ctx is done. The directory is
// watched rather than the file so that atomic replace-by-rename is seen.
func (f *FileSource) Run(ctx context.Context, m *Monitor) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	f.load(m)

	// Editors and writers often emit several events per save.
	debounce := time.NewTimer(0)
	<-debounce.C
	defer debounce.Stop()

	target := filepath.Clean(f.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(fileDebounce)
		case <-debounce.C:
			f.load(m)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("telemetry watcher error", "error", err)
		}
	}
}

func (f *FileSource) load(m *Monitor) {
	r, err := ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			f.logger.Warn("telemetry file unreadable", "error", err)
		}
		return
	}
	m.Apply("file", r)
}
