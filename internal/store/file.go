package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Iron-Ham/edgeshift/internal/errors"
	"gopkg.in/yaml.v3"
)

// StateFileName is the name of the state file inside the store directory.
const StateFileName = "store.yaml"

// CorruptSuffix is appended to a state file that could not be parsed when it
// is moved aside.
const CorruptSuffix = ".corrupt"

// persistedState is the serializable representation of the store.
type persistedState struct {
	Version int               `yaml:"version"`
	Entries map[string]string `yaml:"entries"`
}

const stateVersion = 1

// FileStore is a Store backed by a YAML file in dir. The full key space is
// held in memory; every mutation rewrites the file.
type FileStore struct {
	dir       string
	recovered error

	mu   sync.RWMutex
	data map[string]string
}

// OpenFileStore opens (or creates) a store in dir and loads any existing state.
// A state file that cannot be parsed is renamed with [CorruptSuffix] and the
// store starts empty; see [FileStore.Recovered].
func OpenFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	fs := &FileStore{dir: dir, data: make(map[string]string)}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Dir returns the directory holding the state file.
func (f *FileStore) Dir() string {
	return f.dir
}

// Recovered returns a non-nil error wrapping errors.ErrCacheCorrupt when the
// state file was unreadable at open and has been moved aside.
func (f *FileStore) Recovered() error {
	return f.recovered
}

func (f *FileStore) Get(key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.data[key]
	if !ok {
		return nil, errors.Wrapf(errors.ErrKeyNotFound, "get %q", key)
	}
	return []byte(v), nil
}

func (f *FileStore) Set(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.data[key]
	f.data[key] = string(value)
	if err := f.save(); err != nil {
		if had {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}
		return err
	}
	return nil
}

// SetMany stores every entry and rewrites the state file once.
func (f *FileStore) SetMany(entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	type prior struct {
		value string
		had   bool
	}
	prev := make(map[string]prior, len(entries))
	for k, v := range entries {
		old, had := f.data[k]
		prev[k] = prior{old, had}
		f.data[k] = string(v)
	}
	if err := f.save(); err != nil {
		for k, p := range prev {
			if p.had {
				f.data[k] = p.value
			} else {
				delete(f.data, k)
			}
		}
		return err
	}
	return nil
}

func (f *FileStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.data[key]
	if !had {
		return nil
	}
	delete(f.data, key)
	if err := f.save(); err != nil {
		f.data[key] = prev
		return err
	}
	return nil
}

func (f *FileStore) Keys(prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return matchingKeys(f.data, prefix), nil
}

// save writes the state file atomically: data is written to a temporary file
// first, then renamed into place while holding the exclusive directory lock.
// Caller must hold f.mu.
func (f *FileStore) save() error {
	return withLock(f.dir, true, f.writeState)
}

func (f *FileStore) writeState() error {
	data, err := yaml.Marshal(persistedState{Version: stateVersion, Entries: f.data})
	if err != nil {
		return fmt.Errorf("marshal store state: %w", err)
	}

	target := filepath.Join(f.dir, StateFileName)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

// load holds the exclusive lock since a corrupt file is renamed aside.
func (f *FileStore) load() error {
	return withLock(f.dir, true, f.readState)
}

func (f *FileStore) readState() error {
	path := filepath.Join(f.dir, StateFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read state file: %w", err)
	}

	var state persistedState
	if err := yaml.Unmarshal(data, &state); err != nil {
		if mvErr := os.Rename(path, path+CorruptSuffix); mvErr != nil {
			return fmt.Errorf("move corrupt state file: %w", mvErr)
		}
		f.recovered = fmt.Errorf("%w: %s moved to %s: %v",
			errors.ErrCacheCorrupt, StateFileName, StateFileName+CorruptSuffix, err)
		return nil
	}
	if state.Entries != nil {
		f.data = state.Entries
	}
	return nil
}
