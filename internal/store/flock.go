package store

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

const lockFileName = "store.lock"

// FileLock guards the state file across processes with flock(2). Readers
// take a shared lock, writers an exclusive one.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a FileLock whose lock file lives at dir/store.lock.
func NewFileLock(dir string) *FileLock {
	return &FileLock{path: filepath.Join(dir, lockFileName)}
}

// Lock acquires an exclusive lock, blocking until available.
func (fl *FileLock) Lock() error {
	return fl.acquire(syscall.LOCK_EX)
}

// RLock acquires a shared lock, blocking while a writer holds the lock.
func (fl *FileLock) RLock() error {
	return fl.acquire(syscall.LOCK_SH)
}

func (fl *FileLock) acquire(how int) error {
	if fl.file != nil {
		return fmt.Errorf("lock %s already held", fl.path)
	}
	f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), how); err != nil {
		_ = f.Close()
		return fmt.Errorf("flock: %w", err)
	}
	fl.file = f
	return nil
}

// Unlock releases the lock. Unlocking a lock that is not held is a no-op.
func (fl *FileLock) Unlock() error {
	if fl.file == nil {
		return nil
	}
	f := fl.file
	fl.file = nil

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		_ = f.Close()
		return fmt.Errorf("funlock: %w", err)
	}
	return f.Close()
}

// withLock runs fn while holding the lock for dir.
func withLock(dir string, exclusive bool, fn func() error) error {
	fl := NewFileLock(dir)
	acquire := fl.RLock
	if exclusive {
		acquire = fl.Lock
	}
	if err := acquire(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()
	return fn()
}
