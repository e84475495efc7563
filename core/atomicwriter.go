package core

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"time"
)

// AtomicWriteConfig controls atomic writing behavior
type AtomicWriteConfig struct {
	UseFsync       bool          // Force fsync for durability
	LockTimeout    time.Duration // Max time to wait for a file lock
	StaleLock      time.Duration // Lock files older than this are removed
	TempSuffix     string        // Suffix for temporary files
	BackupOriginal bool          // Keep a copy of the original next to the file
}

// DefaultAtomicConfig provides sensible defaults
func DefaultAtomicConfig() AtomicWriteConfig {
	return AtomicWriteConfig{
		UseFsync:       false,
		LockTimeout:    5 * time.Second,
		StaleLock:      time.Minute,
		TempSuffix:     ".treelens.tmp",
		BackupOriginal: false,
	}
}

// AtomicWriter replaces file contents through a temp file and rename, holding a lock file
// for the duration of the write.
type AtomicWriter struct {
	config AtomicWriteConfig
	mu     sync.Mutex
	held   map[string]*os.File
	now    func() time.Time
}

// NewAtomicWriter creates a new atomic writer
func NewAtomicWriter(config AtomicWriteConfig) *AtomicWriter {
	if config.TempSuffix == "" {
		config.TempSuffix = DefaultAtomicConfig().TempSuffix
	}
	return &AtomicWriter{
		config: config,
		held:   make(map[string]*os.File),
		now:    time.Now,
	}
}

// WriteFile atomically writes content to path. It returns the backup path when a backup
// was made.
func (aw *AtomicWriter) WriteFile(path, content string) (string, error) {
	return aw.write(path, content, nil)
}

// ReplaceFile is WriteFile that first checks the file still holds original. A mismatch
// fails with ErrWriteRace and leaves the file alone.
func (aw *AtomicWriter) ReplaceFile(path, original, content string) (string, error) {
	return aw.write(path, content, []byte(original))
}

func (aw *AtomicWriter) write(path, content string, original []byte) (string, error) {
	if err := aw.acquireLock(path); err != nil {
		return "", fmt.Errorf("%w: lock %s: %w", errWrite, path, err)
	}
	defer aw.releaseLock(path)

	current, readErr := os.ReadFile(path)
	if original != nil && (readErr != nil || !bytes.Equal(current, original)) {
		return "", fmt.Errorf("%w: %s", ErrWriteRace, path)
	}

	var mode os.FileMode = 0o644
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	var backup string
	if aw.config.BackupOriginal && readErr == nil {
		backup = fmt.Sprintf("%s.%s.bak", path, aw.now().Format("20060102-150405"))
		if err := os.WriteFile(backup, current, mode); err != nil {
			return "", fmt.Errorf("%w: backup %s: %w", errWrite, path, err)
		}
	}

	tempPath := path + aw.config.TempSuffix
	tmp, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %w", errWrite, err)
	}

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("%w: %w", errWrite, err)
	}
	if aw.config.UseFsync {
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			os.Remove(tempPath)
			return "", fmt.Errorf("%w: sync: %w", errWrite, err)
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("%w: %w", errWrite, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("%w: rename: %w", errWrite, err)
	}
	return backup, nil
}

func (aw *AtomicWriter) acquireLock(path string) error {
	lockPath := path + ".lock"
	deadline := aw.now().Add(aw.config.LockTimeout)

	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			aw.mu.Lock()
			aw.held[path] = f
			aw.mu.Unlock()
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("create lock file: %w", err)
		}

		if aw.isLockStale(lockPath) {
			os.Remove(lockPath)
			continue
		}
		if !aw.now().Before(deadline) {
			return fmt.Errorf("timeout waiting for lock on %s", path)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (aw *AtomicWriter) releaseLock(path string) {
	aw.mu.Lock()
	f, ok := aw.held[path]
	delete(aw.held, path)
	aw.mu.Unlock()

	if ok {
		f.Close()
		os.Remove(path + ".lock")
	}
}

func (aw *AtomicWriter) isLockStale(lockPath string) bool {
	info, err := os.Stat(lockPath)
	if err != nil {
		return os.IsNotExist(err)
	}
	return aw.config.StaleLock > 0 && aw.now().Sub(info.ModTime()) > aw.config.StaleLock
}

// Cleanup releases every lock still held (call on shutdown)
func (aw *AtomicWriter) Cleanup() {
	aw.mu.Lock()
	paths := make([]string, 0, len(aw.held))
	for path := range aw.held {
		paths = append(paths, path)
	}
	aw.mu.Unlock()

	for _, path := range paths {
		aw.releaseLock(path)
	}
}
