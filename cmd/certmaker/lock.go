package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tools.zach/dev/certmaker/internal/paths"
)

// ///////////////////////////////////////////////
// Output Directory Lock
// ///////////////////////////////////////////////

// errOutputLocked is returned when another certmaker process is writing to
// the same output directory.
var errOutputLocked = errors.New("output directory is in use by another certmaker run")

// acquireOutputLock takes an advisory lock on dir's lock file and records
// this process's PID in it. The returned file must be passed to
// [releaseOutputLock] when the batch ends.
func acquireOutputLock(dir string) (*os.File, error) {
	path := filepath.Join(dir, paths.LockFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		if pid := lockHolder(path); pid > 0 {
			return nil, fmt.Errorf("%w (pid %d)", errOutputLocked, pid)
		}
		return nil, errOutputLocked
	}
	if err := f.Truncate(0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	return f, nil
}

// releaseOutputLock unlocks and removes the lock file. A nil f is a no-op.
func releaseOutputLock(f *os.File) {
	if f == nil {
		return
	}
	_ = unlockFile(f)
	f.Close()
	os.Remove(f.Name())
}

// lockHolder returns the PID stored in the lock file, or 0.
func lockHolder(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
