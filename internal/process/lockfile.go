// Package process keeps a single reporter instance per machine. Two
// reporters would hold two counter sessions and report every metric twice.
package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	constants "perfreporter/config"
	"perfreporter/internal/logger"
)

// ErrAlreadyRunning is returned by Acquire when another instance holds the lock
var ErrAlreadyRunning = errors.New("another perfreporter instance is already running")

// LockFile represents an exclusive lock on a PID file
type LockFile struct {
	path string
	file *os.File
	log  *logger.Logger
}

// pidFilePath returns the PID file location for the OS
// Variable (not function) to allow override in tests
var pidFilePath = func() string {
	name := constants.SERVICE_NAME + ".pid"
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("ProgramData"); dir != "" {
			return filepath.Join(dir, constants.SERVICE_NAME, name)
		}
		return filepath.Join(os.TempDir(), name)
	case "linux":
		// Prefer XDG Runtime Dir (cleaned on logout, per-user)
		if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
			return filepath.Join(dir, name)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, constants.CONFIG_DIR_NAME, name)
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d.pid", constants.SERVICE_NAME, os.Getuid()))
}

// Acquire creates and locks the PID file. The lock lives as long as the
// returned LockFile (or the process) does.
func Acquire(log *logger.Logger) (*LockFile, error) {
	path := pidFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create PID directory: %w", err)
	}

	// Open without truncating: a running holder's PID must stay readable
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open PID file: %w", err)
	}

	if err := tryLock(f); err != nil {
		pid := readPID(f)
		f.Close()
		if errors.Is(err, errLocked) {
			if pid > 0 {
				return nil, fmt.Errorf("%w (PID %d)", ErrAlreadyRunning, pid)
			}
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("failed to lock PID file: %w", err)
	}

	if err := writePID(f, os.Getpid()); err != nil {
		unlock(f)
		f.Close()
		return nil, err
	}

	log.Info("Acquired PID file lock: %s (PID: %d)", path, os.Getpid())
	return &LockFile{path: path, file: f, log: log}, nil
}

// Release releases the lock and removes the PID file
func (lf *LockFile) Release() error {
	if lf == nil || lf.file == nil {
		return nil
	}

	lf.log.Info("Releasing PID file lock: %s", lf.path)

	// Remove before unlocking so a new holder never loses its file
	os.Remove(lf.path)
	unlock(lf.file)
	err := lf.file.Close()
	lf.file = nil
	return err
}

// Check reports whether another instance holds the lock, and its PID
func Check() (bool, int, error) {
	f, err := os.Open(pidFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil // No PID file = not running
		}
		return false, 0, fmt.Errorf("failed to open PID file: %w", err)
	}
	defer f.Close()

	if err := tryLock(f); err != nil {
		if errors.Is(err, errLocked) {
			return true, readPID(f), nil
		}
		return false, 0, err
	}

	// Successfully locked = stale PID file
	unlock(f)
	return false, 0, nil
}

func writePID(f *os.File, pid int) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate PID file: %w", err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(pid)+"\n"), 0); err != nil {
		return fmt.Errorf("failed to write PID: %w", err)
	}
	return nil
}

func readPID(f *os.File) int {
	buf := make([]byte, 32)
	n, err := f.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0
	}
	return pid
}
