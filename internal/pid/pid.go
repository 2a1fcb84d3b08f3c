package pid

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/axebench/internal/errors"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// File guards a miner against two benchmark processes at once
type File struct {
	path string
}

// New returns the pid file for a miner address in dir, or the OS temp
// directory when dir is empty.
func New(dir, address string) *File {
	if dir == "" {
		dir = os.TempDir()
	}
	name := fmt.Sprintf("axebench-%s.pid", unsafeChars.ReplaceAllString(address, "_"))

	return &File{path: filepath.Join(dir, name)}
}

func (f *File) Path() string {
	return f.path
}

// Write writes the current process ID, failing when a live process
// already holds the file.
func (f *File) Write() error {
	errFactory := errors.New()

	if bytes, err := os.ReadFile(f.path); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(bytes))); err == nil && pid != os.Getpid() && isAlive(pid) {
			return errFactory.WithData(errors.ErrAlreadyRunning, struct {
				PID  int
				Path string
			}{
				PID:  pid,
				Path: f.path,
			})
		}
	} else if !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.WriteFile(f.path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove removes the PID file.
func (f *File) Remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}

func isAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
