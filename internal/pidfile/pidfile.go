// Package pidfile manages a file holding the pid of the running process.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile is a file used to store the process ID of a running process.
type PIDFile struct {
	path string
}

func processExists(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}

func checkPIDFileAlreadyExists(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return nil
	}
	if processExists(pid) {
		return fmt.Errorf("pid file found, ensure imonitor is not running or delete %s", path)
	}
	return nil
}

// New creates a PIDfile using the specified path. It fails when the file
// names a live process.
func New(path string) (*PIDFile, error) {
	if err := checkPIDFileAlreadyExists(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file := &PIDFile{path: path}
	if err := file.Write(); err != nil {
		return nil, err
	}
	return file, nil
}

// Write stores the current pid
func (file PIDFile) Write() error {
	if file.path == "" {
		return errors.New("pidfile: empty path")
	}
	return os.WriteFile(file.path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// Remove removes the PIDFile.
func (file PIDFile) Remove() error {
	return os.Remove(file.path)
}
