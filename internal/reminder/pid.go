package reminder

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/danchu1411/taskie-cli/internal/config"
)

func pidPath() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "reminder.pid"), nil
}

func writePID() error {
	path, err := pidPath()
	if err != nil {
		return err
	}
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func removePID() {
	if path, err := pidPath(); err == nil {
		os.Remove(path)
	}
}

// ReadPID returns the PID of a running reminder loop, if any.
func ReadPID() (int, error) {
	path, err := pidPath()
	if err != nil {
		return 0, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("no running reminder found")
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file")
	}

	return pid, nil
}
