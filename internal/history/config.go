package history

import (
	"codeberg.org/mutker/axebench/internal/errors"
	"github.com/mitchellh/go-homedir"
)

const (
	// File system permissions and paths
	defaultDirPerm = 0o755
	DefaultDBPath  = "~/.local/share/axebench/history.db"
)

type Config struct {
	DBPath  string
	Enabled bool
}

func DefaultConfig() Config {
	return Config{
		DBPath:  DefaultDBPath,
		Enabled: false, // Disabled by default
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate DBPath if history is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	return nil
}

// expandedPath resolves a leading ~ in the database path
func (c Config) expandedPath() (string, error) {
	path, err := homedir.Expand(c.DBPath)
	if err != nil {
		return "", errors.New().Wrap(ErrInvalidDBPath, err)
	}
	return path, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
