package cache

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// EnsureReady 在缓存启用时创建 Root/tmp（连带创建 Root），重复调用无副作用。
func EnsureReady(fsys afero.Fs, cfg Config, logger *logrus.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	staging := cfg.StagingDir()
	info, err := fsys.Stat(staging)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return fmt.Errorf("cache staging path %s is not a directory", staging)
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("stat cache staging dir: %w", err)
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"action": "cache_dir_created",
			"path":   cfg.Root,
		}).Info("cache directory does not exist, creating")
	}
	if err := fsys.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create cache staging dir: %w", err)
	}
	return nil
}
