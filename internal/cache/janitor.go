package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Janitor 清理进程崩溃后遗留在 tmp/ 下的暂存文件。写入中的文件 mtime 会持续更新，
// 只有超过 maxAge 未被写过的文件才会被删除。
type Janitor struct {
	store  *Store
	maxAge time.Duration
	now    func() time.Time
	cron   *cron.Cron
}

// NewJanitor 构造清理器，maxAge <= 0 时 Sweep 不做任何事。
func NewJanitor(store *Store, maxAge time.Duration) *Janitor {
	return &Janitor{
		store:  store,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Sweep 删除过期的暂存文件并返回删除数量。
func (j *Janitor) Sweep() (int, error) {
	if j.maxAge <= 0 || !j.store.Enabled() {
		return 0, nil
	}
	staging := j.store.cfg.StagingDir()
	infos, err := afero.ReadDir(j.store.fs, staging)
	if err != nil {
		return 0, fmt.Errorf("read staging dir: %w", err)
	}

	cutoff := j.now().Add(-j.maxAge)
	removed := 0
	var errs []error
	for _, info := range infos {
		if !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(staging, info.Name())
		if err := j.store.fs.Remove(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		removed++
	}

	j.store.logger.WithFields(logrus.Fields{
		"action":  "cache_janitor",
		"removed": removed,
		"max_age": j.maxAge.String(),
	}).Info("stale staging files swept")
	return removed, errors.Join(errs...)
}

// Start 按 cron 表达式周期执行 Sweep，schedule 为空时不启动。
func (j *Janitor) Start(schedule string) error {
	if schedule == "" || j.maxAge <= 0 {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := j.Sweep(); err != nil {
			j.store.logger.WithError(err).WithField("action", "cache_janitor").Warn("staging sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}
	j.cron = c
	c.Start()
	return nil
}

// Stop 停止调度并等待正在执行的 Sweep 结束。
func (j *Janitor) Stop() context.Context {
	if j.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return j.cron.Stop()
}
