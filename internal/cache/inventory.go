package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// 每次 Readdir 拉取的条目数，避免一次性物化超大目录。
const readdirBatch = 256

// lastAccessedLayout 是 Describe 输出的 ISO-8601 本地时间格式。
const lastAccessedLayout = "2006-01-02T15:04:05.999999"

// Exists 只检查正式路径，不看暂存目录。
func (s *Store) Exists(id string) bool {
	if !s.Enabled() || ValidateID(id) != nil {
		return false
	}
	info, err := s.fs.Stat(s.PathFor(id))
	return err == nil && info.Mode().IsRegular()
}

// Purge 删除单个条目，条目不存在时不报错。
func (s *Store) Purge(id string) error {
	if !s.Enabled() {
		return nil
	}
	if err := ValidateID(id); err != nil {
		return err
	}
	path := s.PathFor(id)
	s.logFields("cache_purge", id).WithField("path", path).Debug("deleting cache entry")
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("purge %s: %w", id, err)
	}
	return nil
}

// PurgeAll 删除当前可枚举的所有条目。与之并发提交的新条目可能被删也可能保留。
// 先完整枚举再删除，避免在同一个打开的目录句柄上边读边删。
func (s *Store) PurgeAll() error {
	if !s.Enabled() {
		return nil
	}
	var paths []string
	for path, err := range s.RawEntries() {
		if err != nil {
			return err
		}
		paths = append(paths, path)
	}

	p := pool.New().WithErrors().WithMaxGoroutines(s.workers)
	for _, path := range paths {
		p.Go(func() error {
			if err := s.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("purge %s: %w", filepath.Base(path), err)
			}
			return nil
		})
	}
	err := p.Wait()
	s.logger.WithFields(logrus.Fields{
		"action":  "cache_purge_all",
		"entries": len(paths),
	}).Info("cache purged")
	return err
}

// RawEntries 惰性枚举 Root 下的普通文件（跳过 tmp/ 与其它非普通文件）。
// 每次调用都重新打开目录，因此可重复迭代并反映当前状态。
func (s *Store) RawEntries() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !s.Enabled() {
			return
		}
		dir, err := s.fs.Open(s.cfg.Root)
		if err != nil {
			yield("", fmt.Errorf("open cache root: %w", err))
			return
		}
		defer dir.Close()

		for {
			infos, err := dir.Readdir(readdirBatch)
			for _, info := range infos {
				if !info.Mode().IsRegular() {
					continue
				}
				if !yield(filepath.Join(s.cfg.Root, info.Name()), nil) {
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield("", fmt.Errorf("read cache root: %w", err))
				}
				return
			}
			if len(infos) == 0 {
				return
			}
		}
	}
}

// Describe 返回每个可识别条目的 ID、名称、大小与最近访问时间，按最近访问时间升序
// （最久未访问在前，便于 LRU 淘汰），时间相同时按 ID 排序。
// 文件名无法解析为对象 ID 的杂项文件、以及枚举期间被并发删除的条目都会被跳过。
func (s *Store) Describe() ([]EntryInfo, error) {
	entries := []EntryInfo{}
	for path, err := range s.RawEntries() {
		if err != nil {
			return nil, err
		}
		id, ok := ParseID(filepath.Base(path))
		if !ok {
			continue
		}
		entry, ok, err := s.describe(path, id)
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, entry)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].AccessedAt.Equal(entries[j].AccessedAt) {
			return entries[i].AccessedAt.Before(entries[j].AccessedAt)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

// Lookup 返回单个已提交条目的描述；条目不存在或缓存未启用时返回 ErrNotFound。
func (s *Store) Lookup(id string) (EntryInfo, error) {
	if err := ValidateID(id); err != nil {
		return EntryInfo{}, err
	}
	if !s.Enabled() {
		return EntryInfo{}, ErrNotFound
	}
	entry, ok, err := s.describe(s.PathFor(id), id)
	if err != nil {
		return EntryInfo{}, err
	}
	if !ok {
		return EntryInfo{}, ErrNotFound
	}
	return entry, nil
}

func (s *Store) describe(path, id string) (EntryInfo, bool, error) {
	info, err := s.fs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return EntryInfo{}, false, nil
		}
		return EntryInfo{}, false, fmt.Errorf("stat %s: %w", id, err)
	}
	if !info.Mode().IsRegular() {
		return EntryInfo{}, false, nil
	}

	accessed := accessTime(info)
	if accessed.IsZero() {
		accessed = info.ModTime()
	}

	name, err := s.meta.GetDefault(path, AttrImageName, UnknownName)
	if err != nil {
		return EntryInfo{}, false, fmt.Errorf("read name of %s: %w", id, err)
	}
	var hits int64
	if raw, err := s.meta.GetDefault(path, AttrHits, ""); err == nil && raw != "" {
		hits, _ = strconv.ParseInt(raw, 10, 64)
	}

	return EntryInfo{
		ID:           id,
		Name:         name,
		Size:         info.Size(),
		LastAccessed: accessed.Local().Format(lastAccessedLayout),
		Hits:         hits,
		AccessedAt:   accessed,
	}, true, nil
}

// Stats 统计条目数量与总大小。
func (s *Store) Stats() (Stats, error) {
	entries, err := s.Describe()
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Entries: len(entries)}
	for _, entry := range entries {
		stats.TotalBytes += entry.Size
	}
	return stats, nil
}
