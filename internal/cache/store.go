package cache

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// 属性键，磁盘上的名字需要与既有缓存目录保持兼容。
const (
	AttrImageName = "image_name"
	AttrHits      = "hits"

	// UnknownName 是未记录显示名时 Describe 返回的占位值。
	UnknownName = "UNKNOWN"

	stagingDirName     = "tmp"
	defaultPurgeWorker = 4
)

// Config 描述缓存开关与根目录；暂存目录固定为 Root/tmp，保证与根目录同一文件系统。
type Config struct {
	Enabled bool
	Root    string
}

// StagingDir 返回暂存目录路径。
func (c Config) StagingDir() string {
	return filepath.Join(c.Root, stagingDirName)
}

// Object 标识一个待缓存对象；Name 是写入成功后附加的可读名称。
type Object struct {
	ID   string
	Name string
}

// Mode 是会话的打开方式。
type Mode string

const (
	ModeRead  Mode = "read"
	ModeWrite Mode = "write"
)

// EntryInfo 是 Describe 对单个缓存条目的描述，供淘汰任务使用。
type EntryInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastAccessed string    `json:"last_accessed"`
	Hits         int64     `json:"hits,omitempty"`
	AccessedAt   time.Time `json:"-"`
}

// Stats 汇总当前缓存条目数量与总字节数。
type Stats struct {
	Entries    int   `json:"entries"`
	TotalBytes int64 `json:"total_bytes"`
}

// Store 管理缓存根目录下的读写会话与条目清单。单进程内可并发使用，不做跨进程加锁。
type Store struct {
	cfg     Config
	fs      afero.Fs
	attrs   AttrStore
	meta    *Annotator
	logger  *logrus.Logger
	hits    bool
	workers int
}

// Option 调整 Store 的可选行为。
type Option func(*Store)

// WithFs 替换底层文件系统，测试中常用 afero.NewMemMapFs。
func WithFs(fs afero.Fs) Option {
	return func(s *Store) {
		s.fs = fs
	}
}

// WithAttrStore 替换扩展属性实现。
func WithAttrStore(attrs AttrStore) Option {
	return func(s *Store) {
		s.attrs = attrs
	}
}

// WithLogger 指定日志输出。
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithHitCounter 在每次读会话结束时累加 hits 属性。
//
// 读-改-写不是原子的，并发读者可能丢失计数；该值只用于展示统计。
func WithHitCounter() Option {
	return func(s *Store) {
		s.hits = true
	}
}

// WithPurgeWorkers 设置 PurgeAll 的并发删除数。
func WithPurgeWorkers(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewStore 构建缓存实例并确保目录就绪；缓存关闭时不会触碰文件系统。
func NewStore(cfg Config, opts ...Option) (*Store, error) {
	s := &Store{
		cfg:     cfg,
		fs:      afero.NewOsFs(),
		logger:  logrus.StandardLogger(),
		workers: defaultPurgeWorker,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.attrs == nil {
		if _, ok := s.fs.(*afero.OsFs); ok {
			s.attrs = OSAttrStore{}
		} else {
			s.attrs = NoAttrStore{}
		}
	}
	s.meta = NewAnnotator(s.attrs, s.logger)

	if !cfg.Enabled {
		return s, nil
	}
	if cfg.Root == "" {
		return nil, errors.New("cache root required when cache is enabled")
	}
	abs, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve cache root: %w", err)
	}
	s.cfg.Root = abs

	if err := EnsureReady(s.fs, s.cfg, s.logger); err != nil {
		return nil, err
	}
	return s, nil
}

// Enabled 返回缓存是否启用。
func (s *Store) Enabled() bool {
	return s != nil && s.cfg.Enabled
}

// Config 返回生效的配置（Root 已转为绝对路径）。
func (s *Store) Config() Config {
	return s.cfg
}

// Metadata 返回绑定在该 Store 上的属性读写器。
func (s *Store) Metadata() *Annotator {
	return s.meta
}

func (s *Store) logFields(action, id string) *logrus.Entry {
	return s.logger.WithFields(logrus.Fields{
		"action":    action,
		"object_id": id,
	})
}
