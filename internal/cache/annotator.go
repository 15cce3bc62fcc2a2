package cache

import (
	"errors"
	"io/fs"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/teecache/internal/xattr"
)

// AttrStore 是扩展属性的底层读写能力，Set 通过 Outcome 区分"已写入"与"不支持"。
type AttrStore interface {
	Set(path, key, value string) (xattr.Outcome, error)
	Get(path, key string) (string, error)
}

// OSAttrStore 直接使用操作系统 xattr。
type OSAttrStore struct{}

func (OSAttrStore) Set(path, key, value string) (xattr.Outcome, error) {
	return xattr.Set(path, key, value)
}

func (OSAttrStore) Get(path, key string) (string, error) {
	return xattr.Get(path, key)
}

// NoAttrStore 用于不落在真实磁盘上的文件系统（如内存 Fs），总是报告不支持。
type NoAttrStore struct{}

func (NoAttrStore) Set(string, string, string) (xattr.Outcome, error) {
	return xattr.Unsupported, nil
}

func (NoAttrStore) Get(string, string) (string, error) {
	return "", xattr.ErrUnsupported
}

// Annotator 以 best-effort 方式附加元数据：文件系统不支持时只记 warning，
// 其它 I/O 错误照常返回。"不支持"只在这里被吸收。
type Annotator struct {
	attrs  AttrStore
	logger *logrus.Logger
}

// NewAnnotator 包装 AttrStore。
func NewAnnotator(attrs AttrStore, logger *logrus.Logger) *Annotator {
	if attrs == nil {
		attrs = NoAttrStore{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Annotator{attrs: attrs, logger: logger}
}

// Set 写入属性，文件系统不支持时返回 nil。
func (a *Annotator) Set(path, key, value string) error {
	outcome, err := a.attrs.Set(path, key, value)
	if err != nil {
		return err
	}
	if outcome == xattr.Unsupported {
		a.logger.WithFields(logrus.Fields{
			"action": "cache_xattr",
			"path":   path,
			"key":    key,
		}).Warn("xattrs not supported, skipping")
	}
	return nil
}

// Get 读取属性；缺失或不支持时返回 ErrAttrNotFound。
func (a *Annotator) Get(path, key string) (string, error) {
	value, err := a.attrs.Get(path, key)
	if err == nil {
		return value, nil
	}
	if errors.Is(err, xattr.ErrNotFound) || errors.Is(err, xattr.ErrUnsupported) {
		return "", ErrAttrNotFound
	}
	return "", err
}

// GetDefault 读取属性，缺失、不支持或文件已被并发删除时返回 def。
func (a *Annotator) GetDefault(path, key, def string) (string, error) {
	value, err := a.Get(path, key)
	switch {
	case err == nil:
		return value, nil
	case errors.Is(err, ErrAttrNotFound), errors.Is(err, fs.ErrNotExist):
		return def, nil
	default:
		return def, err
	}
}

// Increment 对整型属性加 n；属性缺失时从 0 开始。
//
// 读-改-写之间没有加锁，并发调用可能丢失增量。该计数只用于统计展示，
// 不参与任何正确性判断，所以不引入同步。
func (a *Annotator) Increment(path, key string, n int64) error {
	raw, err := a.attrs.Get(path, key)
	switch {
	case err == nil:
	case errors.Is(err, xattr.ErrUnsupported):
		return nil
	case errors.Is(err, xattr.ErrNotFound):
		raw = "0"
	default:
		return err
	}
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		count = 0
	}
	return a.Set(path, key, strconv.FormatInt(count+n, 10))
}
