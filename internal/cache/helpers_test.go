package cache

import (
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/any-hub/teecache/internal/xattr"
)

// memAttrs 是按路径保存属性的假实现；配合 attrFs 在 rename/remove 时搬移或丢弃属性，
// 模拟 xattr 跟随 inode 的行为。
type memAttrs struct {
	mu      sync.Mutex
	fs      afero.Fs
	data    map[string]map[string]string
	setErr  error
	setHits int
}

func newMemAttrs(fsys afero.Fs) *memAttrs {
	return &memAttrs{fs: fsys, data: map[string]map[string]string{}}
}

func (m *memAttrs) Set(path, key, value string) (xattr.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setHits++
	if m.setErr != nil {
		return xattr.Applied, m.setErr
	}
	if _, err := m.fs.Stat(path); err != nil {
		return xattr.Applied, err
	}
	if m.data[path] == nil {
		m.data[path] = map[string]string{}
	}
	m.data[path][key] = value
	return xattr.Applied, nil
}

func (m *memAttrs) Get(path, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.fs.Stat(path); err != nil {
		return "", err
	}
	value, ok := m.data[path][key]
	if !ok {
		return "", xattr.ErrNotFound
	}
	return value, nil
}

func (m *memAttrs) move(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if attrs, ok := m.data[from]; ok {
		m.data[to] = attrs
		delete(m.data, from)
	} else {
		delete(m.data, to)
	}
}

func (m *memAttrs) drop(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, path)
}

type attrFs struct {
	afero.Fs
	attrs     *memAttrs
	renameErr error
}

func (f *attrFs) Rename(oldname, newname string) error {
	if f.renameErr != nil {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: f.renameErr}
	}
	if err := f.Fs.Rename(oldname, newname); err != nil {
		return err
	}
	f.attrs.move(oldname, newname)
	return nil
}

func (f *attrFs) Remove(name string) error {
	if err := f.Fs.Remove(name); err != nil {
		return err
	}
	f.attrs.drop(name)
	return nil
}

type memHarness struct {
	store *Store
	fs    *attrFs
	attrs *memAttrs
	hook  *test.Hook
}

func newMemStore(t *testing.T, opts ...Option) *memHarness {
	t.Helper()
	base := afero.NewMemMapFs()
	attrs := newMemAttrs(base)
	fsys := &attrFs{Fs: base, attrs: attrs}
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	opts = append([]Option{WithFs(fsys), WithAttrStore(attrs), WithLogger(logger)}, opts...)
	store, err := NewStore(Config{Enabled: true, Root: "/cache"}, opts...)
	require.NoError(t, err)
	return &memHarness{store: store, fs: fsys, attrs: attrs, hook: hook}
}

func newDiskStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	logger, _ := test.NewNullLogger()
	opts = append([]Option{WithLogger(logger)}, opts...)
	store, err := NewStore(Config{Enabled: true, Root: t.TempDir()}, opts...)
	require.NoError(t, err)
	return store
}

func writeObject(t *testing.T, store *Store, id, name, payload string) {
	t.Helper()
	err := store.WriteObject(Object{ID: id, Name: name}, func(w io.Writer) error {
		_, err := io.Copy(w, strings.NewReader(payload))
		return err
	})
	require.NoError(t, err)
}

func readObject(t *testing.T, store *Store, id string) string {
	t.Helper()
	var body []byte
	err := store.ReadObject(id, func(r io.Reader) error {
		var err error
		body, err = io.ReadAll(r)
		return err
	})
	require.NoError(t, err)
	return string(body)
}

func stagingExists(t *testing.T, store *Store, id string) bool {
	t.Helper()
	_, err := store.fs.Stat(store.StagingPathFor(id))
	if err == nil {
		return true
	}
	require.ErrorIs(t, err, fs.ErrNotExist)
	return false
}
