package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/afero"
)

type sessionState int

const (
	stateOpen sessionState = iota
	stateCommitted
	stateRolledBack
	stateClosed
)

// Session 是一次读或写的作用域句柄。写会话的数据先落在 Root/tmp/<id>，
// Commit 时通过一次 rename 变为可见；未提交就 Close 会删除暂存文件。
// 读会话只持有正式文件的只读句柄。
//
// 调用方应始终 defer Close()：提交后的 Close 是空操作，
// 失败路径上的 Close 负责回滚。
type Session struct {
	store   *Store
	obj     Object
	mode    Mode
	file    afero.File
	path    string
	staging string
	size    int64
	state   sessionState
	failed  error
}

// Open 打开一个缓存会话，mode 只能是 ModeRead 或 ModeWrite。
//
// 同一 ID 的两个并发写会话共享同一个暂存文件名，后写者覆盖先写者
// （last-write-wins），需要更强保证时由调用方串行化。
func (s *Store) Open(obj Object, mode Mode) (*Session, error) {
	if mode != ModeRead && mode != ModeWrite {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	if err := ValidateID(obj.ID); err != nil {
		return nil, err
	}

	sess := &Session{
		store:   s,
		obj:     obj,
		mode:    mode,
		path:    s.PathFor(obj.ID),
		staging: s.StagingPathFor(obj.ID),
	}
	if mode == ModeWrite {
		f, err := s.fs.OpenFile(sess.staging, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStaging, err)
		}
		sess.file = f
		s.logFields("cache_write_open", obj.ID).Debug("cache staging opened")
		return sess, nil
	}

	f, err := s.fs.Open(sess.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, ErrNotFound
	}
	sess.file = f
	sess.size = info.Size()
	return sess, nil
}

// ID 返回会话对应的对象 ID。
func (s *Session) ID() string {
	return s.obj.ID
}

// Mode 返回会话模式。
func (s *Session) Mode() Mode {
	return s.mode
}

// Size 返回读会话打开时的文件大小，写会话返回已写入字节数。
func (s *Session) Size() int64 {
	return s.size
}

// Read 从正式缓存文件读取数据，仅读会话可用。
func (s *Session) Read(p []byte) (int, error) {
	if s.mode != ModeRead {
		return 0, fmt.Errorf("%w: read on %s session", ErrWrongMode, s.mode)
	}
	if s.state != stateOpen {
		return 0, ErrSessionClosed
	}
	return s.file.Read(p)
}

// Write 向暂存文件写入数据，仅写会话可用。写失败后会话只能回滚。
func (s *Session) Write(p []byte) (int, error) {
	if s.mode != ModeWrite {
		return 0, fmt.Errorf("%w: write on %s session", ErrWrongMode, s.mode)
	}
	if s.state != stateOpen {
		return 0, ErrSessionClosed
	}
	if s.failed != nil {
		return 0, s.failed
	}
	n, err := s.file.Write(p)
	s.size += int64(n)
	if err != nil {
		s.failed = fmt.Errorf("%w: %w", ErrStaging, err)
		return n, s.failed
	}
	return n, nil
}

// Commit 关闭暂存文件、附加显示名并原子地 rename 到正式路径。
// 任一步失败都会先删除暂存文件再返回错误，正式路径不会被创建或修改。
func (s *Session) Commit() error {
	if s.mode != ModeWrite {
		return fmt.Errorf("%w: commit on %s session", ErrWrongMode, s.mode)
	}
	if s.state != stateOpen {
		return ErrSessionClosed
	}
	if s.failed != nil {
		s.rollback()
		return s.failed
	}

	closeErr := s.file.Close()
	s.file = nil
	if closeErr != nil {
		s.rollback()
		return fmt.Errorf("%w: %w", ErrStaging, closeErr)
	}

	if s.obj.Name != "" {
		if err := s.store.meta.Set(s.staging, AttrImageName, s.obj.Name); err != nil {
			s.rollback()
			return fmt.Errorf("%w: %w", ErrStaging, err)
		}
	}

	if err := s.store.fs.Rename(s.staging, s.path); err != nil {
		s.rollback()
		return fmt.Errorf("%w: %w", ErrCommit, err)
	}
	s.state = stateCommitted
	s.store.logFields("cache_commit", s.obj.ID).
		WithField("size", s.size).
		Debug("cache entry committed")
	return nil
}

// Close 释放会话。写会话若未提交则回滚；已提交或已关闭时为空操作。
func (s *Session) Close() error {
	if s.state != stateOpen {
		return nil
	}
	if s.mode == ModeWrite {
		return s.rollback()
	}

	err := s.file.Close()
	s.file = nil
	s.state = stateClosed
	if s.store.hits {
		if hitErr := s.store.meta.Increment(s.path, AttrHits, 1); hitErr != nil {
			s.store.logFields("cache_hits", s.obj.ID).WithError(hitErr).Debug("hit counter update failed")
		}
	}
	return err
}

func (s *Session) rollback() error {
	var closeErr error
	if s.file != nil {
		closeErr = s.file.Close()
		s.file = nil
	}
	s.state = stateRolledBack

	err := s.store.fs.Remove(s.staging)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.store.logFields("cache_rollback", s.obj.ID).WithError(err).Warn("remove staging file failed")
		return err
	}
	s.store.logFields("cache_rollback", s.obj.ID).Debug("cache staging discarded")
	if closeErr != nil && !errors.Is(closeErr, fs.ErrClosed) {
		return closeErr
	}
	return nil
}

// WriteObject 打开写会话并把它交给 fn。fn 返回 nil 时提交，
// 返回错误（或 panic）时回滚并原样返回 fn 的错误。
func (s *Store) WriteObject(obj Object, fn func(w io.Writer) error) error {
	sess, err := s.Open(obj, ModeWrite)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := fn(sess); err != nil {
		return err
	}
	return sess.Commit()
}

// ReadObject 打开读会话并把它交给 fn，任何退出路径上都会释放句柄。
func (s *Store) ReadObject(id string, fn func(r io.Reader) error) (err error) {
	sess, err := s.Open(Object{ID: id}, ModeRead)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sess.Close(); err == nil {
			err = closeErr
		}
	}()
	return fn(sess)
}
