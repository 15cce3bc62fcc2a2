package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound 表示缓存中不存在该对象（未命中），调用方应回源而非视为故障。
	ErrNotFound = errors.New("cache entry not found")
	// ErrInvalidMode 表示 Open 收到 read/write 以外的模式。
	ErrInvalidMode = errors.New("invalid cache session mode")
	// ErrInvalidID 表示对象 ID 不能安全地作为文件名使用。
	ErrInvalidID = errors.New("invalid object id")
	// ErrDisabled 表示缓存未启用。
	ErrDisabled = errors.New("cache disabled")
	// ErrStaging 表示暂存文件创建或写入失败，返回前已回滚。
	ErrStaging = errors.New("cache staging failed")
	// ErrCommit 表示暂存文件 rename 到正式路径失败，返回前已回滚。
	ErrCommit = errors.New("cache commit failed")
	// ErrAttrNotFound 表示属性缺失（或文件系统不支持属性），可用 errors.Is(err, ErrNotFound) 判断。
	ErrAttrNotFound = fmt.Errorf("%w: attribute", ErrNotFound)
	// ErrSessionClosed 表示会话已经提交、回滚或关闭。
	ErrSessionClosed = errors.New("cache session closed")
	// ErrWrongMode 表示在读会话上写入/提交，或在写会话上读取。
	ErrWrongMode = errors.New("cache session used in the wrong mode")
)
