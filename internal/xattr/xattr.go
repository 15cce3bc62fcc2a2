// Package xattr reads and writes small extended attributes on cache files.
// Support depends on the filesystem, so Set reports a tri-state Outcome
// instead of folding "unsupported" into the error path. Callers that treat
// attributes as advisory can branch on the Outcome without inspecting errnos.
package xattr

import (
	"errors"
	"fmt"
)

// Outcome 描述一次属性写入的结果：已写入或文件系统不支持。
type Outcome int

const (
	Applied Outcome = iota
	Unsupported
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Unsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

var (
	// ErrNotFound 表示文件上不存在该属性。
	ErrNotFound = errors.New("xattr not found")
	// ErrUnsupported 表示底层文件系统不支持扩展属性。
	ErrUnsupported = errors.New("xattr not supported")
)

// Set 写入属性。文件系统不支持时返回 (Unsupported, nil)，其余失败原样返回。
func Set(path, key, value string) (Outcome, error) {
	if key == "" {
		return Applied, errors.New("xattr key required")
	}
	err := setAttr(path, qualify(key), []byte(value))
	switch {
	case err == nil:
		return Applied, nil
	case errors.Is(err, ErrUnsupported):
		return Unsupported, nil
	default:
		return Applied, fmt.Errorf("set xattr %s on %s: %w", key, path, err)
	}
}

// Get 读取属性值，缺失返回 ErrNotFound，不支持返回 ErrUnsupported。
func Get(path, key string) (string, error) {
	if key == "" {
		return "", errors.New("xattr key required")
	}
	data, err := getAttr(path, qualify(key))
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnsupported) {
			return "", err
		}
		return "", fmt.Errorf("get xattr %s on %s: %w", key, path, err)
	}
	return string(data), nil
}
