//go:build linux

package xattr

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Linux 只允许非特权进程写 user.* 命名空间。
func qualify(key string) string {
	return "user." + key
}

func setAttr(path, key string, value []byte) error {
	return translate(unix.Setxattr(path, key, value, 0))
}

func getAttr(path, key string) ([]byte, error) {
	size, err := unix.Getxattr(path, key, nil)
	if err != nil {
		return nil, translate(err)
	}
	buf := make([]byte, size)
	for {
		n, err := unix.Getxattr(path, key, buf)
		if errors.Is(err, unix.ERANGE) {
			// 两次调用之间值被改大了，重新取长度。
			size, err = unix.Getxattr(path, key, nil)
			if err != nil {
				return nil, translate(err)
			}
			buf = make([]byte, size)
			continue
		}
		if err != nil {
			return nil, translate(err)
		}
		return buf[:n], nil
	}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ENOTSUP), errors.Is(err, unix.EOPNOTSUPP):
		return errors.Join(ErrUnsupported, err)
	case errors.Is(err, unix.ENODATA):
		return errors.Join(ErrNotFound, err)
	default:
		return err
	}
}
