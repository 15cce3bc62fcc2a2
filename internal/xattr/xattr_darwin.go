//go:build darwin

package xattr

import (
	"errors"

	"golang.org/x/sys/unix"
)

func qualify(key string) string {
	return key
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
	n, err := unix.Getxattr(path, key, buf)
	if err != nil {
		return nil, translate(err)
	}
	return buf[:n], nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ENOTSUP), errors.Is(err, unix.EOPNOTSUPP):
		return errors.Join(ErrUnsupported, err)
	case errors.Is(err, unix.ENOATTR):
		return errors.Join(ErrNotFound, err)
	default:
		return err
	}
}
