//go:build !linux && !darwin

package xattr

func qualify(key string) string {
	return key
}

func setAttr(string, string, []byte) error {
	return ErrUnsupported
}

func getAttr(string, string) ([]byte, error) {
	return nil, ErrUnsupported
}
