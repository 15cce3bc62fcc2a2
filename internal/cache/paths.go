package cache

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// PathFor 返回对象的正式缓存路径 Root/<id>。
func (s *Store) PathFor(id string) string {
	return filepath.Join(s.cfg.Root, id)
}

// StagingPathFor 返回对象写入过程中的暂存路径 Root/tmp/<id>。
func (s *Store) StagingPathFor(id string) string {
	return filepath.Join(s.cfg.StagingDir(), id)
}

// ValidateID 检查 id 能否原样作为单层文件名，且能被 ParseID 从目录中还原，
// 保证每个已提交条目都会出现在 Describe 中。
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidID)
	case strings.ContainsAny(id, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidID, id)
	case strings.HasPrefix(id, "."):
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	case id == stagingDirName:
		return fmt.Errorf("%w: %q is reserved for staging", ErrInvalidID, id)
	}
	if _, ok := ParseID(id); !ok {
		return fmt.Errorf("%w: %q is neither a decimal integer nor a UUID", ErrInvalidID, id)
	}
	return nil
}

// ParseID 把目录中的文件名还原为对象 ID。只接受十进制整数或规范形式的 UUID，
// 其余文件（编辑器残留、手工拷贝等）视为杂项并在枚举时跳过。
func ParseID(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if _, err := strconv.ParseUint(name, 10, 64); err == nil {
		return name, true
	}
	parsed, err := uuid.Parse(name)
	if err != nil {
		return "", false
	}
	if parsed.String() != strings.ToLower(name) {
		return "", false
	}
	return name, true
}
