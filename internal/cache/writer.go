package cache

import (
	"context"
	"errors"
	"io"
)

// Fill 实现"未命中时 tee"：把 src 复制到 dst 的同时写入缓存副本，
// 仅当 src 完整读到 EOF 且 dst 全部写成功时才提交；任何失败都回滚，缓存中不会出现半截对象。
// 缓存未启用或暂存文件无法创建时退化为普通复制。
func (s *Store) Fill(ctx context.Context, obj Object, src io.Reader, dst io.Writer) (int64, error) {
	if !s.Enabled() {
		return copyWithContext(ctx, dst, src)
	}

	var (
		copied  int64
		started bool
	)
	err := s.WriteObject(obj, func(w io.Writer) error {
		started = true
		n, err := copyWithContext(ctx, io.MultiWriter(w, dst), src)
		copied = n
		return err
	})
	if err != nil && !started {
		s.logFields("cache_fill_bypassed", obj.ID).WithError(err).Warn("cache write unavailable, streaming without caching")
		return copyWithContext(ctx, dst, src)
	}
	return copied, err
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
