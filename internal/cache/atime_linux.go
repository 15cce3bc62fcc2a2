//go:build linux

package cache

import (
	"io/fs"
	"syscall"
	"time"
)

// accessTime 读取 atime；拿不到或为 0 时返回零值，由调用方回退到 mtime。
func accessTime(info fs.FileInfo) time.Time {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok || (st.Atim.Sec == 0 && st.Atim.Nsec == 0) {
		return time.Time{}
	}
	return time.Unix(int64(st.Atim.Sec), int64(st.Atim.Nsec))
}
