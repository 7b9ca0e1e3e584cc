// SPDX-License-Identifier: GPL-3.0-or-later

//go:build unix

package fileinfo

import (
	"io/fs"
	"syscall"
)

func ownership(fi fs.FileInfo) (mode uint32, uid, gid int) {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return uint32(st.Mode), int(st.Uid), int(st.Gid)
	}
	return unixMode(fi.Mode()), 0, 0
}
