//go:build !windows

package utils

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"syscall"

	"github.com/djherbis/times"
)

// Ownership resolves the owner and group names of a file, falling back to
// numeric IDs when the account database has no entry.
func Ownership(info os.FileInfo) (owner, group string) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok || stat == nil {
		return "", ""
	}
	owner = strconv.FormatUint(uint64(stat.Uid), 10)
	group = strconv.FormatUint(uint64(stat.Gid), 10)
	if u, err := user.LookupId(owner); err == nil {
		owner = u.Username
	}
	if g, err := user.LookupGroupId(group); err == nil {
		group = g.Name
	}
	return owner, group
}

// ModeOctal renders the permission bits as a four-digit octal string,
// including setuid/setgid/sticky.
func ModeOctal(info os.FileInfo) string {
	mode := info.Mode()
	perm := uint32(mode.Perm())
	if mode&os.ModeSetuid != 0 {
		perm |= 0o4000
	}
	if mode&os.ModeSetgid != 0 {
		perm |= 0o2000
	}
	if mode&os.ModeSticky != 0 {
		perm |= 0o1000
	}
	return fmt.Sprintf("%04o", perm)
}

// ModTimeEpoch returns the modification time as Unix epoch seconds.
func ModTimeEpoch(info os.FileInfo) int64 {
	return times.Get(info).ModTime().Unix()
}
