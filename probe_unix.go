//go:build unix

package biosverify

import "golang.org/x/sys/unix"

// runningAsRoot 以有效 uid 判断是否已具备读取 SMBIOS 的权限
func runningAsRoot() bool {
	return unix.Geteuid() == 0
}
