//go:build !unix

package biosverify

// runningAsRoot 非 unix 平台没有 sudo，直接执行
func runningAsRoot() bool {
	return true
}
