//go:build !unix

package executor

import "os/exec"

// setProcessGroup is a no-op; cancellation kills the direct child and
// WaitDelay bounds the wait for inherited pipes.
func setProcessGroup(*exec.Cmd) {}
