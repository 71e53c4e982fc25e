//go:build !windows

package reply

import (
	"os/exec"
	"syscall"
)

func procAttrNewGroup() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process != nil {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	return nil
}
