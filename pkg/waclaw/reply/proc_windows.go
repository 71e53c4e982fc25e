//go:build windows

package reply

import (
	"os/exec"
	"syscall"
)

func procAttrNewGroup() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{}
}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process != nil {
		return cmd.Process.Kill()
	}
	return nil
}
