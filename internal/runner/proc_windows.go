//go:build windows

package runner

import "os/exec"

func configureProcess(_ *exec.Cmd) {}

func interruptProcess(cmd *exec.Cmd) {
	killProcess(cmd)
}

func killProcess(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
