//go:build windows

package agentloop

import (
	"os/exec"
	"strconv"
)

// configureProcessGroup kills the process tree with taskkill on timeout;
// killing cmd alone leaves its children running.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		kill := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(cmd.Process.Pid))
		if err := kill.Run(); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
}
