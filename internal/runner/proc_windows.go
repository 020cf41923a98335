//go:build windows

package runner

import (
	"os"
	"os/exec"
	"strconv"
	"strings"
)

func setProcAttr(cmd *exec.Cmd) {}

// terminate kills the process tree; Windows has no SIGTERM equivalent for
// console children.
func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return os.ErrProcessDone
	}
	kill := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(cmd.Process.Pid))
	if err := kill.Run(); err != nil {
		if cmd.ProcessState != nil {
			return os.ErrProcessDone
		}
		return cmd.Process.Kill()
	}
	return nil
}

func exitSignal(state *os.ProcessState) string { return "" }

func shellCommand(script string) (string, []string) {
	comspec := os.Getenv("ComSpec")
	if comspec == "" {
		comspec = "cmd.exe"
	}
	return comspec, []string{"/C", script}
}

func shellQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func pipeCommand(file string) string { return "type " + shellQuote(file) }
