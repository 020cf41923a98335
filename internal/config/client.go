package config

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
)

// Version is stamped at build time with -ldflags "-X ...config.Version=...".
var Version = "dev"

const clientName = "go-agentquery"

var userAgent = sync.OnceValue(func() string {
	platform := runtime.GOOS
	if v := platformVersion(); v != "" {
		platform += " " + v
	}
	return fmt.Sprintf("%s/%s (%s; %s) %s", clientName, buildVersion(), platform, runtime.GOARCH, runtime.Version())
})

// ApplyDefaultHeaders sets the headers sent with every backend HTTP request.
func ApplyDefaultHeaders(headers http.Header) {
	if headers == nil {
		return
	}
	headers.Set("User-Agent", UserAgent())
}

// UserAgent returns "<name>/<version> (<os> <os_version>; <arch>) <go_version>".
func UserAgent() string {
	return userAgent()
}

// buildVersion prefers the stamped version, then the module version recorded
// by `go install`.
func buildVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return Version
}

func platformVersion() string {
	switch runtime.GOOS {
	case "linux":
		data, err := os.ReadFile("/proc/sys/kernel/osrelease")
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(data))
	case "darwin":
		out, err := exec.Command("sw_vers", "-productVersion").Output()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(out))
	}
	return ""
}
