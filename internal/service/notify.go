//go:build !windows
// +build !windows

package service

import (
	"os"
	"runtime"

	"github.com/okzk/sdnotify"
	"github.com/takama/daemon"
)

func serviceKind() daemon.Kind {
	// SystemDaemon needs root; a user agent does not
	if os.Geteuid() == 0 {
		return daemon.SystemDaemon
	}
	return daemon.UserAgent
}

// NotifyReady notifies systemd that service is ready (Type=notify)
func NotifyReady() {
	if runtime.GOOS == "linux" {
		sdnotify.Ready()
	}
}

// NotifyStopping notifies systemd that service is stopping
func NotifyStopping() {
	if runtime.GOOS == "linux" {
		sdnotify.Stopping()
	}
}

// NotifyWatchdog sends watchdog ping to systemd
func NotifyWatchdog() {
	if runtime.GOOS == "linux" {
		sdnotify.Watchdog()
	}
}

// NotifyStatus sends status message to systemd
func NotifyStatus(status string) {
	if runtime.GOOS == "linux" {
		sdnotify.Status(status)
	}
}
