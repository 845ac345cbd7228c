package service

import "github.com/takama/daemon"

func serviceKind() daemon.Kind {
	return daemon.SystemDaemon
}

// The Windows service manager has no readiness protocol

func NotifyReady()        {}
func NotifyStopping()     {}
func NotifyWatchdog()     {}
func NotifyStatus(string) {}
