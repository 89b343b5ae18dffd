//go:build linux

package logsutil

import (
	"github.com/coreos/go-systemd/util"
	"github.com/sirupsen/logrus"
	"github.com/wercker/journalhook"
)

// MaybeSetupLoggerIfUnderSystemd enables journald logging only when this
// process was started as a systemd unit.
func MaybeSetupLoggerIfUnderSystemd() {
	running, err := util.RunningFromSystemService()
	if err != nil {
		logrus.WithError(err).Error("Error checking if running under systemd unit")
		return
	}
	if running {
		journalhook.Enable()
	}
}

// MaybeSetupLoggerIfOnJournaldAvailable unconditionally enables journald
// logging; used when the caller already knows journald is reachable.
func MaybeSetupLoggerIfOnJournaldAvailable() {
	journalhook.Enable()
}
