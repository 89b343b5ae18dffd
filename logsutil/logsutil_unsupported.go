//go:build !linux

package logsutil

// MaybeSetupLoggerIfUnderSystemd is a no-op outside Linux.
func MaybeSetupLoggerIfUnderSystemd() {}

// MaybeSetupLoggerIfOnJournaldAvailable is a no-op outside Linux.
func MaybeSetupLoggerIfOnJournaldAvailable() {}
