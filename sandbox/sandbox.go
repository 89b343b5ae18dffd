// Package sandbox creates the operator-visible filesystem mapping
// between a task ID and its nested container's sandbox, as described in
// spec.md §4.D step 7 and §6 "Filesystem side effects".
package sandbox

import (
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/pkg/errors"
)

// LinkTask creates tasks/<taskID> under sandboxDirectory as a symlink
// pointing at <sandboxDirectory>/containers/<containerID>, so operators
// and UIs can reach a task's container sandbox by task ID.
func LinkTask(sandboxDirectory, taskID, containerID string) error {
	tasksDir, err := securejoin.SecureJoin(sandboxDirectory, "tasks")
	if err != nil {
		return errors.Wrap(err, "resolving tasks directory")
	}
	if err := os.MkdirAll(tasksDir, 0755); err != nil {
		return errors.Wrap(err, "creating tasks directory")
	}

	// The link path is clamped lexically rather than with SecureJoin, which
	// would follow a link left at the same path by an earlier call.
	linkPath := filepath.Join(tasksDir, filepath.Clean(string(filepath.Separator)+taskID))

	target, err := securejoin.SecureJoin(sandboxDirectory, filepath.Join("containers", containerID))
	if err != nil {
		return errors.Wrap(err, "resolving container sandbox path")
	}

	if err := os.RemoveAll(linkPath); err != nil {
		return errors.Wrap(err, "clearing previous task link")
	}
	if err := os.Symlink(target, linkPath); err != nil {
		return errors.Wrap(err, "creating task symlink")
	}
	return nil
}
