package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkTaskCreatesSymlinkToContainerSandbox(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, LinkTask(dir, "task-1", "container-1"))

	linkPath := filepath.Join(dir, "tasks", "task-1")
	target, err := os.Readlink(linkPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "containers", "container-1"), target)
}

func TestLinkTaskReplacesExistingLink(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, LinkTask(dir, "task-1", "container-1"))
	require.NoError(t, LinkTask(dir, "task-1", "container-2"))

	linkPath := filepath.Join(dir, "tasks", "task-1")
	target, err := os.Readlink(linkPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "containers", "container-2"), target)
}

func TestLinkTaskClampsEscapingContainerID(t *testing.T) {
	dir := t.TempDir()

	err := LinkTask(dir, "task-1", "../../etc")
	require.NoError(t, err)

	linkPath := filepath.Join(dir, "tasks", "task-1")
	target, err := os.Readlink(linkPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "etc"), target)
}
