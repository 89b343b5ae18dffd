package executor

import (
	"testing"

	"github.com/hectorj2f/mesos-group-executor/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLaunchRequestDefaultsContainerType(t *testing.T) {
	req := buildLaunchRequest(api.ContainerID{Value: "c1"}, api.TaskInfo{TaskID: "t1"}, "10.0.0.5")

	require.NotNil(t, req.Container)
	assert.Equal(t, "MESOS", req.Container.Type)
	require.NotNil(t, req.Command)
	assert.Equal(t, "10.0.0.5", req.Command.Environment[containerIPEnvVar])
}

func TestBuildLaunchRequestPreservesCommandEnvironment(t *testing.T) {
	task := api.TaskInfo{
		TaskID: "t1",
		Command: &api.CommandInfo{
			Value:       "/bin/app",
			Environment: map[string]string{"FOO": "bar"},
		},
	}
	req := buildLaunchRequest(api.ContainerID{Value: "c1"}, task, "10.0.0.5")

	require.NotNil(t, req.Command)
	assert.Equal(t, "/bin/app", req.Command.Value)
	assert.Equal(t, "bar", req.Command.Environment["FOO"])
	assert.Equal(t, "10.0.0.5", req.Command.Environment[containerIPEnvVar])
}

func TestBuildLaunchRequestSharesDiskVolumeAsSandboxPath(t *testing.T) {
	task := api.TaskInfo{
		TaskID: "t1",
		Resources: []api.Resource{
			{Name: "disk", Disk: &api.DiskInfo{Volume: &api.Volume{ContainerPath: "/data", Mode: "RW"}}},
		},
	}
	req := buildLaunchRequest(api.ContainerID{Value: "c1"}, task, "10.0.0.5")

	require.NotNil(t, req.Container)
	require.Len(t, req.Container.Volumes, 1)
	v := req.Container.Volumes[0]
	assert.Equal(t, "/data", v.ContainerPath)
	require.NotNil(t, v.Source)
	assert.Equal(t, "SANDBOX_PATH", v.Source.Type)
	require.NotNil(t, v.Source.SandboxPath)
	assert.Equal(t, "PARENT", v.Source.SandboxPath.Type)
}

func TestBuildLaunchRequestCopiesExistingContainerInfo(t *testing.T) {
	task := api.TaskInfo{
		TaskID:    "t1",
		Container: &api.ContainerInfo{Type: "DOCKER", Image: "myimage:latest"},
	}
	req := buildLaunchRequest(api.ContainerID{Value: "c1"}, task, "10.0.0.5")

	require.NotNil(t, req.Container)
	assert.Equal(t, "DOCKER", req.Container.Type)
	assert.Equal(t, "myimage:latest", req.Container.Image)
}
