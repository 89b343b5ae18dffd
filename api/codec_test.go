package api

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	call := Call{
		Type:        CallSubscribe,
		FrameworkID: "framework-1",
		ExecutorID:  "executor-1",
		Subscribe: &Subscribe{
			UnacknowledgedUpdates: []TaskStatus{{TaskID: "task-1", State: TaskRunning, UUID: uuid.New()}},
		},
	}

	var buf bytes.Buffer
	codec := JSONCodec{}
	require.NoError(t, codec.Encode(&buf, call))

	var decoded Call
	require.NoError(t, codec.Decode(&buf, &decoded))

	assert.Equal(t, call.Type, decoded.Type)
	assert.Equal(t, call.FrameworkID, decoded.FrameworkID)
	require.NotNil(t, decoded.Subscribe)
	assert.Equal(t, call.Subscribe.UnacknowledgedUpdates[0].TaskID, decoded.Subscribe.UnacknowledgedUpdates[0].TaskID)
}

func TestExitStatusSuccessful(t *testing.T) {
	zero := 0
	nonzero := 1
	sig := "SIGKILL"

	assert.True(t, ExitStatus{ExitCode: &zero}.Successful())
	assert.False(t, ExitStatus{ExitCode: &nonzero}.Successful())
	assert.False(t, ExitStatus{Signal: &sig}.Successful())
}

func TestExitStatusString(t *testing.T) {
	code := 137
	sig := "SIGKILL"

	assert.Equal(t, "exited with status 137", ExitStatus{ExitCode: &code}.String())
	assert.Equal(t, "terminated by signal SIGKILL", ExitStatus{Signal: &sig}.String())
	assert.Equal(t, "unknown exit status", ExitStatus{}.String())
}

func TestFrameworkInfoHasCapability(t *testing.T) {
	f := FrameworkInfo{Capabilities: []string{"TASK_KILLING_STATE"}}
	assert.True(t, f.HasCapability("TASK_KILLING_STATE"))
	assert.False(t, f.HasCapability("GPU_RESOURCES"))
}

func TestTaskStateIsTerminal(t *testing.T) {
	assert.True(t, TaskFinished.IsTerminal())
	assert.True(t, TaskFailed.IsTerminal())
	assert.True(t, TaskKilled.IsTerminal())
	assert.False(t, TaskRunning.IsTerminal())
	assert.False(t, TaskStarting.IsTerminal())
}
