package agentd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/a2a-client/internal/model"
)

func TestDispatchUnknownMethodCode(t *testing.T) {
	s := NewServer(ServerConfig{}, nil)

	_, rpcErr := s.dispatch("tasks/explode", json.RawMessage(`{}`))
	require.NotNil(t, rpcErr)
	assert.Equal(t, rpcCodeMethodNotFound, rpcErr.Code)
}

func TestDispatchMissingTaskCode(t *testing.T) {
	s := NewServer(ServerConfig{}, nil)

	for _, method := range []string{"tasks/get", "tasks/cancel", "tasks/resubscribe"} {
		_, rpcErr := s.dispatch(method, json.RawMessage(`{"id":"task-missing"}`))
		require.NotNil(t, rpcErr, method)
		assert.Equal(t, rpcCodeTaskNotFound, rpcErr.Code, method)
	}
}

func TestDispatchSendCreatesTask(t *testing.T) {
	s := NewServer(ServerConfig{Executor: ExecutorConfig{TextChunks: 1}}, nil)

	msg := model.NewTextMessage(model.RoleUser, "hi")
	params, err := json.Marshal(map[string]any{"contextId": "", "message": msg})
	require.NoError(t, err)

	result, rpcErr := s.dispatch("message/stream", params)
	require.Nil(t, rpcErr)

	sub, ok := result.(subscribeResult)
	require.True(t, ok)
	assert.NotEmpty(t, sub.Task.ID)
	assert.Contains(t, sub.StreamURL, sub.Task.ID)
}
