package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agentmesh/a2a-client/internal/model"
)

// ErrUnknownType is returned for event labels outside the closed set.
var ErrUnknownType = errors.New("unknown event type")

// envelope is the superset of all payload shapes. Fields irrelevant to a
// given event type are simply left zero by the JSON decoder.
type envelope struct {
	TaskID     string          `json:"taskId"`
	Message    *model.Message  `json:"message"`
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Input      json.RawMessage `json:"input"`
	Result     json.RawMessage `json:"result"`
	Artifact   *model.Artifact `json:"artifact"`
}

// Decode parses a raw push message into a typed Event. The name is the
// wire event label; data is the JSON payload. An unknown label yields
// ErrUnknownType and a structurally invalid payload yields a decode
// error; callers log either case and keep the feed open.
func Decode(name string, data []byte) (Event, error) {
	var env envelope
	if len(data) > 0 {
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", name, err)
		}
	}

	switch Type(name) {
	case TypeWorking:
		return Working{TaskID: env.TaskID}, nil

	case TypeMessage:
		if env.Message == nil {
			return nil, fmt.Errorf("decode %s payload: missing message", name)
		}
		return Message{TaskID: env.TaskID, Message: *env.Message}, nil

	case TypeToolCall:
		if env.ToolName == "" {
			return nil, fmt.Errorf("decode %s payload: missing toolName", name)
		}
		return ToolCall{
			TaskID:     env.TaskID,
			ToolCallID: env.ToolCallID,
			ToolName:   env.ToolName,
			Input:      env.Input,
		}, nil

	case TypeToolCallResult:
		if len(env.Result) == 0 {
			return nil, fmt.Errorf("decode %s payload: missing result", name)
		}
		return ToolCallResult{
			TaskID:     env.TaskID,
			ToolCallID: env.ToolCallID,
			Result:     env.Result,
		}, nil

	case TypeArtifact:
		if env.Artifact == nil {
			return nil, fmt.Errorf("decode %s payload: missing artifact", name)
		}
		return Artifact{TaskID: env.TaskID, Artifact: *env.Artifact}, nil

	case TypeCompleted:
		return Completed{TaskID: env.TaskID}, nil

	case TypeFailed:
		return Failed{TaskID: env.TaskID}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
}
