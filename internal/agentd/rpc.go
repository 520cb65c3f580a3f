package agentd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/agentmesh/a2a-client/internal/model"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

const (
	rpcCodeInvalidParams  = -32602
	rpcCodeMethodNotFound = -32601
	// rpcCodeTaskNotFound is an application-level code: a missing entity
	// is not the same failure as an unknown method.
	rpcCodeTaskNotFound = -32001
)

type sendParams struct {
	ContextID string         `json:"contextId"`
	Message   *model.Message `json:"message"`
}

type taskIDParams struct {
	ID            string `json:"id"`
	HistoryLength *int   `json:"historyLength"`
}

// subscribeResult is the acknowledgement for streamed sends: the
// created task plus the feed URL to stream its events from.
type subscribeResult struct {
	Task      model.Task `json:"task"`
	StreamURL string     `json:"streamUrl"`
}

// handleRPC serves the JSON-RPC 2.0 endpoint.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, rpcErr := s.dispatch(req.Method, req.Params)
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) dispatch(method string, params json.RawMessage) (any, *rpcError) {
	switch method {
	case "tasks/send", "message/send":
		task, rpcErr := s.rpcSend(params)
		if rpcErr != nil {
			return nil, rpcErr
		}
		return task, nil

	case "tasks/sendSubscribe", "message/stream":
		task, rpcErr := s.rpcSend(params)
		if rpcErr != nil {
			return nil, rpcErr
		}
		return subscribeResult{Task: *task, StreamURL: streamPath(task.ID)}, nil

	case "tasks/resubscribe":
		task, rpcErr := s.rpcGetTask(params)
		if rpcErr != nil {
			return nil, rpcErr
		}
		return subscribeResult{Task: *task, StreamURL: streamPath(task.ID)}, nil

	case "tasks/get":
		return s.rpcTasksGet(params)

	case "tasks/cancel":
		return s.rpcTasksCancel(params)
	}

	return nil, &rpcError{Code: rpcCodeMethodNotFound, Message: fmt.Sprintf("Method not found: %s", method)}
}

// rpcSend creates a task for the user message and launches the executor
// asynchronously; events arrive on the task's stream.
func (s *Server) rpcSend(params json.RawMessage) (*model.Task, *rpcError) {
	var p sendParams
	if err := json.Unmarshal(params, &p); err != nil || p.Message == nil {
		return nil, &rpcError{Code: rpcCodeInvalidParams, Message: "invalid params: message required"}
	}

	task := s.store.CreateTask(p.ContextID, *p.Message)
	s.startTask(task, streamPath(task.ID))
	return &task, nil
}

func (s *Server) rpcGetTask(params json.RawMessage) (*model.Task, *rpcError) {
	var p taskIDParams
	if err := json.Unmarshal(params, &p); err != nil || p.ID == "" {
		return nil, &rpcError{Code: rpcCodeInvalidParams, Message: "invalid params: id required"}
	}
	task := s.store.GetTask(p.ID)
	if task == nil {
		return nil, &rpcError{Code: rpcCodeTaskNotFound, Message: fmt.Sprintf("Task %s not found", p.ID)}
	}
	return task, nil
}

func (s *Server) rpcTasksGet(params json.RawMessage) (any, *rpcError) {
	var p taskIDParams
	if err := json.Unmarshal(params, &p); err != nil || p.ID == "" {
		return nil, &rpcError{Code: rpcCodeInvalidParams, Message: "invalid params: id required"}
	}
	task := s.store.GetTask(p.ID)
	if task == nil {
		return nil, &rpcError{Code: rpcCodeTaskNotFound, Message: fmt.Sprintf("Task %s not found", p.ID)}
	}
	if p.HistoryLength != nil && *p.HistoryLength >= 0 && *p.HistoryLength < len(task.History) {
		task.History = task.History[len(task.History)-*p.HistoryLength:]
	}
	return task, nil
}

func (s *Server) rpcTasksCancel(params json.RawMessage) (any, *rpcError) {
	task, rpcErr := s.rpcGetTask(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if task.Status.State.Terminal() {
		return nil, &rpcError{
			Code:    rpcCodeInvalidParams,
			Message: fmt.Sprintf("Task %s is already in terminal state: %s", task.ID, task.Status.State),
		}
	}

	s.store.UpdateTaskStatus(task.ID, model.TaskStateCanceled, nil)
	s.store.Publish(task.ID, "task.canceled", map[string]any{"taskId": task.ID})
	s.store.SetStreaming(task.ContextID, false, "")

	return s.store.GetTask(task.ID), nil
}
