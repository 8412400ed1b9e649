// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

// TaskStatus describes the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusWorking      TaskStatus = "working"
	TaskStatusInputRequired TaskStatus = "input_required"
	TaskStatusCompleted    TaskStatus = "completed"
	TaskStatusCancelled    TaskStatus = "cancelled"
	TaskStatusFailed       TaskStatus = "failed"
)

// IsTerminal reports whether status is one that a task cannot transition
// away from.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusCancelled, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Task describes the state of a long-running, task-augmented request.
type Task struct {
	// This property is reserved by the protocol to allow clients and servers to
	// attach additional metadata to their responses.
	Meta `json:"_meta,omitempty"`
	// TaskID uniquely identifies the task within the session that created it.
	TaskID string `json:"taskId"`
	// Status is the current lifecycle state of the task.
	Status TaskStatus `json:"status"`
	// StatusMessage is an optional human-readable description of the current
	// status.
	StatusMessage string `json:"statusMessage,omitempty"`
	// CreatedAt is an ISO 8601 timestamp recording when the task was created.
	CreatedAt string `json:"createdAt"`
	// LastUpdatedAt is an ISO 8601 timestamp recording the most recent status
	// transition.
	LastUpdatedAt string `json:"lastUpdatedAt"`
	// TTL is the requested time-to-live for the task's result, in
	// milliseconds, after which the server may discard it. A nil TTL means
	// the server chooses its own retention policy.
	TTL *int64 `json:"ttl,omitempty"`
}

func (*Task) isResult() {}

// TaskParams augments a request with task execution semantics.
type TaskParams struct {
	// TTL is the requested time-to-live for the task's result, in
	// milliseconds.
	TTL *int64 `json:"ttl,omitempty"`
}

// GetTaskParams are the parameters to a tasks/get request.
type GetTaskParams struct {
	Meta `json:"_meta,omitempty"`
	// TaskID identifies the task to query.
	TaskID string `json:"taskId"`
}

func (x *GetTaskParams) isParams()             {}
func (x *GetTaskParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *GetTaskParams) SetProgressToken(t any) { setProgressToken(x, t) }

// GetTaskResult is the response to a tasks/get request.
type GetTaskResult Task

func (*GetTaskResult) isResult() {}

// ListTasksParams are the parameters to a tasks/list request.
type ListTasksParams struct {
	Meta `json:"_meta,omitempty"`
	// Cursor is an opaque pagination cursor returned by a previous call.
	Cursor string `json:"cursor,omitempty"`
}

func (x *ListTasksParams) isParams()             {}
func (x *ListTasksParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *ListTasksParams) SetProgressToken(t any) { setProgressToken(x, t) }
func (x *ListTasksParams) cursorPtr() *string     { return &x.Cursor }

// ListTasksResult is the response to a tasks/list request.
type ListTasksResult struct {
	Meta `json:"_meta,omitempty"`
	// Tasks is the page of tasks visible to the requesting session.
	Tasks []*Task `json:"tasks"`
	// NextCursor, if non-empty, can be passed to a subsequent tasks/list call
	// to retrieve the next page.
	NextCursor string `json:"nextCursor,omitempty"`
}

func (x *ListTasksResult) isResult()              {}
func (x *ListTasksResult) nextCursorPtr() *string { return &x.NextCursor }

// CancelTaskParams are the parameters to a tasks/cancel request.
type CancelTaskParams struct {
	Meta `json:"_meta,omitempty"`
	// TaskID identifies the task to cancel.
	TaskID string `json:"taskId"`
}

func (x *CancelTaskParams) isParams()             {}
func (x *CancelTaskParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *CancelTaskParams) SetProgressToken(t any) { setProgressToken(x, t) }

// CancelTaskResult is the response to a tasks/cancel request.
type CancelTaskResult Task

func (*CancelTaskResult) isResult() {}

// TaskResultParams are the parameters to a tasks/result request.
type TaskResultParams struct {
	Meta `json:"_meta,omitempty"`
	// TaskID identifies the task whose result is being retrieved. The call
	// blocks (subject to context cancellation) until the task reaches a
	// terminal status.
	TaskID string `json:"taskId"`
}

func (x *TaskResultParams) isParams()             {}
func (x *TaskResultParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *TaskResultParams) SetProgressToken(t any) { setProgressToken(x, t) }

// CreateTaskResult is returned in place of a normal method result when a
// request has been accepted for task-augmented, asynchronous execution.
type CreateTaskResult struct {
	Meta `json:"_meta,omitempty"`
	// Task is the newly created task, in its initial "working" status.
	Task *Task `json:"task"`
}

func (*CreateTaskResult) isResult() {}

// TaskStatusNotificationParams is sent (as a best-effort notification) when a
// task's status changes.
type TaskStatusNotificationParams Task

func (x *TaskStatusNotificationParams) isParams()              {}
func (x *TaskStatusNotificationParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *TaskStatusNotificationParams) SetProgressToken(t any) { setProgressToken(x, t) }

// TaskCapabilities describes the server's support for the task protocol.
type TaskCapabilities struct {
	// Requests describes which request methods may be augmented with task
	// parameters.
	Requests *TaskRequestCapabilities `json:"requests,omitempty"`
	// List is present if the server supports tasks/list.
	List *TaskListCapability `json:"list,omitempty"`
	// Cancel is present if the server supports tasks/cancel.
	Cancel *TaskCancelCapability `json:"cancel,omitempty"`
}

// TaskRequestCapabilities describes which request methods support task
// augmentation.
type TaskRequestCapabilities struct {
	// Tools describes task support for tool-related requests.
	Tools *TaskToolRequestCapabilities `json:"tools,omitempty"`
	// Sampling describes task support for sampling requests.
	Sampling *TaskSamplingRequestCapabilities `json:"sampling,omitempty"`
	// Elicitation describes task support for elicitation requests.
	Elicitation *TaskElicitationRequestCapabilities `json:"elicitation,omitempty"`
}

// TaskToolRequestCapabilities describes task support for tools/call.
type TaskToolRequestCapabilities struct {
	Call *TaskCallCapability `json:"call,omitempty"`
}

// TaskSamplingRequestCapabilities describes task support for
// sampling/createMessage.
type TaskSamplingRequestCapabilities struct {
	CreateMessage *TaskCallCapability `json:"createMessage,omitempty"`
}

// TaskElicitationRequestCapabilities describes task support for
// elicitation/create.
type TaskElicitationRequestCapabilities struct {
	Create *TaskCallCapability `json:"create,omitempty"`
}

// TaskCallCapability is an empty marker type indicating task support for a
// particular method.
type TaskCallCapability struct{}

// TaskListCapability is an empty marker type indicating support for
// tasks/list.
type TaskListCapability struct{}

// TaskCancelCapability is an empty marker type indicating support for
// tasks/cancel.
type TaskCancelCapability struct{}
