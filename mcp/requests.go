// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file names the concrete [ServerRequest] and [ClientRequest]
// instantiations that handlers and middleware are written against, grouped
// by which side of a session receives them.

package mcp

// Requests a server receives from a client.
type (
	CallToolRequest                    = ServerRequest[*CallToolParamsRaw]
	CancelTaskRequest                  = ServerRequest[*CancelTaskParams]
	CompleteRequest                    = ServerRequest[*CompleteParams]
	GetPromptRequest                   = ServerRequest[*GetPromptParams]
	GetTaskRequest                     = ServerRequest[*GetTaskParams]
	InitializedRequest                 = ServerRequest[*InitializedParams]
	ListPromptsRequest                 = ServerRequest[*ListPromptsParams]
	ListResourceTemplatesRequest       = ServerRequest[*ListResourceTemplatesParams]
	ListResourcesRequest               = ServerRequest[*ListResourcesParams]
	ListTasksRequest                   = ServerRequest[*ListTasksParams]
	ListToolsRequest                   = ServerRequest[*ListToolsParams]
	ProgressNotificationServerRequest  = ServerRequest[*ProgressNotificationParams]
	ReadResourceRequest                = ServerRequest[*ReadResourceParams]
	RootsListChangedRequest            = ServerRequest[*RootsListChangedParams]
	SubscribeRequest                   = ServerRequest[*SubscribeParams]
	TaskResultRequest                  = ServerRequest[*TaskResultParams]
	TaskStatusNotificationServerRequest = ServerRequest[*TaskStatusNotificationParams]
	UnsubscribeRequest                 = ServerRequest[*UnsubscribeParams]
)

// Requests a client receives from a server.
type (
	CreateMessageRequest                   = ClientRequest[*CreateMessageParams]
	ElicitRequest                          = ClientRequest[*ElicitParams]
	ElicitationCompleteNotificationRequest = ClientRequest[*ElicitationCompleteParams]
	InitializeRequest                      = ClientRequest[*InitializeParams]
	ListRootsRequest                       = ClientRequest[*ListRootsParams]
	LoggingMessageRequest                  = ClientRequest[*LoggingMessageParams]
	ProgressNotificationClientRequest      = ClientRequest[*ProgressNotificationParams]
	PromptListChangedRequest               = ClientRequest[*PromptListChangedParams]
	ResourceListChangedRequest             = ClientRequest[*ResourceListChangedParams]
	ResourceUpdatedNotificationRequest     = ClientRequest[*ResourceUpdatedNotificationParams]
	TaskStatusNotificationRequest          = ClientRequest[*TaskStatusNotificationParams]
	ToolListChangedRequest                 = ClientRequest[*ToolListChangedParams]

	initializedClientRequest = ClientRequest[*InitializedParams]
)
