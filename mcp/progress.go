// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"errors"
)

// ErrNoProgressToken is returned by [ServerRequest.Progress] when the
// originating request carried no progress token, so there is nowhere to
// send the update.
var ErrNoProgressToken = errors.New("request has no progress token")

// Progress sends a progress notification for the request r back to the
// caller that issued it.
//
// It fails with ErrNoProgressToken if the request's _meta field didn't
// include a progress token; any other error indicates the notification
// itself could not be delivered.
func (r *ServerRequest[P]) Progress(ctx context.Context, msg string, progress, total float64) error {
	token, ok := r.Params.GetMeta()[progressTokenKey]
	if !ok {
		return ErrNoProgressToken
	}
	return r.Session.NotifyProgress(ctx, &ProgressNotificationParams{
		Message:       msg,
		ProgressToken: token,
		Progress:      progress,
		Total:         total,
	})
}
