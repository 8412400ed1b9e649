// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by the license
// that can be found in the LICENSE file.
package util

import "fmt"

// Wrapf wraps *errp with a formatted prefix, if *errp is non-nil. It is
// meant to be used with defer, at the top of a function with a named error
// return, to annotate any error the function returns with context about
// what the function was doing:
//
//	func f(id string) (_ *Thing, err error) {
//		defer util.Wrapf(&err, "f(%q)", id)
//		...
//	}
//
// The wrapped error still satisfies errors.Is/errors.As against the
// original, since fmt.Errorf's %w is used.
func Wrapf(errp *error, format string, args ...any) {
	if *errp != nil {
		*errp = fmt.Errorf(format+": %w", append(args, *errp)...)
	}
}
