// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"errors"

	"github.com/bureau-foundation/katrix/messaging"
)

var (
	// ErrNotLoggedIn is returned by operations that need a session
	// when there is none.
	ErrNotLoggedIn = errors.New("chat: not logged in")

	// ErrAlreadyLoggedIn is returned by Login when a session exists.
	ErrAlreadyLoggedIn = errors.New("chat: already logged in")

	// ErrLoginInProgress is returned by Login while another login is
	// running.
	ErrLoginInProgress = errors.New("chat: login in progress")
)

// userMessage returns the text shown to the user for a failed
// operation: the homeserver's own message when it sent one.
func userMessage(err error) string {
	var matrixErr *messaging.MatrixError
	if errors.As(err, &matrixErr) && matrixErr.Message != "" {
		return matrixErr.Message
	}
	if err == nil || err.Error() == "" {
		return "Unknown error"
	}
	return err.Error()
}
