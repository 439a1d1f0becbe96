// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"testing"
	"time"
)

// recordingTB captures the first failure instead of stopping the test.
type recordingTB struct {
	failure string
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Fatalf(format string, args ...any) {
	if r.failure == "" {
		r.failure = fmt.Sprintf(format, args...)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		args []any
		want string
	}{
		{nil, "(no message)"},
		{[]any{"waiting"}, "waiting"},
		{[]any{"room %s", "!a:matrix.org"}, "room !a:matrix.org"},
		{[]any{42}, "42"},
	}
	for _, test := range tests {
		if got := describe(test.args); got != test.want {
			t.Errorf("describe(%v) = %q, want %q", test.args, got, test.want)
		}
	}
}

func TestRequireReceive(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 7
	if got := RequireReceive(t, ch, time.Second); got != 7 {
		t.Errorf("RequireReceive = %d, want 7", got)
	}

	recorder := &recordingTB{}
	RequireReceive(recorder, make(chan int), time.Millisecond, "idle")
	if recorder.failure == "" {
		t.Error("RequireReceive did not fail on timeout")
	}

	closed := make(chan int)
	close(closed)
	recorder = &recordingTB{}
	RequireReceive(recorder, closed, time.Second)
	if recorder.failure == "" {
		t.Error("RequireReceive did not fail on a closed channel")
	}
}

func TestRequireNoPending(t *testing.T) {
	ch := make(chan string, 1)
	RequireNoPending(t, ch)

	ch <- "stale"
	recorder := &recordingTB{}
	RequireNoPending(recorder, ch, "after cancel")
	if recorder.failure != "unexpected value stale: after cancel" {
		t.Errorf("failure = %q", recorder.failure)
	}
}
