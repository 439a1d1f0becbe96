// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds channel helpers for tests of katrix's
// reactive plumbing.
//
// [RequireReceive], [RequireSend] and [RequireClosed] bound every wait
// with a timeout so a broken holder or controller fails the test
// instead of hanging it. [RequireNoPending] checks a channel without
// waiting, which is how tests prove that a cancelled subscription
// delivered nothing.
//
// Every helper calls t.Fatalf on failure.
package testutil
