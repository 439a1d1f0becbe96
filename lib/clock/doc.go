// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// [Real] is the wall clock. [Fake] returns a [FakeClock] that only
// moves when [FakeClock.Advance] is called, which keeps feed
// timestamps, the new-message glow and sync backoff deterministic in
// tests.
package clock
