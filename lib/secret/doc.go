// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret keeps the login password out of the Go heap.
//
// A [Buffer] lives in anonymous mmap pages that are mlocked and
// excluded from core dumps; Close zeroes and unmaps them. The login
// dialog, the shell prompt and --password-file all hand the password
// over as a Buffer, and only the login request turns it into a string.
//
// [ReadPassword] prompts on a terminal without echo. [ReadFromPath]
// reads the first line of a file or of stdin.
package secret
