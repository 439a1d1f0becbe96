// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads katrix configuration files.
//
// A configuration file is found by [Resolve]: an explicit path (the
// --config flag) wins, then the KATRIX_CONFIG environment variable,
// then $XDG_CONFIG_HOME/katrix/config.yaml when that file exists.
// With none of these, [Default] is used unchanged. An explicitly named
// file that cannot be read is an error; the XDG location is only used
// when present.
//
// Files are YAML. Files ending in .json or .jsonc are accepted too:
// comments and trailing commas are stripped with jsonc before
// decoding, and the result is decoded as YAML (a JSON document is a
// YAML document).
//
// Directory fields may use ${HOME}, ${XDG_CACHE_HOME},
// ${XDG_STATE_HOME} and ${VAR:-default} patterns, expanded after
// loading. Command-line flags override file values; that merge is the
// caller's job.
//
// This package depends on no other katrix packages.
package config
