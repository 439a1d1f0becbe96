// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides katrix's CBOR encoding configuration.
//
// JSON is reserved for the Matrix Client-Server API and configuration
// files. CBOR is used for katrix's own on-disk records, currently the
// media cache rows in lib/mediacache. Encoding is deterministic (Core
// Deterministic Encoding, RFC 8949 §4.2), so equal records produce
// equal bytes.
//
// Types owned by katrix that are only ever stored as CBOR use `cbor`
// struct tags. Types implementing encoding.TextMarshaler (everything
// in lib/ref) are encoded as CBOR text strings.
package codec
