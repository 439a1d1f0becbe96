// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"

	"github.com/bureau-foundation/katrix/lib/ref"
)

type sampleRecord struct {
	ContentType string         `cbor:"content_type"`
	Source      ref.ContentURI `cbor:"source"`
	Size        int            `cbor:"size"`
	Data        []byte         `cbor:"data,omitempty"`
}

func TestMarshalDeterministic(t *testing.T) {
	record := sampleRecord{
		ContentType: "image/png",
		Source:      ref.MustParseContentURI("mxc://matrix.org/abc"),
		Size:        3,
		Data:        []byte{1, 2, 3},
	}

	first, err := Marshal(record)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(record)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("Marshal is not deterministic")
		}
	}
}

func TestTextMarshalerEncodesAsString(t *testing.T) {
	source := ref.MustParseContentURI("mxc://matrix.org/abc")
	data, err := Marshal(sampleRecord{Source: source})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Contains(data, []byte("mxc://matrix.org/abc")) {
		t.Fatalf("encoded record does not carry the URI as text: %x", data)
	}

	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Source != source {
		t.Errorf("Source = %v, want %v", decoded.Source, source)
	}
}

func TestUnmarshalRejectsInvalidURI(t *testing.T) {
	type loose struct {
		Source string `cbor:"source"`
	}
	data, err := Marshal(loose{Source: "https://example.com/x"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err == nil {
		t.Fatal("Unmarshal accepted a non-mxc source")
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var record sampleRecord
	if err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &record); err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
}

func TestUnmarshalRejectsDuplicateKeys(t *testing.T) {
	// {"size": 1, "size": 2}
	data := []byte{0xa2, 0x64, 's', 'i', 'z', 'e', 0x01, 0x64, 's', 'i', 'z', 'e', 0x02}
	var record sampleRecord
	if err := Unmarshal(data, &record); err == nil {
		t.Errorf("Unmarshal accepted duplicate keys, Size = %d", record.Size)
	}
}
