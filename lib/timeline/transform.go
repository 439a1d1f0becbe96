// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"time"

	"github.com/tidwall/gjson"

	"github.com/bureau-foundation/katrix/lib/ref"
	"github.com/bureau-foundation/katrix/messaging"
)

// Message types rendered as text.
const (
	msgTypeText   = "m.text"
	msgTypeNotice = "m.notice"
	msgTypeEmote  = "m.emote"
	msgTypeImage  = "m.image"
)

// DisplayMessage is one renderable timeline entry.
type DisplayMessage struct {
	EventID   ref.EventID
	Body      string
	Timestamp time.Time
	Sender    ref.UserID

	// Emote is set for m.emote messages, which clients render as
	// "* sender body".
	Emote bool

	// Image is non-nil only when the event carried a usable content
	// URI and both dimensions.
	Image *ImageRef
}

// ImageRef points at an image attached to a message.
type ImageRef struct {
	Name   string
	URL    ref.ContentURI
	Width  int
	Height int
}

// Transform maps a raw timeline event to a DisplayMessage. It returns
// false for events that are not displayed: non-message events,
// redacted messages, and message types other than text, notice, emote,
// and image.
//
// An image event missing its URL or either dimension is still shown,
// as text only.
func Transform(evt messaging.Event) (DisplayMessage, bool) {
	if evt.Type != messaging.EventTypeMessage {
		return DisplayMessage{}, false
	}
	content := gjson.ParseBytes(evt.Content)
	body := content.Get("body")
	if body.Type != gjson.String {
		return DisplayMessage{}, false
	}

	message := DisplayMessage{
		EventID:   evt.EventID,
		Body:      body.Str,
		Timestamp: evt.Timestamp,
		Sender:    evt.Sender,
	}
	switch content.Get("msgtype").String() {
	case msgTypeText, msgTypeNotice:
	case msgTypeEmote:
		message.Emote = true
	case msgTypeImage:
		message.Image = imageRef(content)
	default:
		return DisplayMessage{}, false
	}
	return message, true
}

func imageRef(content gjson.Result) *ImageRef {
	uri, err := ref.ParseContentURI(content.Get("url").String())
	if err != nil {
		return nil
	}
	width := content.Get("info.w").Int()
	height := content.Get("info.h").Int()
	if width <= 0 || height <= 0 {
		return nil
	}
	name := content.Get("filename").String()
	if name == "" {
		name = content.Get("body").String()
	}
	return &ImageRef{
		Name:   name,
		URL:    uri,
		Width:  int(width),
		Height: int(height),
	}
}

// TransformAll maps events in order, dropping the ones Transform
// filters.
func TransformAll(events []messaging.Event) []DisplayMessage {
	messages := make([]DisplayMessage, 0, len(events))
	for _, evt := range events {
		if message, ok := Transform(evt); ok {
			messages = append(messages, message)
		}
	}
	return messages
}
